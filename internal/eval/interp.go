package eval

import (
	"fmt"

	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/rng"
	"github.com/tracewalk/tracewalk/internal/trace"
)

// Interp evaluates expressions of one module against execution
// contexts. An Interp is single-owner: one attempt drives it at a time,
// drawing from one forked random sub-stream.
type Interp struct {
	mod    *ir.Module
	lookup ir.Lookup
	src    *rng.Source
	record bool

	// pending holds the next-context updates proposed by assignments
	// inside the current application. They commit in Apply only if the
	// whole action held.
	pending map[string]ir.Value

	// kids collects the explanation frames of the evaluation currently
	// in flight; withFrame splices them into their parent bottom-up.
	kids []*trace.Frame
}

// New creates an interpreter for one attempt. recordFrames enables the
// explanation tree; leave it off unless verbosity asks for it.
func New(mod *ir.Module, lookup ir.Lookup, src *rng.Source, recordFrames bool) *Interp {
	return &Interp{mod: mod, lookup: lookup, src: src, record: recordFrames}
}

// env is the lexical scope chain for let bindings, lambda parameters,
// and definition parameters. State variables live in the context, not
// here.
type env struct {
	parent *env
	name   string
	val    ir.Value
}

func (e *env) bind(name string, val ir.Value) *env {
	return &env{parent: e, name: name, val: val}
}

func (e *env) get(name string) (ir.Value, bool) {
	for s := e; s != nil; s = s.parent {
		if s.name == name {
			return s.val, true
		}
	}
	return nil, false
}

// Apply runs one action application against ctx.
//
// holds reports whether the action was enabled and held. When it did,
// next is ctx with all pending assignments committed atomically;
// otherwise next is nil and ctx is untouched. frame is the explanation
// tree, nil unless frame recording is on. A non-nil error is a runtime
// error aborting the current attempt only.
func (in *Interp) Apply(action ir.Expr, ctx *ir.Context) (holds bool, next *ir.Context, frame *trace.Frame, err error) {
	in.pending = map[string]ir.Value{}
	in.kids = nil

	v, err := in.eval(action, ctx, nil)

	if in.record {
		frame = &trace.Frame{Op: "apply", Children: in.kids}
		if err != nil {
			frame.Err = err.Error()
		} else {
			frame.Result = v
		}
	}
	in.kids = nil

	if err != nil {
		return false, nil, frame, err
	}
	b, ok := v.(ir.Bool)
	if !ok {
		return false, nil, frame, errType("action", "a bool result", v, refOf(action))
	}
	if !bool(b) {
		return false, nil, frame, nil
	}
	return true, ctx.WithAll(in.pending), frame, nil
}

// EvalBool evaluates a state predicate (an invariant) against ctx.
// Assignments made by the expression are discarded, never committed.
func (in *Interp) EvalBool(e ir.Expr, ctx *ir.Context) (bool, error) {
	in.pending = map[string]ir.Value{}
	in.kids = nil
	v, err := in.eval(e, ctx, nil)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.Bool)
	if !ok {
		return false, errType("predicate", "a bool result", v, refOf(e))
	}
	return bool(b), nil
}

func (in *Interp) eval(e ir.Expr, ctx *ir.Context, scope *env) (ir.Value, error) {
	switch node := e.(type) {
	case ir.Lit:
		return node.Val, nil

	case ir.Name:
		return in.evalName(node, ctx, scope)

	case ir.App:
		return in.evalApp(node, ctx, scope)

	case ir.Call:
		return in.evalCall(node, ctx, scope)

	case ir.Lambda:
		return nil, errType("lambda", "a first-order position", ir.Str("<lambda>"), ir.Ref{})

	case ir.AnyOf:
		return in.evalAnyOf(node, ctx, scope)

	case ir.AllOf:
		for _, arm := range node.Arms {
			v, err := in.eval(arm, ctx, scope)
			if err != nil {
				return nil, err
			}
			b, ok := v.(ir.Bool)
			if !ok {
				return nil, errType("all", "bool arms", v, refOf(arm))
			}
			if !bool(b) {
				return ir.Bool(false), nil // short-circuit
			}
		}
		return ir.Bool(true), nil

	case ir.Input:
		return in.evalInput(node, ctx, scope)

	case ir.Assign:
		return in.evalAssign(node, ctx, scope)

	case ir.Let:
		bound, err := in.eval(node.Bind, ctx, scope)
		if err != nil {
			return nil, err
		}
		return in.eval(node.Body, ctx, scope.bind(node.Name, bound))

	case ir.If:
		cond, err := in.eval(node.Cond, ctx, scope)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(ir.Bool)
		if !ok {
			return nil, errType("if", "a bool condition", cond, refOf(node.Cond))
		}
		if bool(b) {
			return in.eval(node.Then, ctx, scope)
		}
		return in.eval(node.Else, ctx, scope)

	case ir.SetLit:
		elems, err := in.evalSeq(node.Elems, ctx, scope)
		if err != nil {
			return nil, err
		}
		return ir.NewSet(elems...), nil

	case ir.ListLit:
		elems, err := in.evalSeq(node.Elems, ctx, scope)
		if err != nil {
			return nil, err
		}
		return ir.NewList(elems...), nil

	case ir.TupleLit:
		elems, err := in.evalSeq(node.Elems, ctx, scope)
		if err != nil {
			return nil, err
		}
		return ir.NewTuple(elems...), nil

	case ir.RecordLit:
		fields := make([]ir.Field, len(node.Fields))
		for i, f := range node.Fields {
			v, err := in.eval(f.Val, ctx, scope)
			if err != nil {
				return nil, err
			}
			fields[i] = ir.Field{Name: f.Name, Value: v}
		}
		return ir.NewRecord(fields...), nil

	case ir.MapLit:
		pairs := make([]ir.Pair, len(node.Pairs))
		for i, kv := range node.Pairs {
			k, err := in.eval(kv[0], ctx, scope)
			if err != nil {
				return nil, err
			}
			v, err := in.eval(kv[1], ctx, scope)
			if err != nil {
				return nil, err
			}
			pairs[i] = ir.Pair{Key: k, Value: v}
		}
		return ir.NewMap(pairs...), nil

	case ir.VariantLit:
		if node.Val == nil {
			return ir.NewVariant(node.Tag, nil), nil
		}
		payload, err := in.eval(node.Val, ctx, scope)
		if err != nil {
			return nil, err
		}
		return ir.NewVariant(node.Tag, payload), nil

	default:
		return nil, fmt.Errorf("unsupported expression node %T", e)
	}
}

func (in *Interp) evalName(node ir.Name, ctx *ir.Context, scope *env) (ir.Value, error) {
	if v, ok := scope.get(node.Ident); ok {
		return v, nil
	}
	if v, ok := ctx.Get(node.Ident); ok {
		return v, nil
	}
	if def, ok := in.lookup[node.Ident]; ok {
		if len(def.Params) != 0 {
			return nil, errArity(node.Ident, len(def.Params), 0, node.Ref)
		}
		// Nullary defs see only the module scope, not the caller's.
		return in.withFrame(node.Ident, nil, func() (ir.Value, error) {
			return in.eval(def.Body, ctx, nil)
		})
	}
	return nil, errUnbound(node.Ident, node.Ref)
}

func (in *Interp) evalCall(node ir.Call, ctx *ir.Context, scope *env) (ir.Value, error) {
	def, ok := in.lookup[node.Name]
	if !ok {
		return nil, errUnbound(node.Name, node.Ref)
	}
	if len(node.Args) != len(def.Params) {
		return nil, errArity(node.Name, len(def.Params), len(node.Args), node.Ref)
	}

	if !in.record {
		args, err := in.evalSeq(node.Args, ctx, scope)
		if err != nil {
			return nil, err
		}
		var callScope *env
		for i, p := range def.Params {
			callScope = callScope.bind(p, args[i])
		}
		return in.eval(def.Body, ctx, callScope)
	}

	saved := in.kids
	in.kids = nil
	args, err := in.evalSeq(node.Args, ctx, scope)
	var v ir.Value
	if err == nil {
		var callScope *env
		for i, p := range def.Params {
			callScope = callScope.bind(p, args[i])
		}
		v, err = in.eval(def.Body, ctx, callScope)
	}
	fr := &trace.Frame{Op: node.Name, Args: args, Children: in.kids}
	if err != nil {
		fr.Err = err.Error()
	} else {
		fr.Result = v
	}
	in.kids = append(saved, fr)
	return v, err
}

// evalAnyOf evaluates every arm's enabled-ness against the same
// snapshot, then uniformly picks one enabled arm. Each arm sees its own
// copy of the pending assignments; only the chosen arm's copy survives.
// Entropy order is fixed: arms evaluate in syntactic order, then one
// draw picks among the enabled ones.
func (in *Interp) evalAnyOf(node ir.AnyOf, ctx *ir.Context, scope *env) (ir.Value, error) {
	saved := clonePending(in.pending)
	savedKids := in.kids

	type candidate struct {
		pending map[string]ir.Value
		frames  []*trace.Frame
	}
	var enabled []candidate

	for _, arm := range node.Arms {
		in.pending = clonePending(saved)
		in.kids = nil
		v, err := in.eval(arm, ctx, scope)
		if err != nil {
			in.pending = saved
			in.kids = savedKids
			return nil, err
		}
		b, ok := v.(ir.Bool)
		if !ok {
			in.pending = saved
			in.kids = savedKids
			return nil, errType("any", "bool arms", v, node.Ref)
		}
		if bool(b) {
			enabled = append(enabled, candidate{pending: in.pending, frames: in.kids})
		}
	}

	in.pending = saved
	in.kids = savedKids

	if len(enabled) == 0 {
		if in.record {
			in.kids = append(in.kids, &trace.Frame{Op: "any", Result: ir.Bool(false)})
		}
		return ir.Bool(false), nil
	}

	pick := 0
	if len(enabled) > 1 {
		pick = in.src.NextInt(len(enabled))
	}
	chosen := enabled[pick]
	in.pending = chosen.pending
	if in.record {
		in.kids = append(in.kids, &trace.Frame{Op: "any", Result: ir.Bool(true), Children: chosen.frames})
	}
	return ir.Bool(true), nil
}

func (in *Interp) evalInput(node ir.Input, ctx *ir.Context, scope *env) (ir.Value, error) {
	domain, err := in.eval(node.Domain, ctx, scope)
	if err != nil {
		return nil, err
	}
	var elems []ir.Value
	switch d := domain.(type) {
	case ir.Set:
		elems = d.Elems()
	case ir.List:
		elems = d.Elems()
	default:
		return nil, errType("input", "a finite set or list domain", domain, node.Ref)
	}
	if len(elems) == 0 {
		return nil, errEmptyDomain(node.Ref)
	}
	choice := elems[0]
	if len(elems) > 1 {
		choice = elems[in.src.NextInt(len(elems))]
	}
	if in.record {
		in.kids = append(in.kids, &trace.Frame{Op: "input", Args: []ir.Value{domain}, Result: choice})
	}
	return choice, nil
}

func (in *Interp) evalAssign(node ir.Assign, ctx *ir.Context, scope *env) (ir.Value, error) {
	if !in.mod.IsVar(node.Var) {
		return nil, errUnbound(node.Var, node.Ref)
	}
	v, err := in.eval(node.Val, ctx, scope)
	if err != nil {
		return nil, err
	}
	in.pending[node.Var] = v
	if in.record {
		in.kids = append(in.kids, &trace.Frame{Op: "assign " + node.Var, Args: []ir.Value{v}, Result: ir.Bool(true)})
	}
	return ir.Bool(true), nil
}

func (in *Interp) evalSeq(exprs []ir.Expr, ctx *ir.Context, scope *env) ([]ir.Value, error) {
	out := make([]ir.Value, len(exprs))
	for i, e := range exprs {
		v, err := in.eval(e, ctx, scope)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// withFrame runs f and splices the frames it produced under a new node,
// building the explanation tree bottom-up on the return path.
func (in *Interp) withFrame(op string, args []ir.Value, f func() (ir.Value, error)) (ir.Value, error) {
	if !in.record {
		return f()
	}
	saved := in.kids
	in.kids = nil
	v, err := f()
	fr := &trace.Frame{Op: op, Args: args, Children: in.kids}
	if err != nil {
		fr.Err = err.Error()
	} else {
		fr.Result = v
	}
	in.kids = append(saved, fr)
	return v, err
}

func clonePending(m map[string]ir.Value) map[string]ir.Value {
	out := make(map[string]ir.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func refOf(e ir.Expr) ir.Ref {
	switch node := e.(type) {
	case ir.Name:
		return node.Ref
	case ir.App:
		return node.Ref
	case ir.Call:
		return node.Ref
	case ir.AnyOf:
		return node.Ref
	case ir.Input:
		return node.Ref
	case ir.Assign:
		return node.Ref
	default:
		return ir.Ref{}
	}
}
