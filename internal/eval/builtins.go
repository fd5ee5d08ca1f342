package eval

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/trace"
)

// maxSpan bounds synthetic constructions (integer ranges, powers) so a
// spec typo cannot ask the engine to materialize an unbounded value.
const maxSpan = 1 << 20

// evalApp dispatches a builtin operator application. Boolean
// connectives are lazy, the higher-order operators receive their lambda
// unevaluated, and everything else evaluates its operands left to right
// before applying.
func (in *Interp) evalApp(node ir.App, ctx *ir.Context, scope *env) (ir.Value, error) {
	switch node.Op {
	case "and":
		for _, arg := range node.Args {
			b, err := in.evalBoolArg(node.Op, arg, ctx, scope)
			if err != nil {
				return nil, err
			}
			if !b {
				return ir.Bool(false), nil
			}
		}
		return ir.Bool(true), nil

	case "or":
		for _, arg := range node.Args {
			b, err := in.evalBoolArg(node.Op, arg, ctx, scope)
			if err != nil {
				return nil, err
			}
			if b {
				return ir.Bool(true), nil
			}
		}
		return ir.Bool(false), nil

	case "implies":
		if len(node.Args) != 2 {
			return nil, errArity(node.Op, 2, len(node.Args), node.Ref)
		}
		a, err := in.evalBoolArg(node.Op, node.Args[0], ctx, scope)
		if err != nil {
			return nil, err
		}
		if !a {
			return ir.Bool(true), nil
		}
		b, err := in.evalBoolArg(node.Op, node.Args[1], ctx, scope)
		if err != nil {
			return nil, err
		}
		return ir.Bool(b), nil

	case "map", "filter", "exists", "forall":
		return in.evalIteration(node, ctx, scope)

	case "fold":
		return in.evalFold(node, ctx, scope)
	}

	if !in.record {
		args, err := in.evalSeq(node.Args, ctx, scope)
		if err != nil {
			return nil, err
		}
		return applyOp(node.Op, args, node.Ref)
	}

	saved := in.kids
	in.kids = nil
	args, err := in.evalSeq(node.Args, ctx, scope)
	var v ir.Value
	if err == nil {
		v, err = applyOp(node.Op, args, node.Ref)
	}
	fr := &trace.Frame{Op: node.Op, Args: args, Children: in.kids}
	if err != nil {
		fr.Err = err.Error()
	} else {
		fr.Result = v
	}
	in.kids = append(saved, fr)
	return v, err
}

func (in *Interp) evalBoolArg(op string, arg ir.Expr, ctx *ir.Context, scope *env) (bool, error) {
	v, err := in.eval(arg, ctx, scope)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.Bool)
	if !ok {
		return false, errType(op, "bool operands", v, refOf(arg))
	}
	return bool(b), nil
}

// evalIteration handles map/filter/exists/forall over sets and lists.
// Sets iterate in canonical element order, so iteration is
// deterministic without consuming entropy.
func (in *Interp) evalIteration(node ir.App, ctx *ir.Context, scope *env) (ir.Value, error) {
	if len(node.Args) != 2 {
		return nil, errArity(node.Op, 2, len(node.Args), node.Ref)
	}
	lam, ok := node.Args[1].(ir.Lambda)
	if !ok {
		return nil, errType(node.Op, "a lambda operand", ir.Str("<expr>"), node.Ref)
	}
	if len(lam.Params) != 1 {
		return nil, errArity(node.Op+" lambda", 1, len(lam.Params), node.Ref)
	}
	coll, err := in.eval(node.Args[0], ctx, scope)
	if err != nil {
		return nil, err
	}
	elems, isSet, err := collectionElems(node.Op, coll, node.Ref)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case "map":
		out := make([]ir.Value, len(elems))
		for i, e := range elems {
			v, err := in.eval(lam.Body, ctx, scope.bind(lam.Params[0], e))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		if isSet {
			return ir.NewSet(out...), nil
		}
		return ir.NewList(out...), nil

	case "filter":
		var out []ir.Value
		for _, e := range elems {
			v, err := in.eval(lam.Body, ctx, scope.bind(lam.Params[0], e))
			if err != nil {
				return nil, err
			}
			b, ok := v.(ir.Bool)
			if !ok {
				return nil, errType(node.Op, "a bool predicate", v, node.Ref)
			}
			if bool(b) {
				out = append(out, e)
			}
		}
		if isSet {
			return ir.NewSet(out...), nil
		}
		return ir.NewList(out...), nil

	case "exists", "forall":
		for _, e := range elems {
			v, err := in.eval(lam.Body, ctx, scope.bind(lam.Params[0], e))
			if err != nil {
				return nil, err
			}
			b, ok := v.(ir.Bool)
			if !ok {
				return nil, errType(node.Op, "a bool predicate", v, node.Ref)
			}
			if node.Op == "exists" && bool(b) {
				return ir.Bool(true), nil
			}
			if node.Op == "forall" && !bool(b) {
				return ir.Bool(false), nil
			}
		}
		return ir.Bool(node.Op == "forall"), nil
	}
	return nil, errUnbound(node.Op, node.Ref)
}

// evalFold folds left over a set (canonical order) or list (sequence
// order) with a two-parameter lambda (accumulator, element).
func (in *Interp) evalFold(node ir.App, ctx *ir.Context, scope *env) (ir.Value, error) {
	if len(node.Args) != 3 {
		return nil, errArity(node.Op, 3, len(node.Args), node.Ref)
	}
	lam, ok := node.Args[2].(ir.Lambda)
	if !ok {
		return nil, errType(node.Op, "a lambda operand", ir.Str("<expr>"), node.Ref)
	}
	if len(lam.Params) != 2 {
		return nil, errArity("fold lambda", 2, len(lam.Params), node.Ref)
	}
	coll, err := in.eval(node.Args[0], ctx, scope)
	if err != nil {
		return nil, err
	}
	elems, _, err := collectionElems(node.Op, coll, node.Ref)
	if err != nil {
		return nil, err
	}
	acc, err := in.eval(node.Args[1], ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		inner := scope.bind(lam.Params[0], acc).bind(lam.Params[1], e)
		acc, err = in.eval(lam.Body, ctx, inner)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func collectionElems(op string, coll ir.Value, ref ir.Ref) ([]ir.Value, bool, error) {
	switch c := coll.(type) {
	case ir.Set:
		return c.Elems(), true, nil
	case ir.List:
		return c.Elems(), false, nil
	default:
		return nil, false, errType(op, "a set or list", coll, ref)
	}
}

// applyOp applies an eager builtin to evaluated operands.
func applyOp(op string, args []ir.Value, ref ir.Ref) (ir.Value, error) {
	switch op {
	case "not":
		b, err := wantBool(op, args, 0, 1, ref)
		if err != nil {
			return nil, err
		}
		return ir.Bool(!b), nil

	case "iff":
		a, err := wantBool(op, args, 0, 2, ref)
		if err != nil {
			return nil, err
		}
		b, err := wantBool(op, args, 1, 2, ref)
		if err != nil {
			return nil, err
		}
		return ir.Bool(a == b), nil

	case "eq", "neq":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		equal := ir.Equal(args[0], args[1])
		if op == "neq" {
			equal = !equal
		}
		return ir.Bool(equal), nil

	case "lt", "lte", "gt", "gte":
		a, err := wantInt(op, args, 0, 2, ref)
		if err != nil {
			return nil, err
		}
		b, err := wantInt(op, args, 1, 2, ref)
		if err != nil {
			return nil, err
		}
		c := a.Big().Cmp(b.Big())
		switch op {
		case "lt":
			return ir.Bool(c < 0), nil
		case "lte":
			return ir.Bool(c <= 0), nil
		case "gt":
			return ir.Bool(c > 0), nil
		default:
			return ir.Bool(c >= 0), nil
		}

	case "add", "sub", "mul":
		a, err := wantInt(op, args, 0, 2, ref)
		if err != nil {
			return nil, err
		}
		b, err := wantInt(op, args, 1, 2, ref)
		if err != nil {
			return nil, err
		}
		out := new(apd.BigInt)
		switch op {
		case "add":
			out.Add(a.Big(), b.Big())
		case "sub":
			out.Sub(a.Big(), b.Big())
		case "mul":
			out.Mul(a.Big(), b.Big())
		}
		return ir.NewIntFromBig(out), nil

	case "div", "mod":
		a, err := wantInt(op, args, 0, 2, ref)
		if err != nil {
			return nil, err
		}
		b, err := wantInt(op, args, 1, 2, ref)
		if err != nil {
			return nil, err
		}
		if b.Big().Sign() == 0 {
			return nil, errDivisionByZero(ref)
		}
		// Truncated division: the quotient rounds toward zero and the
		// remainder takes the dividend's sign, so -7 div 2 = -3 and
		// -7 mod 2 = -1.
		out := new(apd.BigInt)
		if op == "div" {
			out.Quo(a.Big(), b.Big())
		} else {
			out.Rem(a.Big(), b.Big())
		}
		return ir.NewIntFromBig(out), nil

	case "neg":
		a, err := wantInt(op, args, 0, 1, ref)
		if err != nil {
			return nil, err
		}
		return ir.NewIntFromBig(new(apd.BigInt).Neg(a.Big())), nil

	case "pow":
		return applyPow(args, ref)

	case "in":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		switch coll := args[1].(type) {
		case ir.Set:
			return ir.Bool(coll.Contains(args[0])), nil
		case ir.List:
			for _, e := range coll.Elems() {
				if ir.Equal(e, args[0]) {
					return ir.Bool(true), nil
				}
			}
			return ir.Bool(false), nil
		default:
			return nil, errType(op, "a set or list on the right", args[1], ref)
		}

	case "contains":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		s, ok := args[0].(ir.Set)
		if !ok {
			return nil, errType(op, "a set on the left", args[0], ref)
		}
		return ir.Bool(s.Contains(args[1])), nil

	case "union", "intersect", "exclude":
		return applySetOp(op, args, ref)

	case "size":
		if len(args) != 1 {
			return nil, errArity(op, 1, len(args), ref)
		}
		switch c := args[0].(type) {
		case ir.Set:
			return ir.NewInt(int64(c.Len())), nil
		case ir.List:
			return ir.NewInt(int64(c.Len())), nil
		case ir.Map:
			return ir.NewInt(int64(c.Len())), nil
		case ir.Str:
			return ir.NewInt(int64(len(c))), nil
		default:
			return nil, errType(op, "a collection", args[0], ref)
		}

	case "isEmpty":
		n, err := applyOp("size", args, ref)
		if err != nil {
			return nil, err
		}
		return ir.Bool(n.(ir.Int).Big().Sign() == 0), nil

	case "to", "range":
		return applyRange(op, args, ref)

	case "append":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		l, ok := args[0].(ir.List)
		if !ok {
			return nil, errType(op, "a list on the left", args[0], ref)
		}
		elems := make([]ir.Value, 0, l.Len()+1)
		elems = append(elems, l.Elems()...)
		elems = append(elems, args[1])
		return ir.NewList(elems...), nil

	case "concat":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		a, ok := args[0].(ir.List)
		if !ok {
			return nil, errType(op, "lists", args[0], ref)
		}
		b, ok := args[1].(ir.List)
		if !ok {
			return nil, errType(op, "lists", args[1], ref)
		}
		elems := make([]ir.Value, 0, a.Len()+b.Len())
		elems = append(elems, a.Elems()...)
		elems = append(elems, b.Elems()...)
		return ir.NewList(elems...), nil

	case "head", "tail":
		if len(args) != 1 {
			return nil, errArity(op, 1, len(args), ref)
		}
		l, ok := args[0].(ir.List)
		if !ok {
			return nil, errType(op, "a list", args[0], ref)
		}
		if l.Len() == 0 {
			return nil, errOutOfDomain(op+" of an empty list", ref)
		}
		if op == "head" {
			return l.Elems()[0], nil
		}
		return ir.NewList(l.Elems()[1:]...), nil

	case "nth":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		l, ok := args[0].(ir.List)
		if !ok {
			return nil, errType(op, "a list", args[0], ref)
		}
		i, err := wantIndex(op, args[1], ref)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= int64(l.Len()) {
			return nil, errOutOfDomain("list index out of range", ref)
		}
		return l.Elems()[i], nil

	case "item":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		t, ok := args[0].(ir.Tuple)
		if !ok {
			return nil, errType(op, "a tuple", args[0], ref)
		}
		i, err := wantIndex(op, args[1], ref)
		if err != nil {
			return nil, err
		}
		// Tuple components are addressed 1-based.
		if i < 1 || i > int64(t.Len()) {
			return nil, errOutOfDomain("tuple index out of range", ref)
		}
		return t.Elems()[i-1], nil

	case "get":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		m, ok := args[0].(ir.Map)
		if !ok {
			return nil, errType(op, "a map", args[0], ref)
		}
		v, found := m.Get(args[1])
		if !found {
			return nil, errOutOfDomain("key "+ir.Format(args[1])+" not in map", ref)
		}
		return v, nil

	case "put":
		if len(args) != 3 {
			return nil, errArity(op, 3, len(args), ref)
		}
		m, ok := args[0].(ir.Map)
		if !ok {
			return nil, errType(op, "a map", args[0], ref)
		}
		return m.Put(args[1], args[2]), nil

	case "has":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		m, ok := args[0].(ir.Map)
		if !ok {
			return nil, errType(op, "a map", args[0], ref)
		}
		_, found := m.Get(args[1])
		return ir.Bool(found), nil

	case "keys":
		if len(args) != 1 {
			return nil, errArity(op, 1, len(args), ref)
		}
		m, ok := args[0].(ir.Map)
		if !ok {
			return nil, errType(op, "a map", args[0], ref)
		}
		return m.Keys(), nil

	case "field":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		r, ok := args[0].(ir.Record)
		if !ok {
			return nil, errType(op, "a record", args[0], ref)
		}
		name, ok := args[1].(ir.Str)
		if !ok {
			return nil, errType(op, "a field name", args[1], ref)
		}
		v, found := r.Get(string(name))
		if !found {
			return nil, errOutOfDomain("record has no field "+string(name), ref)
		}
		return v, nil

	case "with":
		if len(args) != 3 {
			return nil, errArity(op, 3, len(args), ref)
		}
		r, ok := args[0].(ir.Record)
		if !ok {
			return nil, errType(op, "a record", args[0], ref)
		}
		name, ok := args[1].(ir.Str)
		if !ok {
			return nil, errType(op, "a field name", args[1], ref)
		}
		out, found := r.With(string(name), args[2])
		if !found {
			return nil, errOutOfDomain("record has no field "+string(name), ref)
		}
		return out, nil

	case "tag":
		if len(args) != 1 {
			return nil, errArity(op, 1, len(args), ref)
		}
		v, ok := args[0].(ir.Variant)
		if !ok {
			return nil, errType(op, "a variant", args[0], ref)
		}
		return ir.Str(v.Tag), nil

	case "unwrap":
		if len(args) != 1 {
			return nil, errArity(op, 1, len(args), ref)
		}
		v, ok := args[0].(ir.Variant)
		if !ok {
			return nil, errType(op, "a variant", args[0], ref)
		}
		return v.Val, nil

	case "is":
		if len(args) != 2 {
			return nil, errArity(op, 2, len(args), ref)
		}
		v, ok := args[0].(ir.Variant)
		if !ok {
			return nil, errType(op, "a variant", args[0], ref)
		}
		tag, ok := args[1].(ir.Str)
		if !ok {
			return nil, errType(op, "a tag name", args[1], ref)
		}
		return ir.Bool(v.Tag == string(tag)), nil

	default:
		return nil, errUnbound("operator "+op, ref)
	}
}

func applySetOp(op string, args []ir.Value, ref ir.Ref) (ir.Value, error) {
	if len(args) != 2 {
		return nil, errArity(op, 2, len(args), ref)
	}
	a, ok := args[0].(ir.Set)
	if !ok {
		return nil, errType(op, "sets", args[0], ref)
	}
	b, ok := args[1].(ir.Set)
	if !ok {
		return nil, errType(op, "sets", args[1], ref)
	}
	switch op {
	case "union":
		elems := make([]ir.Value, 0, a.Len()+b.Len())
		elems = append(elems, a.Elems()...)
		elems = append(elems, b.Elems()...)
		return ir.NewSet(elems...), nil
	case "intersect":
		var elems []ir.Value
		for _, e := range a.Elems() {
			if b.Contains(e) {
				elems = append(elems, e)
			}
		}
		return ir.NewSet(elems...), nil
	default: // exclude
		var elems []ir.Value
		for _, e := range a.Elems() {
			if !b.Contains(e) {
				elems = append(elems, e)
			}
		}
		return ir.NewSet(elems...), nil
	}
}

// applyRange builds integer ranges: "to" is inclusive and yields a set,
// "range" is end-exclusive and yields a list. An inverted range is
// empty. The span is capped so a spec cannot request an unbounded
// materialization.
func applyRange(op string, args []ir.Value, ref ir.Ref) (ir.Value, error) {
	if len(args) != 2 {
		return nil, errArity(op, 2, len(args), ref)
	}
	lo, err := wantInt(op, args, 0, 2, ref)
	if err != nil {
		return nil, err
	}
	hi, err := wantInt(op, args, 1, 2, ref)
	if err != nil {
		return nil, err
	}
	span := new(apd.BigInt).Sub(hi.Big(), lo.Big())
	if op == "to" {
		span.Add(span, apd.NewBigInt(1))
	}
	if span.Sign() <= 0 {
		if op == "to" {
			return ir.NewSet(), nil
		}
		return ir.NewList(), nil
	}
	if !span.IsInt64() || span.Int64() > maxSpan {
		return nil, errBound("integer range exceeds the synthetic bound", ref)
	}
	n := span.Int64()
	elems := make([]ir.Value, n)
	cur := new(apd.BigInt).Set(lo.Big())
	one := apd.NewBigInt(1)
	for i := int64(0); i < n; i++ {
		elems[i] = ir.NewIntFromBig(cur)
		cur = new(apd.BigInt).Add(cur, one)
	}
	if op == "to" {
		return ir.NewSet(elems...), nil
	}
	return ir.NewList(elems...), nil
}

func applyPow(args []ir.Value, ref ir.Ref) (ir.Value, error) {
	base, err := wantInt("pow", args, 0, 2, ref)
	if err != nil {
		return nil, err
	}
	exp, err := wantInt("pow", args, 1, 2, ref)
	if err != nil {
		return nil, err
	}
	if exp.Big().Sign() < 0 {
		return nil, errOutOfDomain("negative exponent", ref)
	}
	e, ok := exp.Int64()
	if !ok || e > maxSpan {
		return nil, errBound("exponent exceeds the synthetic bound", ref)
	}
	result := apd.NewBigInt(1)
	b := new(apd.BigInt).Set(base.Big())
	for e > 0 {
		if e&1 == 1 {
			result.Mul(result, b)
		}
		e >>= 1
		if e > 0 {
			b.Mul(b, b)
		}
	}
	return ir.NewIntFromBig(result), nil
}

func wantBool(op string, args []ir.Value, i, arity int, ref ir.Ref) (bool, error) {
	if len(args) != arity {
		return false, errArity(op, arity, len(args), ref)
	}
	b, ok := args[i].(ir.Bool)
	if !ok {
		return false, errType(op, "bool operands", args[i], ref)
	}
	return bool(b), nil
}

func wantInt(op string, args []ir.Value, i, arity int, ref ir.Ref) (ir.Int, error) {
	if len(args) != arity {
		return ir.Int{}, errArity(op, arity, len(args), ref)
	}
	n, ok := args[i].(ir.Int)
	if !ok {
		return ir.Int{}, errType(op, "integer operands", args[i], ref)
	}
	return n, nil
}

func wantIndex(op string, v ir.Value, ref ir.Ref) (int64, error) {
	n, ok := v.(ir.Int)
	if !ok {
		return 0, errType(op, "an integer index", v, ref)
	}
	i, fits := n.Int64()
	if !fits {
		return 0, errOutOfDomain("index out of range", ref)
	}
	return i, nil
}
