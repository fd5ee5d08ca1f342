package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"github.com/cockroachdb/apd/v3"

	"github.com/tracewalk/tracewalk/internal/ir"
)

// compileExpr parses one expression node. Every node is a struct with a
// "kind" discriminator; the remaining fields depend on the kind.
func compileExpr(v cue.Value) (ir.Expr, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{
			Field:   "expr",
			Message: "expression node has no kind",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	switch kind {
	case "lit":
		return compileLit(v)
	case "name":
		ident, err := v.LookupPath(cue.ParsePath("ident")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Name{Ident: ident, Ref: refOf(v)}, nil
	case "app":
		op, err := v.LookupPath(cue.ParsePath("op")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		args, err := compileExprList(v, "args")
		if err != nil {
			return nil, err
		}
		return ir.App{Op: op, Args: args, Ref: refOf(v)}, nil
	case "call":
		name, err := v.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		args, err := compileExprList(v, "args")
		if err != nil {
			return nil, err
		}
		return ir.Call{Name: name, Args: args, Ref: refOf(v)}, nil
	case "lambda":
		var params []string
		pIter, err := v.LookupPath(cue.ParsePath("params")).List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for pIter.Next() {
			p, err := pIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			params = append(params, p)
		}
		body, err := compileField(v, "body")
		if err != nil {
			return nil, err
		}
		return ir.Lambda{Params: params, Body: body}, nil
	case "any":
		arms, err := compileExprList(v, "arms")
		if err != nil {
			return nil, err
		}
		return ir.AnyOf{Arms: arms, Ref: refOf(v)}, nil
	case "all":
		arms, err := compileExprList(v, "arms")
		if err != nil {
			return nil, err
		}
		return ir.AllOf{Arms: arms}, nil
	case "oneOf":
		domain, err := compileField(v, "domain")
		if err != nil {
			return nil, err
		}
		return ir.Input{Domain: domain, Ref: refOf(v)}, nil
	case "assign":
		target, err := v.LookupPath(cue.ParsePath("var")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		val, err := compileField(v, "value")
		if err != nil {
			return nil, err
		}
		return ir.Assign{Var: target, Val: val, Ref: refOf(v)}, nil
	case "let":
		name, err := v.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		bind, err := compileField(v, "bind")
		if err != nil {
			return nil, err
		}
		body, err := compileField(v, "body")
		if err != nil {
			return nil, err
		}
		return ir.Let{Name: name, Bind: bind, Body: body}, nil
	case "if":
		cond, err := compileField(v, "cond")
		if err != nil {
			return nil, err
		}
		then, err := compileField(v, "then")
		if err != nil {
			return nil, err
		}
		els, err := compileField(v, "else")
		if err != nil {
			return nil, err
		}
		return ir.If{Cond: cond, Then: then, Else: els}, nil
	case "set":
		elems, err := compileExprList(v, "elems")
		if err != nil {
			return nil, err
		}
		return ir.SetLit{Elems: elems}, nil
	case "list":
		elems, err := compileExprList(v, "elems")
		if err != nil {
			return nil, err
		}
		return ir.ListLit{Elems: elems}, nil
	case "tup":
		elems, err := compileExprList(v, "elems")
		if err != nil {
			return nil, err
		}
		return ir.TupleLit{Elems: elems}, nil
	case "rec":
		return compileRecordLit(v)
	case "map":
		return compileMapLit(v)
	case "variant":
		tag, err := v.LookupPath(cue.ParsePath("tag")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		node := ir.VariantLit{Tag: tag}
		if v.LookupPath(cue.ParsePath("value")).Exists() {
			node.Val, err = compileField(v, "value")
			if err != nil {
				return nil, err
			}
		}
		return node, nil
	default:
		return nil, &CompileError{
			Field:   "expr",
			Message: fmt.Sprintf("unknown expression kind %q", kind),
			Pos:     v.Pos(),
		}
	}
}

// compileLit parses a scalar literal. Composite literals arrive as set,
// list, tup, rec, map, or variant nodes, never as lit.
func compileLit(v cue.Value) (ir.Expr, error) {
	val := v.LookupPath(cue.ParsePath("value"))
	if !val.Exists() {
		return nil, &CompileError{
			Field:   "lit",
			Message: "literal has no value",
			Pos:     v.Pos(),
		}
	}

	switch val.Kind() {
	case cue.BoolKind:
		b, err := val.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Lit{Val: ir.Bool(b)}, nil
	case cue.IntKind:
		// CUE integers are arbitrary precision; go through math/big
		// rather than losing bits in an int64.
		big, err := val.Int(nil)
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Lit{Val: ir.NewIntFromBig(new(apd.BigInt).SetMathBigInt(big))}, nil
	case cue.StringKind:
		s, err := val.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Lit{Val: ir.Str(s)}, nil
	default:
		return nil, &CompileError{
			Field:   "lit",
			Message: fmt.Sprintf("unsupported literal kind %v (floats are not a value kind)", val.Kind()),
			Pos:     val.Pos(),
		}
	}
}

func compileRecordLit(v cue.Value) (ir.Expr, error) {
	node := ir.RecordLit{}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	iter, err := fieldsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		item := iter.Value()
		name, err := item.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		fieldVal, err := compileField(item, "value")
		if err != nil {
			return nil, err
		}
		node.Fields = append(node.Fields, ir.FieldExpr{Name: name, Val: fieldVal})
	}
	return node, nil
}

func compileMapLit(v cue.Value) (ir.Expr, error) {
	node := ir.MapLit{}

	entriesVal := v.LookupPath(cue.ParsePath("entries"))
	iter, err := entriesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		item := iter.Value()
		key, err := compileField(item, "key")
		if err != nil {
			return nil, err
		}
		val, err := compileField(item, "value")
		if err != nil {
			return nil, err
		}
		node.Pairs = append(node.Pairs, [2]ir.Expr{key, val})
	}
	return node, nil
}

// compileField parses the required expression at path within v.
func compileField(v cue.Value, path string) (ir.Expr, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("missing %s expression", path),
			Pos:     v.Pos(),
		}
	}
	return compileExpr(field)
}

// compileExprList parses the expression list at path within v. A
// missing list is empty, not an error: nullary applications are legal.
func compileExprList(v cue.Value, path string) ([]ir.Expr, error) {
	listVal := v.LookupPath(cue.ParsePath(path))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.Expr
	for iter.Next() {
		e, err := compileExpr(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// refOf lifts a CUE source position into an IR reference.
func refOf(v cue.Value) ir.Ref {
	pos := v.Pos()
	if !pos.IsValid() {
		return ir.Ref{}
	}
	return ir.Ref{File: pos.Filename(), Line: pos.Line(), Col: pos.Column()}
}
