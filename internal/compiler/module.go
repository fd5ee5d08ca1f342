// Package compiler turns the flattened module document the upstream
// toolchain produces (a CUE value) into the engine's IR. The document
// is structured data, not surface syntax: name resolution, import
// flattening, and type checking all happened upstream.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/tracewalk/tracewalk/internal/ir"
)

// CompileModule parses a CUE value into an ir.Module.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The CUE value should be the module struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`module: { name: "counter", ... }`)
//	mod, err := CompileModule(v.LookupPath(cue.ParsePath("module")))
func CompileModule(v cue.Value) (*ir.Module, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	mod := &ir.Module{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "module name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	mod.Name = name

	mod.Vars, err = parseVars(v)
	if err != nil {
		return nil, err
	}

	mod.Defs, err = parseDefs(v)
	if err != nil {
		return nil, err
	}

	initVal := v.LookupPath(cue.ParsePath("init"))
	if initVal.Exists() {
		mod.Init, err = compileExpr(initVal)
		if err != nil {
			return nil, err
		}
	}

	stepVal := v.LookupPath(cue.ParsePath("step"))
	if stepVal.Exists() {
		mod.Step, err = compileExpr(stepVal)
		if err != nil {
			return nil, err
		}
	}

	invVal := v.LookupPath(cue.ParsePath("invariant"))
	if invVal.Exists() {
		mod.Invariant, err = compileExpr(invVal)
		if err != nil {
			return nil, err
		}
	}

	mod.Tests, err = parseTests(v)
	if err != nil {
		return nil, err
	}

	if err := validateModule(mod, v); err != nil {
		return nil, err
	}
	return mod, nil
}

// parseVars extracts the state variable declarations.
func parseVars(v cue.Value) ([]ir.VarDecl, error) {
	var vars []ir.VarDecl

	varsVal := v.LookupPath(cue.ParsePath("vars"))
	if !varsVal.Exists() {
		return vars, nil // a pure-definition module has no state
	}

	iter, err := varsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		item := iter.Value()

		name, err := item.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		decl := ir.VarDecl{Name: name}
		typeVal := item.LookupPath(cue.ParsePath("type"))
		if typeVal.Exists() {
			decl.Type, err = typeVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}
		vars = append(vars, decl)
	}

	return vars, nil
}

// parseDefs extracts the named pure definitions.
func parseDefs(v cue.Value) ([]ir.Def, error) {
	var defs []ir.Def

	defsVal := v.LookupPath(cue.ParsePath("defs"))
	if !defsVal.Exists() {
		return defs, nil
	}

	iter, err := defsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		item := iter.Value()

		name, err := item.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		def := ir.Def{Name: name, Ref: refOf(item)}

		paramsVal := item.LookupPath(cue.ParsePath("params"))
		if paramsVal.Exists() {
			pIter, err := paramsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for pIter.Next() {
				p, err := pIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				def.Params = append(def.Params, p)
			}
		}

		bodyVal := item.LookupPath(cue.ParsePath("body"))
		if !bodyVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("defs.%s.body", name),
				Message: "definition body is required",
				Pos:     item.Pos(),
			}
		}
		def.Body, err = compileExpr(bodyVal)
		if err != nil {
			return nil, err
		}

		defs = append(defs, def)
	}

	return defs, nil
}

// parseTests extracts the named nullary test expressions.
func parseTests(v cue.Value) ([]ir.Test, error) {
	var tests []ir.Test

	testsVal := v.LookupPath(cue.ParsePath("tests"))
	if !testsVal.Exists() {
		return tests, nil
	}

	iter, err := testsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		item := iter.Value()

		name, err := item.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		bodyVal := item.LookupPath(cue.ParsePath("body"))
		if !bodyVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("tests.%s.body", name),
				Message: "test body is required",
				Pos:     item.Pos(),
			}
		}
		body, err := compileExpr(bodyVal)
		if err != nil {
			return nil, err
		}

		tests = append(tests, ir.Test{Name: name, Body: body, Ref: refOf(item)})
	}

	return tests, nil
}

// validateModule rejects documents the drivers could not run: duplicate
// definitions, duplicate variables, and assignments to undeclared
// variables are compile-time errors, not runtime ones.
func validateModule(mod *ir.Module, v cue.Value) error {
	if _, err := mod.BuildLookup(); err != nil {
		return &CompileError{
			Field:   "defs",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}

	seen := make(map[string]bool, len(mod.Vars))
	for _, decl := range mod.Vars {
		if seen[decl.Name] {
			return &CompileError{
				Field:   "vars",
				Message: fmt.Sprintf("duplicate state variable %q", decl.Name),
				Pos:     v.Pos(),
			}
		}
		seen[decl.Name] = true
	}

	for _, root := range moduleRoots(mod) {
		if err := checkAssignTargets(mod, root.expr, root.field, v); err != nil {
			return err
		}
	}
	return nil
}

type exprRoot struct {
	field string
	expr  ir.Expr
}

func moduleRoots(mod *ir.Module) []exprRoot {
	roots := []exprRoot{}
	if mod.Init != nil {
		roots = append(roots, exprRoot{"init", mod.Init})
	}
	if mod.Step != nil {
		roots = append(roots, exprRoot{"step", mod.Step})
	}
	if mod.Invariant != nil {
		roots = append(roots, exprRoot{"invariant", mod.Invariant})
	}
	for _, d := range mod.Defs {
		roots = append(roots, exprRoot{"defs." + d.Name, d.Body})
	}
	for _, t := range mod.Tests {
		roots = append(roots, exprRoot{"tests." + t.Name, t.Body})
	}
	return roots
}

func checkAssignTargets(mod *ir.Module, e ir.Expr, field string, v cue.Value) error {
	bad := ""
	walkExpr(e, func(node ir.Expr) {
		if a, ok := node.(ir.Assign); ok && !mod.IsVar(a.Var) && bad == "" {
			bad = a.Var
		}
	})
	if bad != "" {
		return &CompileError{
			Field:   field,
			Message: fmt.Sprintf("assignment to undeclared variable %q", bad),
			Pos:     v.Pos(),
		}
	}
	return nil
}

// walkExpr visits every node of the expression tree in preorder.
func walkExpr(e ir.Expr, visit func(ir.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case ir.App:
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case ir.Call:
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case ir.Lambda:
		walkExpr(n.Body, visit)
	case ir.AnyOf:
		for _, a := range n.Arms {
			walkExpr(a, visit)
		}
	case ir.AllOf:
		for _, a := range n.Arms {
			walkExpr(a, visit)
		}
	case ir.Input:
		walkExpr(n.Domain, visit)
	case ir.Assign:
		walkExpr(n.Val, visit)
	case ir.Let:
		walkExpr(n.Bind, visit)
		walkExpr(n.Body, visit)
	case ir.If:
		walkExpr(n.Cond, visit)
		walkExpr(n.Then, visit)
		walkExpr(n.Else, visit)
	case ir.SetLit:
		for _, a := range n.Elems {
			walkExpr(a, visit)
		}
	case ir.ListLit:
		for _, a := range n.Elems {
			walkExpr(a, visit)
		}
	case ir.TupleLit:
		for _, a := range n.Elems {
			walkExpr(a, visit)
		}
	case ir.RecordLit:
		for _, f := range n.Fields {
			walkExpr(f.Val, visit)
		}
	case ir.MapLit:
		for _, p := range n.Pairs {
			walkExpr(p[0], visit)
			walkExpr(p[1], visit)
		}
	case ir.VariantLit:
		walkExpr(n.Val, visit)
	}
}
