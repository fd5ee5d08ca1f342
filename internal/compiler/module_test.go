package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewalk/tracewalk/internal/ir"
)

func compileSource(t *testing.T, src string) (*ir.Module, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileModule(v.LookupPath(cue.ParsePath("module")))
}

const counterSource = `
module: {
	name: "counter"
	vars: [{name: "x", type: "int"}]
	init: {kind: "assign", var: "x", value: {kind: "lit", value: 0}}
	step: {kind: "assign", var: "x", value: {
		kind: "app", op: "add"
		args: [{kind: "name", ident: "x"}, {kind: "lit", value: 1}]
	}}
	invariant: {kind: "app", op: "lt", args: [
		{kind: "name", ident: "x"},
		{kind: "lit", value: 3},
	]}
	tests: [{name: "startsAtZero", body: {kind: "lit", value: true}}]
}
`

func TestCompileModuleCounter(t *testing.T) {
	mod, err := compileSource(t, counterSource)
	require.NoError(t, err)

	assert.Equal(t, "counter", mod.Name)
	require.Len(t, mod.Vars, 1)
	assert.Equal(t, "x", mod.Vars[0].Name)
	assert.Equal(t, "int", mod.Vars[0].Type)

	initAssign, ok := mod.Init.(ir.Assign)
	require.True(t, ok)
	assert.Equal(t, "x", initAssign.Var)

	stepAssign, ok := mod.Step.(ir.Assign)
	require.True(t, ok)
	app, ok := stepAssign.Val.(ir.App)
	require.True(t, ok)
	assert.Equal(t, "add", app.Op)
	require.Len(t, app.Args, 2)

	inv, ok := mod.Invariant.(ir.App)
	require.True(t, ok)
	assert.Equal(t, "lt", inv.Op)

	require.Len(t, mod.Tests, 1)
	assert.Equal(t, "startsAtZero", mod.Tests[0].Name)
}

func TestCompileModuleDefsAndCalls(t *testing.T) {
	mod, err := compileSource(t, `
module: {
	name: "defs"
	defs: [{
		name: "double"
		params: ["n"]
		body: {kind: "app", op: "mul", args: [
			{kind: "name", ident: "n"},
			{kind: "lit", value: 2},
		]}
	}]
	tests: [{name: "callsDouble", body: {kind: "app", op: "eq", args: [
		{kind: "call", name: "double", args: [{kind: "lit", value: 21}]},
		{kind: "lit", value: 42},
	]}}]
}
`)
	require.NoError(t, err)

	require.Len(t, mod.Defs, 1)
	assert.Equal(t, "double", mod.Defs[0].Name)
	assert.Equal(t, []string{"n"}, mod.Defs[0].Params)

	body, ok := mod.Tests[0].Body.(ir.App)
	require.True(t, ok)
	call, ok := body.Args[0].(ir.Call)
	require.True(t, ok)
	assert.Equal(t, "double", call.Name)
}

func TestCompileModuleNondeterministicForms(t *testing.T) {
	mod, err := compileSource(t, `
module: {
	name: "dice"
	vars: [{name: "face", type: "int"}]
	init: {kind: "assign", var: "face", value: {kind: "lit", value: 1}}
	step: {kind: "any", arms: [
		{kind: "assign", var: "face", value: {kind: "oneOf", domain: {
			kind: "app", op: "to"
			args: [{kind: "lit", value: 1}, {kind: "lit", value: 6}]
		}}},
		{kind: "all", arms: [
			{kind: "lit", value: true},
			{kind: "assign", var: "face", value: {kind: "lit", value: 1}},
		]},
	]}
}
`)
	require.NoError(t, err)

	anyOf, ok := mod.Step.(ir.AnyOf)
	require.True(t, ok)
	require.Len(t, anyOf.Arms, 2)

	arm0, ok := anyOf.Arms[0].(ir.Assign)
	require.True(t, ok)
	_, ok = arm0.Val.(ir.Input)
	require.True(t, ok)

	_, ok = anyOf.Arms[1].(ir.AllOf)
	require.True(t, ok)
}

func TestCompileModuleCompositeLiterals(t *testing.T) {
	mod, err := compileSource(t, `
module: {
	name: "shapes"
	defs: [{name: "sample", body: {kind: "rec", fields: [
		{name: "xs", value: {kind: "set", elems: [
			{kind: "lit", value: 1}, {kind: "lit", value: 2},
		]}},
		{name: "pair", value: {kind: "tup", elems: [
			{kind: "lit", value: "a"}, {kind: "lit", value: true},
		]}},
		{name: "tally", value: {kind: "map", entries: [
			{key: {kind: "lit", value: "hits"}, value: {kind: "lit", value: 0}},
		]}},
		{name: "status", value: {kind: "variant", tag: "Idle"}},
	]}}]
}
`)
	require.NoError(t, err)

	rec, ok := mod.Defs[0].Body.(ir.RecordLit)
	require.True(t, ok)
	require.Len(t, rec.Fields, 4)
	_, ok = rec.Fields[0].Val.(ir.SetLit)
	assert.True(t, ok)
	_, ok = rec.Fields[1].Val.(ir.TupleLit)
	assert.True(t, ok)
	_, ok = rec.Fields[2].Val.(ir.MapLit)
	assert.True(t, ok)
	variant, ok := rec.Fields[3].Val.(ir.VariantLit)
	require.True(t, ok)
	assert.Equal(t, "Idle", variant.Tag)
	assert.Nil(t, variant.Val)
}

func TestCompileModuleBigIntLiteral(t *testing.T) {
	mod, err := compileSource(t, `
module: {
	name: "big"
	defs: [{name: "huge", body: {kind: "lit", value: 36893488147419103232}}]
}
`)
	require.NoError(t, err)

	lit, ok := mod.Defs[0].Body.(ir.Lit)
	require.True(t, ok)
	n, ok := lit.Val.(ir.Int)
	require.True(t, ok)
	// 2^65 does not fit an int64.
	_, fits := n.Int64()
	assert.False(t, fits)
	assert.Equal(t, "36893488147419103232", n.String())
}

func TestCompileModuleErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name:    "missing name",
			src:     `module: {vars: []}`,
			wantMsg: "module name is required",
		},
		{
			name: "missing expression kind",
			src: `module: {
				name: "m"
				init: {var: "x"}
			}`,
			wantMsg: "no kind",
		},
		{
			name: "unknown expression kind",
			src: `module: {
				name: "m"
				init: {kind: "goto"}
			}`,
			wantMsg: `unknown expression kind "goto"`,
		},
		{
			name: "float literal",
			src: `module: {
				name: "m"
				defs: [{name: "d", body: {kind: "lit", value: 1.5}}]
			}`,
			wantMsg: "unsupported literal kind",
		},
		{
			name: "assignment to undeclared variable",
			src: `module: {
				name: "m"
				vars: [{name: "x"}]
				init: {kind: "assign", var: "y", value: {kind: "lit", value: 0}}
			}`,
			wantMsg: `undeclared variable "y"`,
		},
		{
			name: "duplicate variable",
			src: `module: {
				name: "m"
				vars: [{name: "x"}, {name: "x"}]
			}`,
			wantMsg: `duplicate state variable "x"`,
		},
		{
			name: "duplicate definition",
			src: `module: {
				name: "m"
				defs: [
					{name: "d", body: {kind: "lit", value: 1}},
					{name: "d", body: {kind: "lit", value: 2}},
				]
			}`,
			wantMsg: "duplicate definition",
		},
		{
			name: "test without body",
			src: `module: {
				name: "m"
				tests: [{name: "t"}]
			}`,
			wantMsg: "test body is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileSource(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`module: {
	name: "m"
	init: {kind: "goto"}
}`, cue.Filename("m.cue"))
	require.NoError(t, v.Err())

	_, err := CompileModule(v.LookupPath(cue.ParsePath("module")))
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Pos.IsValid())
	assert.Contains(t, err.Error(), "m.cue")
}
