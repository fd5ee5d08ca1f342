package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// counterCUE is a module whose invariant breaks on the third step.
const counterCUE = `
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
	tests: [
		{name: "additionWorks", body: {kind: "app", op: "eq", args: [
			{kind: "app", op: "add", args: [{kind: "lit", value: 1}, {kind: "lit", value: 2}]},
			{kind: "lit", value: 3},
		]}},
		{name: "divisionByZero", body: {kind: "app", op: "eq", args: [
			{kind: "app", op: "div", args: [{kind: "lit", value: 1}, {kind: "lit", value: 0}]},
			{kind: "lit", value: 0},
		]}},
	]
}
`

func writeModuleFile(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.cue")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

// execute runs the root command with args, capturing stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
