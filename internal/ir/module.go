package ir

import "fmt"

// VarDecl declares one state variable. Type is the surface type name as
// written in the source module; the engine treats it as opaque metadata
// except when emitting interchange headers.
type VarDecl struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Def is a named pure definition. A nullary def behaves as a derived
// value; a def with parameters is applied through Call.
type Def struct {
	Name   string
	Params []string
	Body   Expr
	Ref    Ref
}

// Test is a named nullary boolean expression run by the test driver.
type Test struct {
	Name string
	Body Expr
	Ref  Ref
}

// Module is a flattened, resolved specification module: imports and
// instances are already folded in and every name is unique. Produced by
// the upstream compiler passes; the engine only reads it.
type Module struct {
	Name      string
	Vars      []VarDecl
	Defs      []Def
	Init      Expr
	Step      Expr
	Invariant Expr // optional; nil means no invariant
	Tests     []Test
}

// Lookup is the name → definition table handed to the evaluator.
type Lookup map[string]*Def

// BuildLookup indexes the module's definitions by name.
func (m *Module) BuildLookup() (Lookup, error) {
	table := make(Lookup, len(m.Defs))
	for i := range m.Defs {
		d := &m.Defs[i]
		if _, dup := table[d.Name]; dup {
			return nil, fmt.Errorf("duplicate definition %q in module %q", d.Name, m.Name)
		}
		table[d.Name] = d
	}
	return table, nil
}

// VarNames returns the declared state variable names in module order,
// the order interchange documents list them in.
func (m *Module) VarNames() []string {
	names := make([]string, len(m.Vars))
	for i, v := range m.Vars {
		names[i] = v.Name
	}
	return names
}

// IsVar reports whether name is a declared state variable.
func (m *Module) IsVar(name string) bool {
	for _, v := range m.Vars {
		if v.Name == name {
			return true
		}
	}
	return false
}
