package ir

import "fmt"

// Ref is an optional source-location reference carried by IR nodes. The
// engine never opens source files itself; refs are resolved by the
// upstream toolchain when rendering diagnostics.
type Ref struct {
	File string
	Line int
	Col  int
}

// IsValid reports whether the reference points at a source position.
func (r Ref) IsValid() bool { return r.File != "" && r.Line > 0 }

func (r Ref) String() string {
	if !r.IsValid() {
		return "<unknown>"
	}
	if r.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Col)
	}
	return fmt.Sprintf("%s:%d", r.File, r.Line)
}

// Expr is the sealed expression interface. The set of implementations is
// closed; the evaluator dispatches on the concrete type.
type Expr interface {
	expr() // Sealed - only this package's node types implement it
}

// Lit is a literal value.
type Lit struct {
	Val Value
}

func (Lit) expr() {}

// Name references a state variable, a let binding, a lambda parameter,
// or a nullary definition, resolved in that order at evaluation time.
type Name struct {
	Ident string
	Ref   Ref
}

func (Name) expr() {}

// App applies a builtin operator to its operands.
type App struct {
	Op   string
	Args []Expr
	Ref  Ref
}

func (App) expr() {}

// Call applies a user definition from the module's lookup table.
type Call struct {
	Name string
	Args []Expr
	Ref  Ref
}

func (Call) expr() {}

// Lambda is an anonymous function, legal only as an operand of the
// higher-order builtins (map, filter, fold, exists, forall).
type Lambda struct {
	Params []string
	Body   Expr
}

func (Lambda) expr() {}

// AnyOf is the bounded nondeterministic choice: evaluate each arm's
// enabled-ness and uniformly pick one enabled arm via the random source.
// With no enabled arm the form is false, not an error.
type AnyOf struct {
	Arms []Expr
	Ref  Ref
}

func (AnyOf) expr() {}

// AllOf is conjunction over the arms, short-circuiting on the first arm
// that does not hold. Assignments made by earlier arms stay pending.
type AllOf struct {
	Arms []Expr
}

func (AllOf) expr() {}

// Input draws one element uniformly from a finite domain. The domain
// expression must evaluate to a non-empty set or list; for declared but
// unenumerable domains the upstream compiler substitutes a bounded
// synthetic range.
type Input struct {
	Domain Expr
	Ref    Ref
}

func (Input) expr() {}

// Assign proposes the next-state value of a variable. It evaluates to
// true; the binding commits only if the whole enclosing action
// application holds.
type Assign struct {
	Var string
	Val Expr
	Ref Ref
}

func (Assign) expr() {}

// Let binds a name to a value for the scope of Body.
type Let struct {
	Name string
	Bind Expr
	Body Expr
}

func (Let) expr() {}

// If is the conditional expression. Both branches are always present.
type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (If) expr() {}

// SetLit constructs a set from element expressions.
type SetLit struct {
	Elems []Expr
}

func (SetLit) expr() {}

// ListLit constructs a list from element expressions.
type ListLit struct {
	Elems []Expr
}

func (ListLit) expr() {}

// TupleLit constructs a tuple from component expressions.
type TupleLit struct {
	Elems []Expr
}

func (TupleLit) expr() {}

// FieldExpr is one field of a record literal.
type FieldExpr struct {
	Name string
	Val  Expr
}

// RecordLit constructs a record from field expressions.
type RecordLit struct {
	Fields []FieldExpr
}

func (RecordLit) expr() {}

// MapLit constructs a map from key/value expression pairs.
type MapLit struct {
	Pairs [][2]Expr
}

func (MapLit) expr() {}

// VariantLit constructs a variant with a constructor tag and an optional
// payload expression (nil payload means the unit tuple).
type VariantLit struct {
	Tag string
	Val Expr
}

func (VariantLit) expr() {}
