package ir

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Value is a sealed interface representing runtime values.
// Only Bool, Int, Str, Set, List, Tuple, Record, Variant, and Map
// implement it. There is no null and no float: integers are arbitrary
// precision and absence is modeled with variants.
type Value interface {
	value() // Sealed - only these types implement it

	// Kind returns the value's kind tag.
	Kind() Kind
}

// Kind tags the nine value kinds. The numeric order of the tags is the
// cross-kind component of the total structural order (see Compare).
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindStr
	KindSet
	KindList
	KindTuple
	KindRecord
	KindVariant
	KindMap
)

// String returns the lowercase kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindStr:
		return "str"
	case KindSet:
		return "set"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	case KindRecord:
		return "record"
	case KindVariant:
		return "variant"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Bool represents a boolean value.
type Bool bool

func (Bool) value()     {}
func (Bool) Kind() Kind { return KindBool }

// Str represents a string value.
type Str string

func (Str) value()     {}
func (Str) Kind() Kind { return KindStr }

// Int represents an arbitrary-precision integer. The backing bignum is
// never mutated after construction; arithmetic always allocates.
type Int struct {
	x *apd.BigInt
}

func (Int) value()     {}
func (Int) Kind() Kind { return KindInt }

// NewInt creates an Int from a machine integer.
func NewInt(n int64) Int {
	return Int{x: apd.NewBigInt(n)}
}

// NewIntFromBig creates an Int owning a copy of x.
func NewIntFromBig(x *apd.BigInt) Int {
	return Int{x: new(apd.BigInt).Set(x)}
}

// ParseInt parses a decimal integer literal of any magnitude.
func ParseInt(s string) (Int, error) {
	x, ok := new(apd.BigInt).SetString(s, 10)
	if !ok {
		return Int{}, fmt.Errorf("invalid integer literal %q", s)
	}
	return Int{x: x}, nil
}

// Big returns the backing bignum. Callers must not mutate it.
func (n Int) Big() *apd.BigInt {
	if n.x == nil {
		return apd.NewBigInt(0)
	}
	return n.x
}

// Int64 returns the machine value and whether it fits in an int64.
func (n Int) Int64() (int64, bool) {
	b := n.Big()
	if !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

func (n Int) String() string { return n.Big().String() }

// Set represents a finite set. Elements are held sorted by Compare and
// deduplicated, so two sets with the same members are deep-equal.
type Set struct {
	elems []Value
}

func (Set) value()     {}
func (Set) Kind() Kind { return KindSet }

// NewSet builds a set from the given elements, sorting and deduplicating.
func NewSet(elems ...Value) Set {
	sorted := make([]Value, 0, len(elems))
	for _, e := range elems {
		sorted = append(sorted, e)
	}
	sortValues(sorted)
	out := sorted[:0]
	for i, e := range sorted {
		if i == 0 || Compare(sorted[i-1], e) != 0 {
			out = append(out, e)
		}
	}
	return Set{elems: out}
}

// Elems returns the elements in canonical order. Callers must not mutate
// the returned slice.
func (s Set) Elems() []Value { return s.elems }

// Len returns the number of elements.
func (s Set) Len() int { return len(s.elems) }

// Contains reports whether v is a member.
func (s Set) Contains(v Value) bool {
	for _, e := range s.elems {
		c := Compare(e, v)
		if c == 0 {
			return true
		}
		if c > 0 {
			return false
		}
	}
	return false
}

// List represents an ordered sequence.
type List struct {
	elems []Value
}

func (List) value()     {}
func (List) Kind() Kind { return KindList }

// NewList builds a list from the given elements in order.
func NewList(elems ...Value) List {
	out := make([]Value, len(elems))
	copy(out, elems)
	return List{elems: out}
}

// Elems returns the elements in order. Callers must not mutate the
// returned slice.
func (l List) Elems() []Value { return l.elems }

// Len returns the number of elements.
func (l List) Len() int { return len(l.elems) }

// Tuple represents a fixed-arity product value.
type Tuple struct {
	elems []Value
}

func (Tuple) value()     {}
func (Tuple) Kind() Kind { return KindTuple }

// NewTuple builds a tuple from the given components in order.
func NewTuple(elems ...Value) Tuple {
	out := make([]Value, len(elems))
	copy(out, elems)
	return Tuple{elems: out}
}

// Elems returns the components in order. Callers must not mutate the
// returned slice.
func (t Tuple) Elems() []Value { return t.elems }

// Len returns the arity.
func (t Tuple) Len() int { return len(t.elems) }

// Unit is the zero-arity tuple, used as the payload of bare variants.
func Unit() Tuple { return Tuple{} }

// Field is one named record field.
type Field struct {
	Name  string
	Value Value
}

// Record represents a value with named fields. Fields are held sorted by
// name so two records with the same fields are deep-equal.
type Record struct {
	fields []Field
}

func (Record) value()     {}
func (Record) Kind() Kind { return KindRecord }

// NewRecord builds a record, sorting fields by name. A duplicate field
// name keeps the last occurrence.
func NewRecord(fields ...Field) Record {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sortFields(sorted)
	out := sorted[:0]
	for i, f := range sorted {
		if i > 0 && sorted[i-1].Name == f.Name {
			out[len(out)-1] = f
			continue
		}
		out = append(out, f)
	}
	return Record{fields: out}
}

// Fields returns the fields in name order. Callers must not mutate the
// returned slice.
func (r Record) Fields() []Field { return r.fields }

// Get returns the named field's value.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// With returns a copy of the record with one field replaced. The field
// must already exist; records never grow fields at runtime.
func (r Record) With(name string, v Value) (Record, bool) {
	for i, f := range r.fields {
		if f.Name == name {
			out := make([]Field, len(r.fields))
			copy(out, r.fields)
			out[i] = Field{Name: name, Value: v}
			return Record{fields: out}, true
		}
	}
	return Record{}, false
}

// Variant represents one constructor of a sum type, carrying a payload.
// Bare constructors carry the unit tuple.
type Variant struct {
	Tag string
	Val Value
}

func (Variant) value()     {}
func (Variant) Kind() Kind { return KindVariant }

// NewVariant builds a variant with the given tag and payload.
func NewVariant(tag string, val Value) Variant {
	if val == nil {
		val = Unit()
	}
	return Variant{Tag: tag, Val: val}
}

// Pair is one map entry.
type Pair struct {
	Key   Value
	Value Value
}

// Map represents a finite function from keys to values. Entries are held
// sorted by key so two maps with the same entries are deep-equal.
type Map struct {
	pairs []Pair
}

func (Map) value()     {}
func (Map) Kind() Kind { return KindMap }

// NewMap builds a map, sorting entries by key. A duplicate key keeps the
// last occurrence.
func NewMap(pairs ...Pair) Map {
	sorted := make([]Pair, len(pairs))
	copy(sorted, pairs)
	sortPairs(sorted)
	out := sorted[:0]
	for i, p := range sorted {
		if i > 0 && Compare(sorted[i-1].Key, p.Key) == 0 {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return Map{pairs: out}
}

// Pairs returns the entries in key order. Callers must not mutate the
// returned slice.
func (m Map) Pairs() []Pair { return m.pairs }

// Len returns the number of entries.
func (m Map) Len() int { return len(m.pairs) }

// Get returns the value bound to key.
func (m Map) Get(key Value) (Value, bool) {
	for _, p := range m.pairs {
		c := Compare(p.Key, key)
		if c == 0 {
			return p.Value, true
		}
		if c > 0 {
			return nil, false
		}
	}
	return nil, false
}

// Put returns a copy of the map with key bound to v, inserting or
// replacing as needed.
func (m Map) Put(key, v Value) Map {
	out := make([]Pair, 0, len(m.pairs)+1)
	inserted := false
	for _, p := range m.pairs {
		c := Compare(p.Key, key)
		if c == 0 {
			out = append(out, Pair{Key: key, Value: v})
			inserted = true
			continue
		}
		if c > 0 && !inserted {
			out = append(out, Pair{Key: key, Value: v})
			inserted = true
		}
		out = append(out, p)
	}
	if !inserted {
		out = append(out, Pair{Key: key, Value: v})
	}
	return Map{pairs: out}
}

// Keys returns the key set.
func (m Map) Keys() Set {
	keys := make([]Value, len(m.pairs))
	for i, p := range m.pairs {
		keys[i] = p.Key
	}
	// Already sorted and unique by construction.
	return Set{elems: keys}
}

// Format renders a value in the surface notation used by console output
// and error messages.
func Format(v Value) string {
	var b strings.Builder
	formatInto(&b, v)
	return b.String()
}

func formatInto(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case Bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Int:
		b.WriteString(val.String())
	case Str:
		fmt.Fprintf(b, "%q", string(val))
	case Set:
		b.WriteString("Set(")
		formatSeq(b, val.elems)
		b.WriteByte(')')
	case List:
		b.WriteByte('[')
		formatSeq(b, val.elems)
		b.WriteByte(']')
	case Tuple:
		b.WriteByte('(')
		formatSeq(b, val.elems)
		b.WriteByte(')')
	case Record:
		b.WriteByte('{')
		for i, f := range val.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			formatInto(b, f.Value)
		}
		b.WriteByte('}')
	case Variant:
		b.WriteString(val.Tag)
		if t, ok := val.Val.(Tuple); !ok || t.Len() > 0 {
			b.WriteByte('(')
			formatInto(b, val.Val)
			b.WriteByte(')')
		}
	case Map:
		b.WriteString("Map(")
		for i, p := range val.pairs {
			if i > 0 {
				b.WriteString(", ")
			}
			formatInto(b, p.Key)
			b.WriteString(" -> ")
			formatInto(b, p.Value)
		}
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "<%T>", v)
	}
}

func formatSeq(b *strings.Builder, elems []Value) {
	for i, e := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		formatInto(b, e)
	}
}
