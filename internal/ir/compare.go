package ir

import (
	"sort"
	"strings"
)

// Compare defines the total structural order over all values.
//
// Values of different kinds order by kind tag (Bool < Int < Str < Set <
// List < Tuple < Record < Variant < Map). Within a kind:
//   - Bool: false < true
//   - Int: numeric order
//   - Str: byte-lexicographic
//   - Set/List/Tuple: elementwise, shorter first on a common prefix
//   - Record: fieldwise over the sorted field list, names before values
//   - Variant: tag first, then payload
//   - Map: pairwise over the sorted entry list, keys before values
//
// The order is arbitrary across kinds but total and stable, which is all
// canonical set/map element ordering needs.
func Compare(a, b Value) int {
	if a.Kind() != b.Kind() {
		if a.Kind() < b.Kind() {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case Int:
		return av.Big().Cmp(b.(Int).Big())
	case Str:
		return strings.Compare(string(av), string(b.(Str)))
	case Set:
		return compareSeq(av.elems, b.(Set).elems)
	case List:
		return compareSeq(av.elems, b.(List).elems)
	case Tuple:
		return compareSeq(av.elems, b.(Tuple).elems)
	case Record:
		return compareFields(av.fields, b.(Record).fields)
	case Variant:
		bv := b.(Variant)
		if c := strings.Compare(av.Tag, bv.Tag); c != 0 {
			return c
		}
		return Compare(av.Val, bv.Val)
	case Map:
		return comparePairs(av.pairs, b.(Map).pairs)
	default:
		return 0
	}
}

// Equal reports structural equality.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func compareSeq(a, b []Value) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareFields(a, b []Field) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := strings.Compare(a[i].Name, b[i].Name); c != 0 {
			return c
		}
		if c := Compare(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func comparePairs(a, b []Pair) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := Compare(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func sortValues(vs []Value) {
	sort.SliceStable(vs, func(i, j int) bool { return Compare(vs[i], vs[j]) < 0 })
}

func sortFields(fs []Field) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
}

func sortPairs(ps []Pair) {
	sort.SliceStable(ps, func(i, j int) bool { return Compare(ps[i].Key, ps[j].Key) < 0 })
}
