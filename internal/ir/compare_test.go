package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareAcrossKinds(t *testing.T) {
	// Kind tags order values of different kinds.
	ordered := []Value{
		Bool(false),
		NewInt(999),
		Str("a"),
		NewSet(),
		NewList(),
		NewTuple(),
		NewRecord(),
		NewVariant("A", nil),
		NewMap(),
	}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Negative(t, Compare(ordered[i], ordered[i+1]),
			"expected %s < %s", Format(ordered[i]), Format(ordered[i+1]))
	}
}

func TestCompareWithinKind(t *testing.T) {
	big, err := ParseInt("99999999999999999999999999")
	require.NoError(t, err)

	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"bool", Bool(false), Bool(true), -1},
		{"int", NewInt(1), NewInt(2), -1},
		{"int big", NewInt(1), big, -1},
		{"str", Str("a"), Str("b"), -1},
		{"list prefix", NewList(NewInt(1)), NewList(NewInt(1), NewInt(2)), -1},
		{"list element", NewList(NewInt(2)), NewList(NewInt(1), NewInt(9)), 1},
		{"tuple", NewTuple(NewInt(1), Str("a")), NewTuple(NewInt(1), Str("b")), -1},
		{"variant tag", NewVariant("A", NewInt(9)), NewVariant("B", NewInt(0)), -1},
		{"variant payload", NewVariant("A", NewInt(1)), NewVariant("A", NewInt(2)), -1},
		{"equal sets", NewSet(NewInt(1), NewInt(2)), NewSet(NewInt(2), NewInt(1)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
				assert.Positive(t, Compare(tt.b, tt.a))
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestCompareRecordsFieldwise(t *testing.T) {
	a := NewRecord(Field{Name: "x", Value: NewInt(1)}, Field{Name: "y", Value: NewInt(2)})
	b := NewRecord(Field{Name: "y", Value: NewInt(2)}, Field{Name: "x", Value: NewInt(1)})
	c := NewRecord(Field{Name: "x", Value: NewInt(1)}, Field{Name: "y", Value: NewInt(3)})

	assert.Zero(t, Compare(a, b))
	assert.Negative(t, Compare(a, c))
}

func TestCompareMapsPairwise(t *testing.T) {
	a := NewMap(Pair{Key: NewInt(1), Value: Str("a")})
	b := NewMap(Pair{Key: NewInt(1), Value: Str("b")})

	assert.Negative(t, Compare(a, b))
	assert.Zero(t, Compare(a, a))
}

func TestEqualContext(t *testing.T) {
	a := NewContext(map[string]Value{"x": NewInt(1)})
	b := NewContext(map[string]Value{"x": NewInt(1)})
	c := a.WithAll(map[string]Value{"x": NewInt(2)})

	assert.True(t, EqualContext(a, b))
	assert.False(t, EqualContext(a, c))

	// WithAll never mutates the receiver.
	v, _ := a.Get("x")
	assert.True(t, Equal(v, NewInt(1)))
}
