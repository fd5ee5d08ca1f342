package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical byte encoding of a value, used
// for content-addressed state identity. The encoding is a tagged JSON
// form with deterministic ordering:
//
//  1. Record fields and tagged-collection keys sorted by UTF-16 code
//     units (RFC 8785 ordering, not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Integers as decimal strings under "#int" so magnitude never
//     degrades through a float path
//  5. Sets, tuples, and maps carry explicit tags so differently-typed
//     values never collide byte-wise
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case Int:
		buf.WriteString(`{"#int":`)
		if err := writeCanonicalString(buf, val.String()); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case Str:
		return writeCanonicalString(buf, string(val))
	case Set:
		return marshalTaggedSeq(buf, "#set", val.elems)
	case List:
		return marshalSeq(buf, val.elems)
	case Tuple:
		return marshalTaggedSeq(buf, "#tup", val.elems)
	case Record:
		return marshalCanonicalRecord(buf, val)
	case Variant:
		buf.WriteString(`{"#tag":`)
		if err := writeCanonicalString(buf, val.Tag); err != nil {
			return err
		}
		buf.WriteString(`,"#val":`)
		if err := marshalCanonical(buf, val.Val); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case Map:
		buf.WriteString(`{"#map":[`)
		for i, p := range val.pairs {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			if err := marshalCanonical(buf, p.Key); err != nil {
				return err
			}
			buf.WriteByte(',')
			if err := marshalCanonical(buf, p.Value); err != nil {
				return err
			}
			buf.WriteByte(']')
		}
		buf.WriteString("]}")
		return nil
	default:
		return fmt.Errorf("unsupported value type for canonical encoding: %T", v)
	}
}

func marshalSeq(buf *bytes.Buffer, elems []Value) error {
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, e); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalTaggedSeq(buf *bytes.Buffer, tag string, elems []Value) error {
	buf.WriteString(`{"`)
	buf.WriteString(tag)
	buf.WriteString(`":`)
	if err := marshalSeq(buf, elems); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func marshalCanonicalRecord(buf *bytes.Buffer, r Record) error {
	names := make([]string, len(r.fields))
	byName := make(map[string]Value, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
		byName[f.Name] = f.Value
	}
	slices.SortFunc(names, compareKeysRFC8785)

	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, name); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, byName[name]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string without HTML
// escaping.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return fmt.Errorf("encode string: %w", err)
	}
	// Encoder appends a newline; strip it.
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering as
// required by RFC 8785 (Canonical JSON). Go's default string comparison
// uses UTF-8 which produces a DIFFERENT order for some inputs.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}
