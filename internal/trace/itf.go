package trace

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tracewalk/tracewalk/internal/ir"
)

// The interchange encoding follows the Informal Trace Format: a list of
// state snapshots keyed by variable name, with explicit tags for the
// value kinds JSON cannot carry natively, wrapped in a #meta header.

// FormatDescription points readers of an interchange document at the
// format definition.
const FormatDescription = "https://apalache.informal.systems/docs/adr/015adr-trace.html"

// Document is a serialized trace ready for JSON encoding.
type Document struct {
	Meta   Meta             `json:"#meta"`
	Vars   []string         `json:"vars"`
	States []map[string]any `json:"states"`
}

// Meta is the interchange document header.
type Meta struct {
	Format            string            `json:"format"`
	FormatDescription string            `json:"format-description,omitempty"`
	Source            string            `json:"source"`
	Status            string            `json:"status"`
	Description       string            `json:"description,omitempty"`
	Timestamp         int64             `json:"timestamp"`
	VarTypes          map[string]string `json:"varTypes,omitempty"`
}

// ConvertError reports a value that has no interchange representation.
// It fails the conversion, not the run that produced the trace.
type ConvertError struct {
	Var    string
	Reason string
}

func (e *ConvertError) Error() string {
	if e.Var != "" {
		return fmt.Sprintf("cannot represent variable %q in trace format: %s", e.Var, e.Reason)
	}
	return fmt.Sprintf("cannot represent value in trace format: %s", e.Reason)
}

// ToDocument converts a retained trace into an interchange document.
// States are restricted to the module's declared variables, listed in
// module order. Pure and total apart from unrepresentable values.
func ToDocument(tr *Trace, mod *ir.Module, source string, now time.Time) (*Document, error) {
	doc := &Document{
		Meta: Meta{
			Format:            ir.TraceFormat,
			FormatDescription: FormatDescription,
			Source:            source,
			Status:            string(tr.Status),
			Description:       fmt.Sprintf("Created by tracewalk %s with seed %s", ir.EngineVersion, tr.Seed),
			Timestamp:         now.UnixMilli(),
		},
		Vars: mod.VarNames(),
	}
	if types := varTypes(mod); len(types) > 0 {
		doc.Meta.VarTypes = types
	}

	doc.States = make([]map[string]any, len(tr.States))
	for i, state := range tr.States {
		snapshot := map[string]any{
			"#meta": map[string]any{"index": i},
		}
		for _, v := range mod.Vars {
			val, ok := state.Get(v.Name)
			if !ok {
				continue // init has not bound it yet
			}
			enc, err := encodeValue(val)
			if err != nil {
				return nil, &ConvertError{Var: v.Name, Reason: err.Error()}
			}
			snapshot[v.Name] = enc
		}
		doc.States[i] = snapshot
	}
	return doc, nil
}

// Marshal renders the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trace document: %w", err)
	}
	return out, nil
}

func varTypes(mod *ir.Module) map[string]string {
	types := map[string]string{}
	for _, v := range mod.Vars {
		if v.Type != "" {
			types[v.Name] = v.Type
		}
	}
	return types
}

// maxSafeInt is the largest integer JSON consumers can hold in a double
// without losing precision. Anything bigger is encoded as #bigint.
const maxSafeInt = 1<<53 - 1

func encodeValue(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.Bool:
		return bool(val), nil
	case ir.Int:
		if n, ok := val.Int64(); ok && n <= maxSafeInt && n >= -maxSafeInt {
			return json.Number(val.String()), nil
		}
		return map[string]any{"#bigint": val.String()}, nil
	case ir.Str:
		return string(val), nil
	case ir.List:
		return encodeSeq(val.Elems())
	case ir.Set:
		elems, err := encodeSeq(val.Elems())
		if err != nil {
			return nil, err
		}
		return map[string]any{"#set": elems}, nil
	case ir.Tuple:
		elems, err := encodeSeq(val.Elems())
		if err != nil {
			return nil, err
		}
		return map[string]any{"#tup": elems}, nil
	case ir.Record:
		out := make(map[string]any, len(val.Fields()))
		for _, f := range val.Fields() {
			if strings.HasPrefix(f.Name, "#") {
				return nil, fmt.Errorf("record field %q collides with a format tag", f.Name)
			}
			enc, err := encodeValue(f.Value)
			if err != nil {
				return nil, err
			}
			out[f.Name] = enc
		}
		return out, nil
	case ir.Variant:
		enc, err := encodeValue(val.Val)
		if err != nil {
			return nil, err
		}
		// Tagged like the other non-native kinds, so a record that
		// happens to carry {tag, value} fields stays a record.
		return map[string]any{"#variant": map[string]any{"tag": val.Tag, "value": enc}}, nil
	case ir.Map:
		pairs := make([]any, len(val.Pairs()))
		for i, p := range val.Pairs() {
			k, err := encodeValue(p.Key)
			if err != nil {
				return nil, err
			}
			pv, err := encodeValue(p.Value)
			if err != nil {
				return nil, err
			}
			pairs[i] = []any{k, pv}
		}
		return map[string]any{"#map": pairs}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func encodeSeq(elems []ir.Value) ([]any, error) {
	out := make([]any, len(elems))
	for i, e := range elems {
		enc, err := encodeValue(e)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}
