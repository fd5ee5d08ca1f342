package trace

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tracewalk/tracewalk/internal/ir"
)

// ParseDocument decodes an interchange document back into its header
// and the sequence of contexts it snapshots. Round-tripping a trace
// through ToDocument and ParseDocument yields contexts structurally
// equal to the originals.
func ParseDocument(data []byte) (*Meta, []*ir.Context, error) {
	var raw struct {
		Meta   Meta                         `json:"#meta"`
		Vars   []string                     `json:"vars"`
		States []map[string]json.RawMessage `json:"states"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("parse trace document: %w", err)
	}

	states := make([]*ir.Context, len(raw.States))
	for i, snapshot := range raw.States {
		vars := make(map[string]ir.Value, len(snapshot))
		for name, rawVal := range snapshot {
			if name == "#meta" {
				continue
			}
			v, err := decodeRaw(rawVal)
			if err != nil {
				return nil, nil, fmt.Errorf("state %d, variable %q: %w", i, name, err)
			}
			vars[name] = v
		}
		states[i] = ir.NewContext(vars)
	}
	return &raw.Meta, states, nil
}

func decodeRaw(data json.RawMessage) (ir.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return decodeValue(v)
}

func decodeValue(v any) (ir.Value, error) {
	switch val := v.(type) {
	case bool:
		return ir.Bool(val), nil
	case string:
		return ir.Str(val), nil
	case json.Number:
		return ir.ParseInt(val.String())
	case []any:
		elems, err := decodeSeq(val)
		if err != nil {
			return nil, err
		}
		return ir.NewList(elems...), nil
	case map[string]any:
		return decodeObject(val)
	case nil:
		return nil, fmt.Errorf("null has no value representation")
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", v)
	}
}

func decodeObject(obj map[string]any) (ir.Value, error) {
	if raw, ok := obj["#bigint"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("#bigint payload must be a string")
		}
		return ir.ParseInt(s)
	}
	if raw, ok := obj["#set"]; ok {
		arr, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("#set payload must be an array")
		}
		elems, err := decodeSeq(arr)
		if err != nil {
			return nil, err
		}
		return ir.NewSet(elems...), nil
	}
	if raw, ok := obj["#tup"]; ok {
		arr, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("#tup payload must be an array")
		}
		elems, err := decodeSeq(arr)
		if err != nil {
			return nil, err
		}
		return ir.NewTuple(elems...), nil
	}
	if raw, ok := obj["#map"]; ok {
		arr, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("#map payload must be an array of pairs")
		}
		pairs := make([]ir.Pair, len(arr))
		for i, rawPair := range arr {
			kv, ok := rawPair.([]any)
			if !ok || len(kv) != 2 {
				return nil, fmt.Errorf("#map entry %d is not a [key, value] pair", i)
			}
			k, err := decodeValue(kv[0])
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(kv[1])
			if err != nil {
				return nil, err
			}
			pairs[i] = ir.Pair{Key: k, Value: v}
		}
		return ir.NewMap(pairs...), nil
	}

	if raw, ok := obj["#variant"]; ok {
		body, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("#variant payload must be an object")
		}
		tag, ok := body["tag"].(string)
		if !ok {
			return nil, fmt.Errorf("#variant tag must be a string")
		}
		rawVal, ok := body["value"]
		if !ok {
			return nil, fmt.Errorf("#variant has no value")
		}
		payload, err := decodeValue(rawVal)
		if err != nil {
			return nil, err
		}
		return ir.NewVariant(tag, payload), nil
	}

	fields := make([]ir.Field, 0, len(obj))
	for name, rawVal := range obj {
		v, err := decodeValue(rawVal)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields = append(fields, ir.Field{Name: name, Value: v})
	}
	return ir.NewRecord(fields...), nil
}

func decodeSeq(arr []any) ([]ir.Value, error) {
	elems := make([]ir.Value, len(arr))
	for i, raw := range arr {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		elems[i] = v
	}
	return elems, nil
}
