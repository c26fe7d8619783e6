package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// timeKey tags an encoded timestamp so it decodes back to time.Time instead
// of a plain string.
const timeKey = "$time"

// timeLayout is fixed width so encoded timestamps also sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Encode serialises fields for backends that store documents as JSON.
// ServerTimestamp sentinels must be resolved before encoding.
func Encode(fields Fields) ([]byte, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		enc, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		out[k] = enc
	}
	return json.Marshal(out)
}

func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case serverTimestamp:
		return nil, fmt.Errorf("unresolved server timestamp")
	case time.Time:
		return map[string]string{timeKey: t.UTC().Format(timeLayout)}, nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return map[string]string{timeKey: t.UTC().Format(timeLayout)}, nil
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			enc, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			items[i] = enc
		}
		return items, nil
	default:
		return v, nil
	}
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		dv, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("decode field %s: %w", k, err)
		}
		out[k] = dv
	}
	return out, nil
}

func decodeValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	case map[string]any:
		if s, ok := t[timeKey].(string); ok && len(t) == 1 {
			return time.Parse(timeLayout, s)
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			dv, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = dv
		}
		return out, nil
	case []any:
		strs := make([]string, 0, len(t))
		allStrings := true
		items := make([]any, len(t))
		for i, item := range t {
			dv, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			items[i] = dv
			if s, ok := dv.(string); ok && allStrings {
				strs = append(strs, s)
			} else {
				allStrings = false
			}
		}
		if allStrings {
			return strs, nil
		}
		return items, nil
	default:
		return v, nil
	}
}
