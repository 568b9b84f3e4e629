// Package jsonval provides value-level primitives over JSON-like documents:
// structural equality, deep cloning, normalization and fingerprinting.
//
// A JSON-like value is nil, bool, string, a Go number (any int/uint/float kind
// or json.Number), time.Time, an Array or an Object, nested arbitrarily.
package jsonval

import (
	"encoding/json"
	"fmt"
)

// Object is a JSON object. A key that is absent differs from a key holding nil.
type Object = map[string]any

// Array is a JSON array.
type Array = []any

// AsObject reports v as an Object when it is one (nil maps included).
func AsObject(v any) (Object, bool) {
	o, ok := v.(map[string]any)
	return o, ok
}

// AsArray reports v as an Array. Typed object slices are widened to []any.
func AsArray(v any) (Array, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		if t == nil {
			return nil, true
		}
		out := make(Array, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	default:
		return nil, false
	}
}

// IsNull reports whether v is JSON null: nil itself or a nil map/slice.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return t == nil
	case []any:
		return t == nil
	case []map[string]any:
		return t == nil
	}
	return false
}

// Normalize converts v into plain JSON kinds (Object, Array, float64, string,
// bool, nil) by a JSON round trip.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return out, nil
}

// NormalizeObject is Normalize for objects. A nil object stays nil.
func NormalizeObject(o Object) (Object, error) {
	if o == nil {
		return nil, nil
	}
	v, err := Normalize(o)
	if err != nil {
		return nil, err
	}
	out, _ := v.(map[string]any)
	return out, nil
}

// Size returns the length of the JSON encoding of v, or 0 if v cannot be encoded.
func Size(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}
