// Package docpath navigates decoded JSON documents with dotted key paths.
package docpath

import (
	"encoding/json"
	"strings"
)

// Lookup walks doc along a dotted path ("resumen.totalPagar"). Missing keys,
// non-map intermediates and nil values all report false.
func Lookup(doc map[string]any, path string) (any, bool) {
	if doc == nil || path == "" {
		return nil, false
	}
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether the path resolves to a non-nil value.
func Has(doc map[string]any, path string) bool {
	_, ok := Lookup(doc, path)
	return ok
}

// Kind names the JSON kind of a decoded value: object, array, string,
// number, bool or null.
func Kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return "number"
	default:
		return "unknown"
	}
}

// AsMap returns v as a JSON object, or nil.
func AsMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// AsSlice returns v as a JSON array, or nil.
func AsSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
