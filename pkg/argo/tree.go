// Package argo provides a loose document model for Argo-style workflow
// specifications. The types are intentionally map-based so that a rewrite
// can change the parts it understands while preserving every other field
// verbatim. Typed access happens through accessor methods.
package argo

// CopyTree deep-copies a mapping/sequence/scalar tree. Scalars are returned
// as-is; maps and slices are cloned recursively.
func CopyTree(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = CopyTree(v)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = CopyTree(v)
		}
		return result
	default:
		return v
	}
}

// mapAt returns m[key] as a map, or nil if the key is absent or not a map.
func mapAt(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	return v
}

// sliceAt returns m[key] as a sequence, or nil if absent or not a sequence.
func sliceAt(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, ok := m[key].([]any)
	if !ok {
		return nil
	}
	return v
}

// stringAt returns m[key] as a string, or "" if absent or not a string.
func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return v
}

// ensureMap returns m[key] as a map, creating an empty one if absent.
func ensureMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	v := make(map[string]any)
	m[key] = v
	return v
}

// appendAt appends values to the sequence at m[key], creating it if absent.
// The append is written back because Go slices reallocate.
func appendAt(m map[string]any, key string, values ...any) {
	s, _ := m[key].([]any)
	m[key] = append(s, values...)
}

// mapEntries converts a sequence of mapping nodes into []map[string]any,
// skipping entries of any other shape.
func mapEntries(s []any) []map[string]any {
	var result []map[string]any
	for _, entry := range s {
		if m, ok := entry.(map[string]any); ok {
			result = append(result, m)
		}
	}
	return result
}
