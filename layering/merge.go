// Package layering composes JSON-shaped settings trees.
package layering

import "strings"

// Merge composes layers ordered from strongest to weakest. Nested objects
// merge key by key; any other value in a stronger layer replaces the weaker
// one outright, lists included. A nil is an absent key: it never masks a
// weaker value and is left out of the result. Inputs are never modified.
func Merge(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		merged = mergeMap(layers[i], merged)
	}
	return merged
}

func mergeMap(strong, weak map[string]any) map[string]any {
	result := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		if value != nil {
			result[key] = Clone(value)
		}
	}
	for key, value := range strong {
		if value == nil {
			continue
		}
		if existing, ok := result[key]; ok {
			result[key] = mergeValue(value, existing)
			continue
		}
		result[key] = Clone(value)
	}
	return result
}

func mergeValue(strong, weak any) any {
	strongMap, ok := strong.(map[string]any)
	if !ok {
		return Clone(strong)
	}
	weakMap, ok := weak.(map[string]any)
	if !ok {
		return Clone(strong)
	}
	return mergeMap(strongMap, weakMap)
}

// Clone deep-copies maps and lists; scalars are returned as is.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	default:
		return value
	}
}

// Lookup resolves a dotted path such as "colors.background".
func Lookup(tree map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = tree
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
