package settings

import (
	"sort"
	"strings"
)

// FieldSchema describes one leaf path of a module's settings for UIs that
// render an editor without knowing the module.
type FieldSchema struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Label   string `json:"label,omitempty"`
	Default Value  `json:"default"`
	Rule    string `json:"rule,omitempty"`
}

// Schema flattens the descriptor's defaults into leaf paths. Nested
// mappings produce dotted paths; lists are leaves.
func (d Descriptor) Schema() []FieldSchema {
	fields := make([]FieldSchema, 0, len(d.Fields))
	for _, f := range d.Fields {
		leaves := deriveFieldSchemas(f.Default, f.Key)
		for i := range leaves {
			if leaves[i].Path == f.Key {
				leaves[i].Label = f.Label
				leaves[i].Rule = f.Rule
				if f.Type != "" {
					leaves[i].Type = f.Type
				}
			}
		}
		fields = append(fields, leaves...)
	}
	return fields
}

func deriveFieldSchemas(v Value, prefix string) []FieldSchema {
	m, ok := v.AsMap()
	if !ok || len(m) == 0 {
		return []FieldSchema{{Path: prefix, Type: typeName(v), Default: v.Clone()}}
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var fields []FieldSchema
	for _, key := range keys {
		fields = append(fields, deriveFieldSchemas(m[key], joinPath(prefix, key))...)
	}
	return fields
}

func typeName(v Value) string {
	if list, ok := v.AsList(); ok {
		if len(list) == 0 {
			return "list"
		}
		return "list<" + list[0].Kind().String() + ">"
	}
	return v.Kind().String()
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.Join([]string{prefix, key}, ".")
}
