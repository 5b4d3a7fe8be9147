package settings

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Field describes one known setting of a module.
type Field struct {
	Key     string `yaml:"key" json:"key"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty"`
	Default Value  `yaml:"default" json:"default"`
	// Type restricts the kind of stored values: bool, number, int, string,
	// map or list. Empty accepts any kind. Null always passes.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
	// Rule is an optional boolean expression that a new value must satisfy.
	Rule string `yaml:"rule,omitempty" json:"rule,omitempty"`
}

// Descriptor lists a settings-backed feature and its known fields.
type Descriptor struct {
	Name   string  `yaml:"name" json:"name"`
	Label  string  `yaml:"label,omitempty" json:"label,omitempty"`
	Fields []Field `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Field returns the field named key.
func (d Descriptor) Field(key string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults returns the default value of every field.
func (d Descriptor) Defaults() Blob {
	out := make(Blob, len(d.Fields))
	for _, f := range d.Fields {
		out[f.Key] = f.Default.Clone()
	}
	return out
}

// Registry holds module descriptors in registration order. Features register
// themselves at startup; the overlay reads the module list from here.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	modules map[string]Descriptor
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Descriptor)}
}

// Register adds d. Names must be unique and non-empty, as must field keys
// within a descriptor.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return ErrInvalidModule
	}
	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if f.Key == "" {
			return fmt.Errorf("%w: module %q has a field without key", ErrInvalidKey, d.Name)
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("settings: module %q declares field %q twice", d.Name, f.Key)
		}
		seen[f.Key] = struct{}{}
		if err := CheckType(f.Default, f.Type); err != nil {
			return fmt.Errorf("settings: module %q field %q default: %w", d.Name, f.Key, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateModule, d.Name)
	}
	r.modules[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// CheckType reports whether v satisfies the field type typ. Null and the
// empty type always pass; int accepts integral numbers only.
func CheckType(v Value, typ string) error {
	if typ == "" || v.IsNull() {
		return nil
	}
	var ok bool
	switch typ {
	case "int":
		_, ok = v.AsInt()
	case KindBool.String(), KindNumber.String(), KindString.String(), KindMap.String(), KindList.String():
		ok = v.Kind().String() == typ
	default:
		return fmt.Errorf("settings: unknown field type %q", typ)
	}
	if !ok {
		return fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, typ, v)
	}
	return nil
}

// MustRegister is Register for static descriptors.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor for module.
func (r *Registry) Lookup(module string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.modules[module]
	return d, ok
}

// Modules returns the registered module names in registration order.
func (r *Registry) Modules() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name])
	}
	return out
}

// Defaults returns the descriptor defaults for module, or an empty blob.
func (r *Registry) Defaults(module string) Blob {
	d, ok := r.Lookup(module)
	if !ok {
		return Blob{}
	}
	return d.Defaults()
}

type registryFile struct {
	Modules []Descriptor `yaml:"modules"`
}

// LoadRegistry reads descriptors from a YAML document of the form
//
//	modules:
//	  - name: chat
//	    fields:
//	      - key: font_size
//	        default: 12
//	        rule: value >= 8 && value <= 32
func LoadRegistry(r io.Reader) (*Registry, error) {
	var doc registryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("settings: decode module descriptors: %w", err)
	}
	registry := NewRegistry()
	for _, d := range doc.Modules {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// LoadRegistryFile is LoadRegistry over a file.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("settings: open module descriptors: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// UnmarshalYAML lets descriptor defaults be written as plain YAML.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Native(), nil
}
