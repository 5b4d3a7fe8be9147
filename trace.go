package settings

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-settings/internal/hydrate"
	"github.com/goliatone/go-settings/layering"
)

// Layer names reported by Explain.
const (
	LayerStored  = "stored"
	LayerDefault = "default"
)

// Trace records where the effective value of a setting came from.
type Trace struct {
	Module string       `json:"module"`
	Key    string       `json:"key"`
	Value  Value        `json:"value"`
	Found  bool         `json:"found"`
	Source string       `json:"source,omitempty"`
	Layers []Provenance `json:"layers"`
}

// Provenance details one layer's contribution to a traced key.
type Provenance struct {
	Layer string `json:"layer"`
	Value Value  `json:"value"`
	Found bool   `json:"found"`
}

// ToJSON serialises the trace for logging or transport.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// Effective returns the stored blob layered over the registry defaults for
// module. Nested mappings merge key by key.
func (m *Manager) Effective(ctx context.Context, module string) Blob {
	stored := m.GetAll(ctx, module)
	defaults := m.cfg.registry.Defaults(module)
	merged, err := BlobOf(layering.Merge(stored.Native(), defaults.Native()))
	if err != nil {
		m.cfg.logger.Error("settings: failed to merge defaults", "module", module, "error", err)
		return stored
	}
	return merged
}

// Explain reports, strongest first, which layers hold key for module. Key
// may be a dotted path into nested mappings.
func (m *Manager) Explain(ctx context.Context, module, key string) Trace {
	layers := []struct {
		name string
		blob Blob
	}{
		{LayerStored, m.GetAll(ctx, module)},
		{LayerDefault, m.cfg.registry.Defaults(module)},
	}

	trace := Trace{Module: module, Key: key, Layers: make([]Provenance, 0, len(layers))}
	for _, layer := range layers {
		raw, found := layering.Lookup(layer.blob.Native(), key)
		var value Value
		if found {
			value = MustValue(raw)
			found = !value.IsNull()
		}
		trace.Layers = append(trace.Layers, Provenance{Layer: layer.name, Value: value, Found: found})
		if found && !trace.Found {
			trace.Found = true
			trace.Value = value
			trace.Source = layer.name
		}
	}
	return trace
}

// DecodeOption adjusts Decode.
type DecodeOption[T any] func(*[]hydrate.DecoderOption[T])

// Strict rejects keys without a matching struct field.
func Strict[T any]() DecodeOption[T] {
	return func(opts *[]hydrate.DecoderOption[T]) {
		*opts = append(*opts, hydrate.WithStrict[T]())
	}
}

// WithDefaults layers the registry defaults of the decoded module under the
// blob. Stored nulls fall back to the default, as they do for Get.
func WithDefaults[T any](registry *Registry) DecodeOption[T] {
	return func(opts *[]hydrate.DecoderOption[T]) {
		*opts = append(*opts, hydrate.WithPreHook[T](func(ctx hydrate.Context, payload map[string]any) (map[string]any, error) {
			if registry == nil {
				return payload, nil
			}
			return layering.Merge(payload, registry.Defaults(ctx.Module).Native()), nil
		}))
	}
}

// Validator is implemented by typed views that check their own invariants.
type Validator interface {
	Validate() error
}

// Validated runs Validate on the decoded value when *T or T implements
// Validator. Its error fails the decode.
func Validated[T any]() DecodeOption[T] {
	return func(opts *[]hydrate.DecoderOption[T]) {
		*opts = append(*opts, hydrate.WithPostHook[T](func(_ hydrate.Context, out *T) error {
			if v, ok := any(out).(Validator); ok {
				return v.Validate()
			}
			return nil
		}))
	}
}

// Decode builds a module-specific typed view of blob. Struct json tags name
// the setting keys; keys without a matching field are ignored unless Strict
// is given.
func Decode[T any](module string, blob Blob, opts ...DecodeOption[T]) (T, error) {
	var decoderOpts []hydrate.DecoderOption[T]
	for _, opt := range opts {
		if opt != nil {
			opt(&decoderOpts)
		}
	}
	return hydrate.NewDecoder(decoderOpts...).Decode(hydrate.Context{Module: module}, blob.Native())
}

// DecodeStrict is Decode with Strict.
func DecodeStrict[T any](module string, blob Blob) (T, error) {
	return Decode(module, blob, Strict[T]())
}

// Load decodes the stored settings of module into T over the registry
// defaults, then validates the result when T is a Validator.
func Load[T any](ctx context.Context, m *Manager, module string) (T, error) {
	return Decode(module, m.GetAll(ctx, module), WithDefaults[T](m.Registry()), Validated[T]())
}
