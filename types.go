package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Blob is the full key/value mapping persisted for one module.
type Blob map[string]Value

// ParseBlob decodes a serialized module blob. A JSON null decodes to an empty
// blob; any other non-object document is reported as ErrCorruptBlob.
func ParseBlob(data []byte) (Blob, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlob, err)
	}
	if raw == nil {
		return Blob{}, nil
	}
	object, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrCorruptBlob, raw)
	}
	blob := make(Blob, len(object))
	for key, item := range object {
		v, err := ValueOf(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptBlob, err)
		}
		blob[key] = v
	}
	return blob, nil
}

// BlobOf converts a plain map into a Blob.
func BlobOf(values map[string]any) (Blob, error) {
	blob := make(Blob, len(values))
	for key, item := range values {
		v, err := ValueOf(item)
		if err != nil {
			return nil, fmt.Errorf("settings: key %q: %w", key, err)
		}
		blob[key] = v
	}
	return blob, nil
}

// Clone returns a deep copy. Cloning a nil blob yields an empty blob.
func (b Blob) Clone() Blob {
	out := make(Blob, len(b))
	for k, v := range b {
		out[k] = v.Clone()
	}
	return out
}

// Native converts the blob into map[string]any.
func (b Blob) Native() map[string]any {
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = v.Native()
	}
	return out
}

// Keys returns the keys in lexical order.
func (b Blob) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality.
func (b Blob) Equal(other Blob) bool {
	return Map(b).Equal(Map(other))
}

// MarshalJSON keeps nil blobs encoded as empty objects.
func (b Blob) MarshalJSON() ([]byte, error) {
	return Map(b).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Blob) UnmarshalJSON(data []byte) error {
	parsed, err := ParseBlob(data)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Store persists one blob per module. Load reports ok=false when nothing has
// been stored for the module and wraps ErrCorruptBlob when the stored data
// cannot be decoded. Save writes and commits the blob as one step.
type Store interface {
	Load(ctx context.Context, module string) (blob Blob, ok bool, err error)
	Save(ctx context.Context, module string, blob Blob) error
}

// Listener receives the full module blob after every successful Set.
// Listener values are kept in a set keyed by interface equality, so the
// dynamic type must be comparable (pointer receivers are the usual choice).
type Listener interface {
	SettingsChanged(module string, settings Blob)
}

// Subscription is a Listener wrapping a plain callback. Each Subscription is
// a distinct identity.
type Subscription struct {
	ID     string
	Module string

	fn      func(Blob)
	manager *Manager
	once    sync.Once
}

// SettingsChanged implements Listener.
func (s *Subscription) SettingsChanged(_ string, settings Blob) {
	if s == nil || s.fn == nil {
		return
	}
	s.fn(settings)
}

// Unsubscribe removes the subscription from its manager. It is safe to call
// more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.manager == nil {
		return
	}
	s.once.Do(func() {
		s.manager.OffChange(s.Module, s)
	})
}

func newSubscription(m *Manager, module string, fn func(Blob)) *Subscription {
	return &Subscription{
		ID:      uuid.NewString(),
		Module:  module,
		fn:      fn,
		manager: m,
	}
}

// Failure describes a Set call that did not take effect.
type Failure struct {
	Module string `json:"module"`
	Key    string `json:"key"`
	Value  Value  `json:"value"`
	Err    error  `json:"-"`
}

// Message returns the error text for transport.
func (f Failure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// MarshalJSON includes the error message.
func (f Failure) MarshalJSON() ([]byte, error) {
	type wire struct {
		Module  string `json:"module"`
		Key     string `json:"key"`
		Value   Value  `json:"value"`
		Message string `json:"message"`
	}
	return json.Marshal(wire{Module: f.Module, Key: f.Key, Value: f.Value, Message: f.Message()})
}
