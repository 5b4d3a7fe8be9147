package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	settings "github.com/goliatone/go-settings"
)

// KeyPrefix prefixes every module entry in local storage.
const KeyPrefix = "settings_"

// ErrClosed is returned by storages used after Close.
var ErrClosed = errors.New("state: storage closed")

// LocalStorage is the host-provided persistent string store. Set stages a
// value; Save commits everything staged.
type LocalStorage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Save() error
}

// Deleter is implemented by storages that can drop a key.
type Deleter interface {
	Delete(key string) error
}

// Lister is implemented by storages that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

// Key returns the storage key for module.
func Key(module string) string {
	return KeyPrefix + module
}

// ModuleFromKey reverses Key.
func ModuleFromKey(key string) (string, bool) {
	module, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || module == "" {
		return "", false
	}
	return module, true
}

// Adapter implements settings.Store over a LocalStorage.
type Adapter struct {
	storage LocalStorage
	mu      sync.Mutex
}

var _ settings.Store = (*Adapter)(nil)

// NewAdapter wraps storage.
func NewAdapter(storage LocalStorage) *Adapter {
	return &Adapter{storage: storage}
}

// Storage returns the wrapped primitive.
func (a *Adapter) Storage() LocalStorage {
	return a.storage
}

// Load reads and decodes the blob for module. Undecodable data is reported
// wrapping settings.ErrCorruptBlob.
func (a *Adapter) Load(ctx context.Context, module string) (settings.Blob, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	raw, ok, err := a.storage.Get(Key(module))
	if err != nil {
		return nil, false, fmt.Errorf("state: get %q: %w", Key(module), err)
	}
	if !ok || raw == "" {
		return nil, false, nil
	}
	blob, err := settings.ParseBlob([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("state: decode %q: %w", Key(module), err)
	}
	return blob, true, nil
}

// Save encodes blob, stages it and commits. On a failed commit the previous
// raw value is restored.
func (a *Adapter) Save(ctx context.Context, module string, blob settings.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", Key(module), err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := Key(module)
	previous, hadPrevious, err := a.storage.Get(key)
	if err != nil {
		return fmt.Errorf("state: get %q: %w", key, err)
	}
	if err := a.storage.Set(key, string(encoded)); err != nil {
		return fmt.Errorf("state: set %q: %w", key, err)
	}
	if err := a.storage.Save(); err != nil {
		if rbErr := a.restore(key, previous, hadPrevious); rbErr != nil {
			return errors.Join(fmt.Errorf("state: commit %q: %w", key, err), rbErr)
		}
		return fmt.Errorf("state: commit %q: %w", key, err)
	}
	return nil
}

func (a *Adapter) restore(key, previous string, hadPrevious bool) error {
	if hadPrevious {
		if err := a.storage.Set(key, previous); err != nil {
			return fmt.Errorf("state: restore %q: %w", key, err)
		}
		return nil
	}
	if d, ok := a.storage.(Deleter); ok {
		if err := d.Delete(key); err != nil {
			return fmt.Errorf("state: restore %q: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("state: restore %q: storage cannot delete keys", key)
}

// Modules lists the modules with stored settings, sorted. Storages that do
// not implement Lister report an empty list.
func (a *Adapter) Modules(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lister, ok := a.storage.(Lister)
	if !ok {
		return nil, nil
	}
	keys, err := lister.Keys()
	if err != nil {
		return nil, fmt.Errorf("state: list keys: %w", err)
	}
	modules := make([]string, 0, len(keys))
	for _, key := range keys {
		if module, ok := ModuleFromKey(key); ok {
			modules = append(modules, module)
		}
	}
	sort.Strings(modules)
	return modules, nil
}
