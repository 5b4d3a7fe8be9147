// Package i18n holds the translated strings shown by the settings surface.
package i18n

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when a key is missing from the requested locale.
const DefaultLocale = "en"

//go:embed defaults.yaml
var defaultBundle []byte

// Bundle maps locale to key to translated string.
type Bundle map[string]map[string]string

// Registry stores translations per locale. It is safe for concurrent use.
type Registry struct {
	fallback string

	mu     sync.RWMutex
	tables map[string]map[string]string
}

// New returns an empty registry falling back to DefaultLocale.
func New() *Registry {
	return &Registry{fallback: DefaultLocale, tables: make(map[string]map[string]string)}
}

// Default returns a registry holding the bundled settings strings.
func Default() *Registry {
	r := New()
	if err := r.LoadYAML(bytes.NewReader(defaultBundle)); err != nil {
		panic(fmt.Sprintf("i18n: bundled strings: %v", err))
	}
	return r
}

// SetFallback changes the locale consulted when the requested one lacks a
// key. DefaultLocale is still tried last.
func (r *Registry) SetFallback(locale string) {
	if locale == "" {
		locale = DefaultLocale
	}
	r.mu.Lock()
	r.fallback = locale
	r.mu.Unlock()
}

// Fallback returns the current fallback locale.
func (r *Registry) Fallback() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// SetBulk merges bundle into the registry. Existing keys are overwritten.
func (r *Registry) SetBulk(bundle Bundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for locale, entries := range bundle {
		table, ok := r.tables[locale]
		if !ok {
			table = make(map[string]string, len(entries))
			r.tables[locale] = table
		}
		for key, text := range entries {
			table[key] = text
		}
	}
}

// LoadYAML reads a bundle document and merges it.
func (r *Registry) LoadYAML(src io.Reader) error {
	var bundle Bundle
	if err := yaml.NewDecoder(src).Decode(&bundle); err != nil && err != io.EOF {
		return fmt.Errorf("i18n: decode bundle: %w", err)
	}
	r.SetBulk(bundle)
	return nil
}

// Translate returns the string for key in locale, then in the fallback
// locale and DefaultLocale, then key itself.
func (r *Registry) Translate(locale, key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, candidate := range []string{locale, r.fallback, DefaultLocale} {
		if text, ok := r.tables[candidate][key]; ok {
			return text
		}
	}
	return key
}

// Table returns a copy of the strings for locale with fallback entries
// filled in.
func (r *Registry) Table(locale string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.tables[DefaultLocale]))
	for _, layer := range []string{DefaultLocale, r.fallback, locale} {
		for k, v := range r.tables[layer] {
			out[k] = v
		}
	}
	return out
}

// Locales lists the locales with at least one entry, sorted.
func (r *Registry) Locales() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tables))
	for locale, table := range r.tables {
		if len(table) > 0 {
			out = append(out, locale)
		}
	}
	sort.Strings(out)
	return out
}
