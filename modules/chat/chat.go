// Package chat declares the settings of the chat feature.
package chat

import (
	"context"
	"fmt"

	settings "github.com/goliatone/go-settings"
)

// Module is the settings namespace of the chat feature.
const Module = "chat"

// Defaults and bounds.
const (
	DefaultFontSize      = 12
	DefaultShowTimestamp = false

	MinFontSize = 8
	MaxFontSize = 32
)

// Settings is the typed view of the chat module.
type Settings struct {
	FontSize      int  `json:"font_size"`
	ShowTimestamp bool `json:"show_timestamp"`
}

// Validate checks the font size bounds. Blobs edited on disk reach Load and
// Watch without passing the field rule.
func (s Settings) Validate() error {
	if s.FontSize < MinFontSize || s.FontSize > MaxFontSize {
		return fmt.Errorf("chat: font size %d outside %d..%d", s.FontSize, MinFontSize, MaxFontSize)
	}
	return nil
}

// Descriptor describes the chat settings. Labels are translation keys.
func Descriptor() settings.Descriptor {
	return settings.Descriptor{
		Name:  Module,
		Label: "settings.chat",
		Fields: []settings.Field{
			{
				Key:     "font_size",
				Label:   "settings.font_size",
				Default: settings.Int(DefaultFontSize),
				Type:    "int",
				Rule:    fmt.Sprintf("value >= %d && value <= %d", MinFontSize, MaxFontSize),
			},
			{
				Key:     "show_timestamp",
				Label:   "settings.show_timestamp",
				Default: settings.Bool(DefaultShowTimestamp),
				Type:    "bool",
			},
		},
	}
}

// Register adds the chat descriptor to reg.
func Register(reg *settings.Registry) error {
	return reg.Register(Descriptor())
}

// Load returns the chat settings with defaults applied.
func Load(ctx context.Context, m *settings.Manager) (Settings, error) {
	return settings.Load[Settings](ctx, m, Module)
}

// Watch calls fn with the typed settings after every change. A blob that
// does not decode or validate is logged and skipped.
func Watch(m *settings.Manager, fn func(Settings)) *settings.Subscription {
	return m.Subscribe(Module, func(blob settings.Blob) {
		s, err := settings.Decode(Module, blob,
			settings.WithDefaults[Settings](m.Registry()),
			settings.Validated[Settings]())
		if err != nil {
			m.Logger().Warn("chat: skipping settings update", "error", err)
			return
		}
		fn(s)
	})
}
