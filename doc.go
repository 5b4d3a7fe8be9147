// Package settings persists per-module key/value settings for a game client
// and notifies listeners when they change.
//
// Each module (for example "chat") owns one Blob, stored as a single JSON
// document under the key settings_<module> by the adapters in pkg/state.
// A Manager reads and writes those blobs:
//
//	m := settings.NewManager(state.NewAdapter(state.NewMemoryStorage()))
//	_ = m.Set(ctx, "chat", "font_size", settings.Int(14))
//	m.Get(ctx, "chat", "font_size", settings.Int(12)) // 14
//
// Modules may register a Descriptor with defaults and boolean rules. Rules
// run on expr (default), CEL or JavaScript evaluators before a write is
// accepted.
package settings
