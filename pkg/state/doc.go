// Package state adapts host local-storage primitives into a settings.Store.
//
// A LocalStorage is the host's flat string key/value store with an explicit
// commit step:
//
//	Get(key) -> (value, ok)   Set(key, value)   Save()
//
// Adapter keeps one JSON object per module under the key "settings_<module>"
// and treats Set+Save as one step: when Save fails the previous raw value is
// put back before the error is returned.
//
// Backends:
//
//	MemoryStorage  process-local, for tests and the CLI's --storage=memory
//	FileStorage    one JSON document on disk; Watch reloads external edits
//	SQLiteStorage  a key/value table; staged writes commit in one transaction
package state
