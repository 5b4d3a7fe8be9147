package state_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-settings/pkg/state"
	"github.com/google/go-cmp/cmp"
)

func TestMemoryStorageStagesUntilSave(t *testing.T) {
	s := state.NewMemoryStorage()
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, _ := s.Get("k"); !ok || v != "v" {
		t.Fatalf("staged value must be readable, got %q %v", v, ok)
	}
	_ = s.Delete("k")
	if _, ok, _ := s.Get("k"); ok {
		t.Fatal("deleted key must not be readable")
	}
	keys, _ := s.Keys()
	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
}

func TestFileStoragePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	first, err := state.OpenFileStorage(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = first.Set("settings_chat", `{"font_size":14}`)

	unsaved, err := state.OpenFileStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok, _ := unsaved.Get("settings_chat"); ok {
		t.Fatal("uncommitted value must not reach disk")
	}

	if err := first.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := state.OpenFileStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, ok, _ := second.Get("settings_chat")
	if !ok || v != `{"font_size":14}` {
		t.Fatalf("expected persisted value, got %q %v", v, ok)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, got %d entries", len(entries))
	}
}

func TestFileStorageRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := state.OpenFileStorage(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFileStorageReloadReportsExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := state.OpenFileStorage(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.Set("settings_chat", `{"a":1}`)
	_ = s.Set("settings_audio", `{"v":1}`)
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if changed, err := s.Reload(); err != nil || len(changed) != 0 {
		t.Fatalf("own write must not report changes, got %v %v", changed, err)
	}

	external := `{"settings_chat":"{\"a\":2}","settings_video":"{}"}`
	if err := os.WriteFile(path, []byte(external), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := s.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff([]string{"settings_audio", "settings_chat", "settings_video"}, changed); diff != "" {
		t.Fatalf("changed keys mismatch (-want +got):\n%s", diff)
	}
	if v, _, _ := s.Get("settings_chat"); v != `{"a":2}` {
		t.Fatalf("expected reloaded value, got %q", v)
	}
	if _, ok, _ := s.Get("settings_audio"); ok {
		t.Fatal("removed key must be gone after reload")
	}
}

func TestFileStorageWatchCallsBackOnExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := state.OpenFileStorage(path, state.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(keys []string) { changes <- keys })
	}()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("watch: %v", err)
		}
	}()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"settings_chat":"{}"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case keys := <-changes:
		if diff := cmp.Diff([]string{"settings_chat"}, keys); diff != "" {
			t.Fatalf("changed keys mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watch callback")
	}
}

func TestSQLiteStorageCommitsInTransaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := state.OpenSQLiteStorage(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_ = s.Set("settings_chat", `{"font_size":14}`)
	_ = s.Set("settings_audio", `{}`)
	if v, ok, err := s.Get("settings_chat"); err != nil || !ok || v != `{"font_size":14}` {
		t.Fatalf("staged read: %q %v %v", v, ok, err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = s.Delete("settings_audio")
	if err := s.Save(); err != nil {
		t.Fatalf("save delete: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := state.OpenSQLiteStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	keys, err := reopened.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if diff := cmp.Diff([]string{"settings_chat"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if v, _, _ := reopened.Get("settings_chat"); v != `{"font_size":14}` {
		t.Fatalf("expected persisted value, got %q", v)
	}
}

func TestSQLiteStorageDiscardsStagedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := state.OpenSQLiteStorage(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.Set("settings_chat", `{}`)
	_ = s.Close()
	if _, _, err := s.Get("settings_chat"); err != state.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	reopened, err := state.OpenSQLiteStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok, _ := reopened.Get("settings_chat"); ok {
		t.Fatal("staged value must not survive close")
	}
}

func TestSQLiteStorageInMemory(t *testing.T) {
	s, err := state.OpenSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	_ = s.Set("k", "v")
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, ok, _ := s.Get("k"); !ok || v != "v" {
		t.Fatalf("expected committed value, got %q %v", v, ok)
	}
}
