package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileStorage keeps every key in one JSON document. Set and Delete change an
// in-memory view; Save rewrites the file atomically.
type FileStorage struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration

	mu        sync.RWMutex
	values    map[string]string
	committed map[string]string
}

// FileOption configures a FileStorage.
type FileOption func(*FileStorage)

// WithFileLogger sets the logger used by Watch.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(s *FileStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDebounce sets how long Watch waits for writes to settle before
// reloading. Editors often write a file in several steps.
func WithDebounce(d time.Duration) FileOption {
	return func(s *FileStorage) {
		s.debounce = d
	}
}

// OpenFileStorage loads path, creating its directory when missing. A missing
// file is an empty storage.
func OpenFileStorage(path string, opts ...FileOption) (*FileStorage, error) {
	s := &FileStorage{
		path:     path,
		logger:   slog.Default(),
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("state: create directory: %w", err)
	}
	values, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	s.values = values
	s.committed = cloneStrings(values)
	return s, nil
}

// Path returns the backing file.
func (s *FileStorage) Path() string {
	return s.path
}

func (s *FileStorage) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete removes key from the working view.
func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Save writes the working view to a temporary file and renames it over the
// document.
func (s *FileStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", s.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("state: replace %s: %w", s.path, err)
	}
	s.committed = cloneStrings(s.values)
	return nil
}

func (s *FileStorage) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch reloads the document when another process changes it and calls
// onChange with the keys whose committed value changed. Writes made through
// this storage produce no callback. Watch blocks until ctx is done.
func (s *FileStorage) Watch(ctx context.Context, onChange func(keys []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("state: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic renames replace the file's inode.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("state: watch %s: %w", filepath.Dir(s.path), err)
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	name := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				changed, err := s.Reload()
				if err != nil {
					s.logger.Warn("state: reload failed", "path", s.path, "error", err)
					return
				}
				if len(changed) > 0 && onChange != nil {
					onChange(changed)
				}
			})
			timerMu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("state: watcher error", "path", s.path, "error", err)
		}
	}
}

// Reload re-reads the document and returns the keys whose committed value
// differs from what this storage last wrote or read.
func (s *FileStorage) Reload() ([]string, error) {
	values, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []string
	for key, value := range values {
		if old, ok := s.committed[key]; !ok || old != value {
			changed = append(changed, key)
			s.values[key] = value
		}
	}
	for key := range s.committed {
		if _, ok := values[key]; !ok {
			changed = append(changed, key)
			delete(s.values, key)
		}
	}
	s.committed = values
	sort.Strings(changed)
	return changed, nil
}

func readDocument(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("state: decode %s: %w", path, err)
	}
	return values, nil
}

func cloneStrings(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
