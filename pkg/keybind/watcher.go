package keybind

import (
	"context"
	"log/slog"
	"sync"

	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
)

// Guard reports game UI that takes precedence over the overlay binding.
type Guard interface {
	IsConsoleOpen() bool
	IsMenuOpen() bool
}

// GuardFuncs adapts two functions to Guard. Nil functions report false.
type GuardFuncs struct {
	Console func() bool
	Menu    func() bool
}

func (g GuardFuncs) IsConsoleOpen() bool { return g.Console != nil && g.Console() }
func (g GuardFuncs) IsMenuOpen() bool    { return g.Menu != nil && g.Menu() }

// Toggler is toggled when the bound key goes down.
type Toggler interface {
	Toggle(ctx context.Context) error
}

// Watcher listens for key:down events carrying its code.
type Watcher struct {
	code   int
	guard  Guard
	target Toggler
	logger *slog.Logger

	mu      sync.Mutex
	handles []*bus.Handle
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithGuard sets the guard consulted before toggling.
func WithGuard(g Guard) WatcherOption {
	return func(w *Watcher) { w.guard = g }
}

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher constructs a watcher for code. A zero code never matches.
func NewWatcher(code int, target Toggler, opts ...WatcherOption) *Watcher {
	w := &Watcher{code: code, target: target, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Code returns the watched virtual-key code.
func (w *Watcher) Code() int { return w.code }

// Handle toggles the target when key matches and no console or menu is open.
// It reports whether the target was toggled.
func (w *Watcher) Handle(ctx context.Context, key events.KeyDown) bool {
	if w.code == 0 || key.Code != w.code || w.target == nil {
		return false
	}
	if w.guard != nil && (w.guard.IsConsoleOpen() || w.guard.IsMenuOpen()) {
		return false
	}
	if err := w.target.Toggle(ctx); err != nil {
		w.logger.Warn("keybind: toggle failed", "code", w.code, "error", err)
		return false
	}
	return true
}

// Attach listens for key:down on b. A watcher may be attached to several
// buses.
func (w *Watcher) Attach(ctx context.Context, b *bus.Bus) {
	h := bus.On(b, events.Key, func(key events.KeyDown) { w.Handle(ctx, key) })
	w.mu.Lock()
	w.handles = append(w.handles, h)
	w.mu.Unlock()
}

// Detach removes every registration made by Attach.
func (w *Watcher) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range w.handles {
		h.Off()
	}
	w.handles = nil
}
