// Package app assembles a settings process from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/config"
	"github.com/goliatone/go-settings/modules/chat"
	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/activity/usersink"
	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
	"github.com/goliatone/go-settings/pkg/i18n"
	"github.com/goliatone/go-settings/pkg/keybind"
	"github.com/goliatone/go-settings/pkg/overlay"
	"github.com/goliatone/go-settings/pkg/relay"
	"github.com/goliatone/go-settings/pkg/state"
	"github.com/goliatone/go-settings/pkg/webview"
)

// App holds the wired components. Fields are read-only after New.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Storage      state.LocalStorage
	Registry     *settings.Registry
	Manager      *settings.Manager
	Translations *i18n.Registry
	Game         *bus.Bus
	Hub          *webview.Hub
	Overlay      *overlay.Controller
	Relay        *relay.Relay
	Watcher      *keybind.Watcher

	closers []func() error
}

// Option adjusts App construction.
type Option func(*options)

type options struct {
	host  overlay.Host
	guard keybind.Guard
	hooks activity.Hooks
}

// WithHost sets the game host that receives cursor and control changes.
func WithHost(h overlay.Host) Option {
	return func(o *options) { o.host = h }
}

// WithGuard sets the guard consulted by the overlay key binding.
func WithGuard(g keybind.Guard) Option {
	return func(o *options) { o.guard = g }
}

// WithActivityHooks adds activity hooks. They are used only when activity
// is enabled in the configuration.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// New opens storage and wires every component. Call Close when done.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	a := &App{Config: cfg, Logger: logger}

	storage, closeStorage, err := OpenStorage(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.Storage = storage
	a.closers = append(a.closers, closeStorage)

	registry, err := buildRegistry(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry = registry

	evaluator, err := settings.NewEvaluator(cfg.Rules.Engine, settings.NewTTLProgramCache(cfg.Rules.CacheTTL), settings.DefaultFunctions())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	if err := settings.CompileRules(evaluator, registry); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	hooks := o.hooks
	if cfg.Activity.Enabled && len(hooks) == 0 {
		hooks = activity.Hooks{usersink.Hook{Sink: usersink.LogSink{Logger: logger}}}
	}
	emitter := activity.NewEmitter(hooks, activity.Config{
		Enabled: cfg.Activity.Enabled,
		Channel: cfg.Activity.Channel,
	})

	a.Manager = settings.NewManager(state.NewAdapter(storage),
		settings.WithLogger(logger),
		settings.WithRegistry(registry),
		settings.WithEvaluator(evaluator),
		settings.WithEvaluatorLogger(settings.SlogEvaluatorLogger(logger)),
		settings.WithActivityEmitter(emitter),
	)

	a.Translations = i18n.Default()
	a.Translations.SetFallback(cfg.Locale)
	a.Game = bus.New(bus.WithLogger(logger))
	a.Hub = webview.NewHub(webview.WithLogger(logger))
	a.closers = append(a.closers, a.Hub.Close)

	a.Overlay = overlay.NewController(
		func() overlay.Surface { return a.Hub },
		o.host, a.Manager, a.Game,
		overlay.WithPage(cfg.Overlay.Page),
		overlay.WithLayer(cfg.Overlay.Layer),
		overlay.WithLogger(logger),
	)
	a.Relay = relay.New(a.Manager, a.Game, a.Overlay, logger)

	code, err := keybind.ParseBinding(cfg.Overlay.Binding)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	a.Watcher = keybind.NewWatcher(code, a.Overlay,
		keybind.WithGuard(o.guard),
		keybind.WithWatcherLogger(logger),
	)
	return a, nil
}

// OpenStorage opens the configured LocalStorage and returns its close func.
func OpenStorage(cfg config.StorageConfig, logger *slog.Logger) (state.LocalStorage, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case "", config.DriverMemory:
		return state.NewMemoryStorage(), noop, nil
	case config.DriverFile:
		s, err := state.OpenFileStorage(cfg.Path, state.WithFileLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.DriverSQLite:
		s, err := state.OpenSQLiteStorage(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("app: unknown storage driver %q", cfg.Driver)
}

func buildRegistry(cfg *config.Config) (*settings.Registry, error) {
	registry := settings.NewRegistry()
	if cfg.Modules != "" {
		loaded, err := settings.LoadRegistryFile(cfg.Modules)
		if err != nil {
			return nil, err
		}
		registry = loaded
	}
	if _, ok := registry.Lookup(chat.Module); !ok {
		if err := chat.Register(registry); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Start connects the relay and the key binding. Key presses are accepted
// from the game bus and from the page.
func (a *App) Start(ctx context.Context) {
	a.Relay.Start(ctx)
	a.Watcher.Attach(ctx, a.Game)
	a.Watcher.Attach(ctx, a.Hub.Bus())
}

// Stop disconnects what Start connected.
func (a *App) Stop() {
	a.Watcher.Detach()
	a.Relay.Stop()
}

// Handler returns the HTTP handler of the webview bridge.
func (a *App) Handler() http.Handler {
	return webview.Router(a.Hub, a.Manager, a.Overlay, webview.WithTranslations(a.Translations))
}

// Reloaded refreshes the modules behind the changed storage keys and, while
// the overlay is open, pushes their blobs to the page.
func (a *App) Reloaded(ctx context.Context, keys []string) {
	for _, key := range keys {
		module, ok := state.ModuleFromKey(key)
		if !ok {
			continue
		}
		blob := a.Manager.Refresh(ctx, module)
		a.Logger.Info("app: settings changed on disk", "module", module)
		if surface, open := a.Overlay.Surface(); open {
			bus.Emit(surface.Bus(), events.DataOut, events.Data{Module: module, Settings: blob})
		}
	}
}

// Serve starts the components, serves HTTP on the configured address and,
// for file storage with watch enabled, follows external edits. It returns
// when ctx is done or the server fails.
func (a *App) Serve(ctx context.Context) error {
	a.Start(ctx)
	defer a.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if fs, ok := a.Storage.(*state.FileStorage); ok && a.Config.Storage.Watch {
		go func() {
			if err := fs.Watch(ctx, func(keys []string) { a.Reloaded(ctx, keys) }); err != nil {
				a.Logger.Warn("app: storage watch stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("app: listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	// Pages hold hijacked connections the server does not track.
	a.Hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	return nil
}

// Close releases storage and disconnects pages.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
