// Package overlay toggles the settings surface over the game world.
package overlay

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
)

// ErrNoSurface is returned by Open when the provider has no surface to show.
var ErrNoSurface = errors.New("overlay: no surface available")

// Surface is a UI page that can be shown above the game.
type Surface interface {
	Show(page, layer string)
	Hide(page string)
	Focus()
	Unfocus()
	Bus() *bus.Bus
}

// Host is the game client hosting the overlay.
type Host interface {
	ShowCursor(visible bool)
	SetGameControls(enabled bool)
}

// SurfaceProvider returns the surface to show on Open, or nil.
type SurfaceProvider func() Surface

// Settings is the read side of the settings manager.
type Settings interface {
	GetAll(ctx context.Context, module string) settings.Blob
	Registry() *settings.Registry
}

// State of the controller.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Controller owns the open/closed state of the overlay.
type Controller struct {
	provider SurfaceProvider
	host     Host
	settings Settings
	game     *bus.Bus
	page     string
	layer    string
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	surface  Surface
	handlers []*bus.Handle
}

// Option configures a Controller.
type Option func(*Controller)

// WithPage sets the page name passed to Show and Hide.
func WithPage(page string) Option {
	return func(c *Controller) {
		if page != "" {
			c.page = page
		}
	}
}

// WithLayer sets the layer passed to Show.
func WithLayer(layer string) Option {
	return func(c *Controller) {
		if layer != "" {
			c.layer = layer
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController constructs a closed controller.
func NewController(provider SurfaceProvider, host Host, s Settings, game *bus.Bus, opts ...Option) *Controller {
	c := &Controller{
		provider: provider,
		host:     host,
		settings: s,
		game:     game,
		page:     "Settings",
		layer:    "overlay",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// State reports the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Surface returns the surface held while open.
func (c *Controller) Surface() (Surface, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface, c.surface != nil
}

// Toggle opens a closed overlay and closes an open one.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.State() == StateOpen {
		c.Close()
		return nil
	}
	return c.Open(ctx)
}

// Open shows the surface, takes input focus from the game, wires the inbound
// handlers and pushes the current settings of every registered module.
// Opening an open overlay does nothing.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	var surface Surface
	if c.provider != nil {
		surface = c.provider()
	}
	if surface == nil {
		c.mu.Unlock()
		return ErrNoSurface
	}

	surface.Show(c.page, c.layer)
	if c.host != nil {
		c.host.ShowCursor(true)
		c.host.SetGameControls(false)
	}
	surface.Focus()

	c.state = StateOpen
	c.surface = surface
	sb := surface.Bus()
	c.handlers = []*bus.Handle{
		bus.On(sb, events.Closing, func(events.Close) { c.Close() }),
		bus.On(sb, events.Set, func(req events.SetRequest) { bus.Emit(c.game, events.Set, req) }),
		bus.On(sb, events.Requests, func(req events.Request) { bus.Emit(c.game, events.Requests, req) }),
	}
	c.mu.Unlock()

	c.logger.Debug("overlay: opened", "page", c.page)

	var modules []string
	if c.settings != nil {
		modules = c.settings.Registry().Modules()
	}
	for _, module := range modules {
		bus.Emit(sb, events.Defaults, events.Data{Module: module, Settings: c.settings.Registry().Defaults(module)})
		bus.Emit(sb, events.Init, events.Data{Module: module, Settings: c.settings.GetAll(ctx, module)})
	}
	for _, module := range modules {
		bus.Emit(c.game, events.Requests, events.Request{Module: module})
	}
	return nil
}

// Close hides the surface, gives input back to the game and removes the
// inbound handlers. Closing a closed overlay does nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.surface == nil {
		return
	}

	c.surface.Hide(c.page)
	if c.host != nil {
		c.host.ShowCursor(false)
		c.host.SetGameControls(true)
	}
	c.surface.Unfocus()

	for _, h := range c.handlers {
		h.Off()
	}
	c.handlers = nil
	c.state = StateClosed
	c.surface = nil
	c.logger.Debug("overlay: closed", "page", c.page)
}
