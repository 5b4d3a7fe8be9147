// Package relay connects settings requests on the game bus to the settings
// manager and sends the answers to the open surface.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
	"github.com/goliatone/go-settings/pkg/overlay"
)

// Manager is the part of the settings manager the relay drives.
type Manager interface {
	Set(ctx context.Context, module, key string, value settings.Value) error
	GetAll(ctx context.Context, module string) settings.Blob
}

// Surfaces returns the surface currently open, if any.
type Surfaces interface {
	Surface() (overlay.Surface, bool)
}

// Relay forwards settings:set and settings:request from the game bus.
type Relay struct {
	manager  Manager
	game     *bus.Bus
	surfaces Surfaces
	logger   *slog.Logger

	mu      sync.Mutex
	handles []*bus.Handle
}

// New constructs a stopped relay.
func New(manager Manager, game *bus.Bus, surfaces Surfaces, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{manager: manager, game: game, surfaces: surfaces, logger: logger}
}

// Start registers the relay handlers. Starting twice does nothing.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles != nil {
		return
	}
	r.handles = []*bus.Handle{
		bus.On(r.game, events.Set, func(req events.SetRequest) { r.set(ctx, req) }),
		bus.On(r.game, events.Requests, func(req events.Request) { r.request(ctx, req) }),
	}
}

// Stop removes the relay handlers.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.handles {
		h.Off()
	}
	r.handles = nil
}

func (r *Relay) set(ctx context.Context, req events.SetRequest) {
	err := r.manager.Set(ctx, req.Module, req.Key, req.Value)
	if err == nil {
		return
	}
	surface, ok := r.current()
	if !ok {
		return
	}
	failure := settings.Failure{Module: req.Module, Key: req.Key, Value: req.Value, Err: err}
	var verr *settings.ValidationError
	if errors.As(err, &verr) {
		r.logger.Debug("relay: rejected value", "module", req.Module, "key", req.Key, "rule", verr.Rule)
	}
	bus.Emit(surface.Bus(), events.Error, failure)
}

func (r *Relay) request(ctx context.Context, req events.Request) {
	surface, ok := r.current()
	if !ok {
		r.logger.Debug("relay: no surface for request", "module", req.Module)
		return
	}
	bus.Emit(surface.Bus(), events.DataOut, events.Data{
		Module:   req.Module,
		Settings: r.manager.GetAll(ctx, req.Module),
	})
}

func (r *Relay) current() (overlay.Surface, bool) {
	if r.surfaces == nil {
		return nil, false
	}
	return r.surfaces.Surface()
}
