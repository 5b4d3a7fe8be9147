package overlay_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
	"github.com/goliatone/go-settings/pkg/overlay"
	"github.com/goliatone/go-settings/pkg/state"
	"github.com/google/go-cmp/cmp"
)

type fakeSurface struct {
	bus   *bus.Bus
	calls []string
	sent  []string
}

func newFakeSurface() *fakeSurface {
	s := &fakeSurface{bus: bus.New(bus.WithLogger(discard()))}
	events.Tap(s.bus, func(topic string, payload any) {
		s.sent = append(s.sent, topic+":"+payload.(events.Data).Module)
	})
	return s
}

func (s *fakeSurface) Show(page, layer string) { s.calls = append(s.calls, "show "+page+" "+layer) }
func (s *fakeSurface) Hide(page string)        { s.calls = append(s.calls, "hide "+page) }
func (s *fakeSurface) Focus()                  { s.calls = append(s.calls, "focus") }
func (s *fakeSurface) Unfocus()                { s.calls = append(s.calls, "unfocus") }
func (s *fakeSurface) Bus() *bus.Bus           { return s.bus }

type fakeHost struct {
	cursor   bool
	controls bool
}

func (h *fakeHost) ShowCursor(v bool)      { h.cursor = v }
func (h *fakeHost) SetGameControls(v bool) { h.controls = v }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	controller *overlay.Controller
	surface    *fakeSurface
	host       *fakeHost
	game       *bus.Bus
	manager    *settings.Manager
	requests   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := settings.NewRegistry()
	reg.MustRegister(settings.Descriptor{
		Name: "chat",
		Fields: []settings.Field{
			{Key: "font_size", Default: settings.Int(12)},
			{Key: "show_timestamp", Default: settings.Bool(false)},
		},
	})
	manager := settings.NewManager(
		state.NewAdapter(state.NewMemoryStorage()),
		settings.WithRegistry(reg),
		settings.WithLogger(discard()),
	)
	f := &fixture{
		surface: newFakeSurface(),
		host:    &fakeHost{controls: true},
		game:    bus.New(bus.WithLogger(discard())),
		manager: manager,
	}
	bus.On(f.game, events.Requests, func(req events.Request) { f.requests = append(f.requests, req.Module) })
	f.controller = overlay.NewController(
		func() overlay.Surface { return f.surface },
		f.host, manager, f.game,
		overlay.WithLogger(discard()),
	)
	return f
}

func (f *fixture) inboundHandlers() int {
	b := f.surface.Bus()
	return b.Count(events.Closing.Name()) + b.Count(events.Set.Name()) + b.Count(events.Requests.Name())
}

func TestToggleOpensThenCloses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.controller.Toggle(ctx); err != nil {
		t.Fatalf("toggle open: %v", err)
	}
	if f.controller.State() != overlay.StateOpen {
		t.Fatalf("expected open, got %s", f.controller.State())
	}
	if !f.host.cursor || f.host.controls {
		t.Fatalf("expected cursor on and game controls off, got %+v", f.host)
	}
	if got := f.inboundHandlers(); got != 3 {
		t.Fatalf("expected three inbound handlers, got %d", got)
	}
	if _, ok := f.controller.Surface(); !ok {
		t.Fatal("expected a surface while open")
	}

	if err := f.controller.Toggle(ctx); err != nil {
		t.Fatalf("toggle close: %v", err)
	}
	if f.controller.State() != overlay.StateClosed {
		t.Fatalf("expected closed, got %s", f.controller.State())
	}
	if f.host.cursor || !f.host.controls {
		t.Fatalf("expected cursor off and game controls on, got %+v", f.host)
	}
	if got := f.inboundHandlers(); got != 0 {
		t.Fatalf("expected handlers removed, got %d", got)
	}
	want := []string{"show Settings overlay", "focus", "hide Settings", "unfocus"}
	if diff := cmp.Diff(want, f.surface.calls); diff != "" {
		t.Fatalf("surface calls mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenTwiceDoesNotDuplicateHandlers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := f.controller.Open(ctx); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	if got := f.inboundHandlers(); got != 3 {
		t.Fatalf("expected three inbound handlers, got %d", got)
	}
	if len(f.surface.calls) != 2 {
		t.Fatalf("second open must not touch the surface, got %v", f.surface.calls)
	}
	if diff := cmp.Diff([]string{"chat"}, f.requests); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenPushesDefaultsThenInit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.manager.Set(ctx, "chat", "font_size", settings.Int(14)); err != nil {
		t.Fatalf("set: %v", err)
	}

	var initBlob settings.Blob
	bus.On(f.surface.Bus(), events.Init, func(d events.Data) { initBlob = d.Settings })

	if err := f.controller.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	if diff := cmp.Diff([]string{"settings:defaults:chat", "settings:init:chat"}, f.surface.sent); diff != "" {
		t.Fatalf("outbound mismatch (-want +got):\n%s", diff)
	}
	if !initBlob.Equal(settings.Blob{"font_size": settings.Int(14)}) {
		t.Fatalf("unexpected init blob %v", initBlob)
	}
}

func TestCloseRequestFromSurfaceCloses(t *testing.T) {
	f := newFixture(t)
	if err := f.controller.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	bus.Emit(f.surface.Bus(), events.Closing, events.Close{})
	if f.controller.State() != overlay.StateClosed {
		t.Fatal("expected close request to close the overlay")
	}
}

func TestInboundRequestsReachGameBus(t *testing.T) {
	f := newFixture(t)
	var sets []events.SetRequest
	bus.On(f.game, events.Set, func(req events.SetRequest) { sets = append(sets, req) })

	if err := f.controller.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	bus.Emit(f.surface.Bus(), events.Set, events.SetRequest{Module: "chat", Key: "font_size", Value: settings.Int(16)})
	bus.Emit(f.surface.Bus(), events.Requests, events.Request{Module: "chat"})

	if len(sets) != 1 || sets[0].Key != "font_size" {
		t.Fatalf("unexpected set relay %+v", sets)
	}
	if diff := cmp.Diff([]string{"chat", "chat"}, f.requests); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}

	f.controller.Close()
	bus.Emit(f.surface.Bus(), events.Set, events.SetRequest{Module: "chat"})
	if len(sets) != 1 {
		t.Fatal("closed overlay must not relay")
	}
}

func TestCloseWhenClosedIsNoop(t *testing.T) {
	f := newFixture(t)
	f.controller.Close()
	if len(f.surface.calls) != 0 || !f.host.controls {
		t.Fatal("closing a closed overlay must not touch surface or host")
	}
}

func TestOpenWithoutSurface(t *testing.T) {
	c := overlay.NewController(func() overlay.Surface { return nil }, nil, nil, bus.New())
	if err := c.Open(context.Background()); !errors.Is(err, overlay.ErrNoSurface) {
		t.Fatalf("expected ErrNoSurface, got %v", err)
	}
	if c.State() != overlay.StateClosed {
		t.Fatal("failed open must stay closed")
	}
}
