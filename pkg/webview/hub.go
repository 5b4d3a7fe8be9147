// Package webview bridges the settings surface to a browser page over a
// websocket. A Hub is an overlay.Surface: visibility changes and outbound
// settings topics are broadcast as JSON frames, and frames sent by the page
// are emitted on the hub bus.
package webview

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32768
	sendBuffer     = 64
)

// Control frames sent to the page.
const (
	EventShow    = "surface:show"
	EventHide    = "surface:hide"
	EventFocus   = "surface:focus"
	EventUnfocus = "surface:unfocus"
)

// ErrHubClosed is returned by ServeHTTP after Close.
var ErrHubClosed = errors.New("webview: hub closed")

// View is the payload of show and hide frames.
type View struct {
	Page  string `json:"page"`
	Layer string `json:"layer,omitempty"`
}

// Hub fans frames out to every connected page.
type Hub struct {
	bus      *bus.Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	view    *View
	focused bool
	closed  bool
	taps    []*bus.Handle
	wg      sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithBus sets the bus inbound frames are emitted on.
func WithBus(b *bus.Bus) Option {
	return func(h *Hub) {
		if b != nil {
			h.bus = b
		}
	}
}

// WithCheckOrigin overrides the origin check of the websocket upgrade. The
// default accepts every origin.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// NewHub constructs a hub with no connected pages.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.bus == nil {
		h.bus = bus.New(bus.WithLogger(h.logger))
	}
	h.taps = events.Tap(h.bus, func(topic string, payload any) {
		h.broadcast(topic, payload)
	})
	return h
}

// Bus returns the surface bus.
func (h *Hub) Bus() *bus.Bus { return h.bus }

// Show tells every page to display page on layer.
func (h *Hub) Show(page, layer string) {
	view := View{Page: page, Layer: layer}
	h.mu.Lock()
	h.view = &view
	h.mu.Unlock()
	h.broadcast(EventShow, view)
}

// Hide tells every page to hide page.
func (h *Hub) Hide(page string) {
	h.mu.Lock()
	h.view = nil
	h.mu.Unlock()
	h.broadcast(EventHide, View{Page: page})
}

// Focus tells the page it owns input.
func (h *Hub) Focus() {
	h.mu.Lock()
	h.focused = true
	h.mu.Unlock()
	h.broadcast(EventFocus, nil)
}

// Unfocus tells the page input went back to the game.
func (h *Hub) Unfocus() {
	h.mu.Lock()
	h.focused = false
	h.mu.Unlock()
	h.broadcast(EventUnfocus, nil)
}

// Visible reports whether the surface is shown.
func (h *Hub) Visible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.view != nil
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches the page to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webview: upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   "page-" + uuid.NewString()[:8],
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c.id] = c
	view, focused := h.view, h.focused
	h.wg.Add(2)
	h.mu.Unlock()

	h.logger.Debug("webview: page connected", "client", c.id)

	if view != nil {
		c.enqueue(h.encode(EventShow, *view))
		if focused {
			c.enqueue(h.encode(EventFocus, nil))
		}
	}

	go c.writePump()
	go c.readPump()
}

// Close disconnects every page and waits for their goroutines to exit.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	taps := h.taps
	h.taps = nil
	h.mu.Unlock()

	for _, t := range taps {
		t.Off()
	}
	for _, c := range clients {
		h.remove(c)
	}
	h.wg.Wait()
	return nil
}

func (h *Hub) encode(event string, payload any) []byte {
	frame, err := events.NewFrame(event, payload)
	if err != nil {
		h.logger.Error("webview: encode frame", "event", event, "error", err)
		return nil
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("webview: encode frame", "event", event, "error", err)
		return nil
	}
	return raw
}

func (h *Hub) broadcast(event string, payload any) {
	raw := h.encode(event, payload)
	if raw == nil {
		return
	}
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.enqueue(raw) {
			h.logger.Warn("webview: dropping slow page", "client", c.id)
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.shutdown()
}

func (h *Hub) receive(c *client, raw []byte) {
	var frame events.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.logger.Warn("webview: malformed frame", "client", c.id, "error", err)
		return
	}
	if _, err := events.Dispatch(h.bus, frame); err != nil {
		h.logger.Warn("webview: rejected frame", "client", c.id, "event", frame.Event, "error", err)
	}
}
