package webview_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/bus"
	"github.com/goliatone/go-settings/pkg/events"
	"github.com/goliatone/go-settings/pkg/i18n"
	"github.com/goliatone/go-settings/pkg/overlay"
	"github.com/goliatone/go-settings/pkg/relay"
	"github.com/goliatone/go-settings/pkg/state"
	"github.com/goliatone/go-settings/pkg/webview"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stack struct {
	hub        *webview.Hub
	manager    *settings.Manager
	controller *overlay.Controller
	server     *httptest.Server
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStack(t *testing.T) *stack {
	t.Helper()
	reg := settings.NewRegistry()
	reg.MustRegister(settings.Descriptor{
		Name: "chat",
		Fields: []settings.Field{
			{Key: "font_size", Label: "Font size", Default: settings.Int(12), Rule: "value >= 8 && value <= 32"},
			{Key: "show_timestamp", Default: settings.Bool(false)},
		},
	})
	manager := settings.NewManager(
		state.NewAdapter(state.NewMemoryStorage()),
		settings.WithRegistry(reg),
		settings.WithLogger(discard()),
	)
	game := bus.New(bus.WithLogger(discard()))
	hub := webview.NewHub(webview.WithLogger(discard()))
	controller := overlay.NewController(
		func() overlay.Surface { return hub },
		nil, manager, game,
		overlay.WithLogger(discard()),
	)
	r := relay.New(manager, game, controller, discard())
	r.Start(context.Background())

	s := &stack{
		hub:        hub,
		manager:    manager,
		controller: controller,
		server:     httptest.NewServer(webview.Router(hub, manager, controller, webview.WithTranslations(i18n.Default()))),
	}
	t.Cleanup(func() {
		r.Stop()
		s.server.Close()
		require.NoError(t, hub.Close())
	})
	return s
}

func (s *stack) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *stack) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func readFrame(t *testing.T, conn *websocket.Conn) events.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame events.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	frame, err := events.NewFrame(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame))
}

func TestOverlayRoundTripOverWebsocket(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })
	s := newStack(t)
	conn := s.dial(t)
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, body := s.do(t, http.MethodPost, "/api/overlay/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"state":"open"}`, string(body))

	var got []string
	for i := 0; i < 5; i++ {
		got = append(got, readFrame(t, conn).Event)
	}
	assert.Equal(t, []string{
		webview.EventShow,
		webview.EventFocus,
		"settings:defaults",
		"settings:init",
		"settings:data",
	}, got)

	sendFrame(t, conn, "settings:set", events.SetRequest{Module: "chat", Key: "font_size", Value: settings.Int(16)})
	require.Eventually(t, func() bool {
		v := s.manager.Get(context.Background(), "chat", "font_size", settings.Null())
		return v.Equal(settings.Int(16))
	}, 2*time.Second, 10*time.Millisecond)

	sendFrame(t, conn, "settings:request", events.Request{Module: "chat"})
	frame := readFrame(t, conn)
	require.Equal(t, "settings:data", frame.Event)
	var data events.Data
	require.NoError(t, json.Unmarshal(frame.Payload, &data))
	assert.True(t, data.Settings.Equal(settings.Blob{"font_size": settings.Int(16)}))

	sendFrame(t, conn, "settings:set", events.SetRequest{Module: "chat", Key: "font_size", Value: settings.Int(99)})
	frame = readFrame(t, conn)
	require.Equal(t, "settings:error", frame.Event)
	assert.Contains(t, string(frame.Payload), `"key":"font_size"`)

	sendFrame(t, conn, "settings:close", nil)
	assert.Equal(t, webview.EventHide, readFrame(t, conn).Event)
	assert.Equal(t, webview.EventUnfocus, readFrame(t, conn).Event)
	require.Eventually(t, func() bool { return s.controller.State() == overlay.StateClosed }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.hub.Visible())
}

func TestLateJoinerSeesVisibleSurface(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.controller.Open(context.Background()))

	conn := s.dial(t)
	assert.Equal(t, webview.EventShow, readFrame(t, conn).Event)
	assert.Equal(t, webview.EventFocus, readFrame(t, conn).Event)
}

func TestSettingsAPI(t *testing.T) {
	s := newStack(t)

	resp, body := s.do(t, http.MethodPut, "/api/settings/chat/font_size", "18")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"font_size":18}`, string(body))

	resp, body = s.do(t, http.MethodGet, "/api/settings/chat", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"font_size":18}`, string(body))

	resp, body = s.do(t, http.MethodGet, "/api/settings/chat?effective=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"font_size":18,"show_timestamp":false}`, string(body))

	resp, body = s.do(t, http.MethodGet, "/api/settings/chat/show_timestamp", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var trace settings.Trace
	require.NoError(t, json.Unmarshal(body, &trace))
	assert.True(t, trace.Found)
	assert.Equal(t, settings.LayerDefault, trace.Source)

	resp, _ = s.do(t, http.MethodPut, "/api/settings/chat/font_size", "99")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/api/settings/chat/font_size", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/schema/chat", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var schema []settings.FieldSchema
	require.NoError(t, json.Unmarshal(body, &schema))
	require.Len(t, schema, 2)
	assert.Equal(t, "font_size", schema[0].Path)
	assert.Equal(t, "Font size", schema[0].Label)

	resp, _ = s.do(t, http.MethodGet, "/api/schema/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/i18n/en", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"settings.font_size":"Font Size"`)

	resp, body = s.do(t, http.MethodGet, "/api/i18n", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"settings.close":"Close"`)

	resp, body = s.do(t, http.MethodGet, "/api/modules", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"chat"`)
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.controller.Open(context.Background()))
	conn := s.dial(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendFrame(t, conn, "settings:data", events.Data{Module: "chat"})
	sendFrame(t, conn, "settings:set", events.SetRequest{Module: "chat", Key: "show_timestamp", Value: settings.Bool(true)})

	require.Eventually(t, func() bool {
		v := s.manager.Get(context.Background(), "chat", "show_timestamp", settings.Bool(false))
		return v.Equal(settings.Bool(true))
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.hub.Clients())
}

func TestClosedHubRefusesPages(t *testing.T) {
	hub := webview.NewHub(webview.WithLogger(discard()))
	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
