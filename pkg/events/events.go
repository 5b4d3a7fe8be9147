// Package events declares the topics exchanged between the game bus, the
// settings manager and the webview surface.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/bus"
)

// ErrUnknownTopic is returned by Decode and Dispatch for topics without a
// registered payload type.
var ErrUnknownTopic = errors.New("events: unknown topic")

// SetRequest asks the manager to store one key.
type SetRequest struct {
	Module string         `json:"module"`
	Key    string         `json:"key"`
	Value  settings.Value `json:"value"`
}

// Request asks for the full blob of a module.
type Request struct {
	Module string `json:"module"`
}

// Data carries a module blob to the surface.
type Data struct {
	Module   string        `json:"module"`
	Settings settings.Blob `json:"settings"`
}

// Close asks the overlay to close.
type Close struct{}

// KeyDown reports a key press by virtual-key code.
type KeyDown struct {
	Code int `json:"code"`
}

var (
	Set      = bus.NewTopic[SetRequest]("settings:set")
	Requests = bus.NewTopic[Request]("settings:request")
	DataOut  = bus.NewTopic[Data]("settings:data")
	Closing  = bus.NewTopic[Close]("settings:close")
	Defaults = bus.NewTopic[Data]("settings:defaults")
	Init     = bus.NewTopic[Data]("settings:init")
	Error    = bus.NewTopic[settings.Failure]("settings:error")
	Key      = bus.NewTopic[KeyDown]("key:down")
)

// Frame is the wire envelope used by the webview bridge.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame encodes payload under event.
func NewFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("events: encode %s: %w", event, err)
	}
	return Frame{Event: event, Payload: raw}, nil
}

type codec struct {
	decode func(json.RawMessage) (any, error)
	emit   func(*bus.Bus, any) int
	tap    func(*bus.Bus, func(string, any)) *bus.Handle
}

var (
	codecs   = map[string]codec{}
	inbound  = map[string]bool{}
	outbound = map[string]bool{}
)

func register[T any](topic bus.Topic[T], in, out bool) {
	codecs[topic.Name()] = codec{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
				return payload, nil
			}
			if err := json.Unmarshal(trimmed, &payload); err != nil {
				return nil, fmt.Errorf("events: decode %s: %w", topic.Name(), err)
			}
			return payload, nil
		},
		emit: func(b *bus.Bus, payload any) int {
			return bus.Emit(b, topic, payload.(T))
		},
		tap: func(b *bus.Bus, fn func(string, any)) *bus.Handle {
			return bus.On(b, topic, func(payload T) { fn(topic.Name(), payload) })
		},
	}
	if in {
		inbound[topic.Name()] = true
	}
	if out {
		outbound[topic.Name()] = true
	}
}

func init() {
	register(Set, true, false)
	register(Requests, true, false)
	register(Closing, true, false)
	register(Key, true, false)
	register(DataOut, false, true)
	register(Defaults, false, true)
	register(Init, false, true)
	register(Error, false, true)
}

// Decode parses raw into the payload type registered for topic.
func Decode(topic string, raw json.RawMessage) (any, error) {
	c, ok := codecs[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	return c.decode(raw)
}

// Dispatch decodes an inbound frame and emits it on b. Only topics a surface
// may send are accepted.
func Dispatch(b *bus.Bus, frame Frame) (int, error) {
	if !inbound[frame.Event] {
		return 0, fmt.Errorf("%w: %q is not accepted from a surface", ErrUnknownTopic, frame.Event)
	}
	c := codecs[frame.Event]
	payload, err := c.decode(frame.Payload)
	if err != nil {
		return 0, err
	}
	return c.emit(b, payload), nil
}

// Tap registers fn on every topic sent towards a surface. The returned
// handles remove the registrations.
func Tap(b *bus.Bus, fn func(topic string, payload any)) []*bus.Handle {
	names := Outbound()
	handles := make([]*bus.Handle, 0, len(names))
	for _, name := range names {
		handles = append(handles, codecs[name].tap(b, fn))
	}
	return handles
}

// Inbound lists the topics a surface may send, sorted.
func Inbound() []string { return sortedKeys(inbound) }

// Outbound lists the topics sent towards a surface, sorted.
func Outbound() []string { return sortedKeys(outbound) }

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
