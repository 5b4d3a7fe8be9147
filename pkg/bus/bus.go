// Package bus is a synchronous publish/subscribe bus with typed topics.
//
// A Topic[T] binds a topic name to its payload type, so handler
// registration and emission are checked by the compiler:
//
//	var Data = bus.NewTopic[DataPayload]("settings:data")
//	h := bus.On(b, Data, func(p DataPayload) { ... })
//	bus.Emit(b, Data, DataPayload{...})
//	h.Off()
//
// Handlers run on the emitting goroutine in registration order. A handler
// that panics is logged and skipped.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
)

// Topic names a topic whose payloads have type T.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the topic name.
func (t Topic[T]) Name() string {
	return t.name
}

func (t Topic[T]) String() string {
	return t.name
}

// Handle identifies one registered handler.
type Handle struct {
	id    uint64
	topic string
	bus   *Bus
}

// Topic returns the topic name the handler listens on.
func (h *Handle) Topic() string {
	if h == nil {
		return ""
	}
	return h.topic
}

// Off removes the handler. It reports whether the handler was registered.
func (h *Handle) Off() bool {
	if h == nil || h.bus == nil {
		return false
	}
	return h.bus.Off(h)
}

type entry struct {
	id uint64
	fn func(any)
}

// Bus dispatches payloads to handlers by topic name.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]entry
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for recovered handler panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New constructs an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		logger:   slog.Default(),
		handlers: make(map[string][]entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// On registers fn for topic.
func On[T any](b *Bus, topic Topic[T], fn func(T)) *Handle {
	return b.on(topic.name, func(payload any) {
		typed, ok := payload.(T)
		if !ok {
			b.logger.Warn("bus: payload type mismatch",
				"topic", topic.name,
				"want", fmt.Sprintf("%T", *new(T)),
				"got", fmt.Sprintf("%T", payload))
			return
		}
		fn(typed)
	})
}

// Emit delivers payload to every handler of topic and returns how many ran.
func Emit[T any](b *Bus, topic Topic[T], payload T) int {
	return b.Publish(topic.name, payload)
}

// Publish delivers an untyped payload. Handlers registered with On ignore
// payloads of the wrong type. Most callers want Emit.
func (b *Bus) Publish(topic string, payload any) int {
	b.mu.RLock()
	targets := append([]entry(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	for _, e := range targets {
		b.dispatch(topic, e, payload)
	}
	return len(targets)
}

func (b *Bus) dispatch(topic string, e entry, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus: handler panicked", "topic", topic, "panic", r)
		}
	}()
	e.fn(payload)
}

func (b *Bus) on(topic string, fn func(any)) *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], entry{id: id, fn: fn})
	return &Handle{id: id, topic: topic, bus: b}
}

// Off removes the handler behind h.
func (b *Bus) Off(h *Handle) bool {
	if h == nil || h.bus != b {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[h.topic]
	for i, e := range list {
		if e.id != h.id {
			continue
		}
		next := append(list[:i:i], list[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, h.topic)
		} else {
			b.handlers[h.topic] = next
		}
		return true
	}
	return false
}

// OffAll removes every handler of topic.
func (b *Bus) OffAll(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
}

// Count reports the handlers registered for topic.
func (b *Bus) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
