package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/google/uuid"
)

// Manager reads and writes module settings over a Store and notifies
// listeners after every successful write. Construct one per process and pass
// it to the features that need it. A Manager is safe for concurrent use.
type Manager struct {
	store Store
	cfg   managerConfig

	modulesMu sync.Mutex
	modules   map[string]*moduleState

	listenersMu sync.RWMutex
	listeners   map[string]*listenerSet
}

// NewManager constructs a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	return &Manager{
		store:     store,
		cfg:       applyOptions(opts),
		modules:   make(map[string]*moduleState),
		listeners: make(map[string]*listenerSet),
	}
}

// Registry returns the module registry the manager validates against.
func (m *Manager) Registry() *Registry {
	return m.cfg.registry
}

// Logger returns the manager logger.
func (m *Manager) Logger() *slog.Logger {
	return m.cfg.logger
}

// Get returns the stored value for module.key, or def when the key is
// absent, null or the module blob cannot be read.
func (m *Manager) Get(ctx context.Context, module, key string, def Value) Value {
	blob, err := m.load(ctx, module)
	if err != nil {
		m.cfg.logger.Warn("settings: failed to get", "module", module, "key", key, "error", err)
		return def
	}
	v, ok := blob[key]
	if !ok || v.IsNull() {
		return def
	}
	return v.Clone()
}

// GetAll returns the full blob for module, or an empty blob when nothing
// readable is stored.
func (m *Manager) GetAll(ctx context.Context, module string) Blob {
	blob, err := m.load(ctx, module)
	if err != nil {
		m.cfg.logger.Warn("settings: failed to get all", "module", module, "error", err)
		return Blob{}
	}
	return blob
}

// Set stores value at module.key. The module blob is loaded, validated
// against the registry rule for the key, merged and saved while holding the
// module lock. Listeners then receive their own copy of the new blob.
//
// Blobs of one module reach listeners in commit order, one delivery at a
// time. Normally Set delivers on the calling goroutine before returning; a
// Set made while another delivery for the module is running (from another
// goroutine, or from a listener) only queues its blob, and the running
// delivery hands it over next. When Set returns an error nothing was
// persisted and no listener was called.
func (m *Manager) Set(ctx context.Context, module, key string, value Value) error {
	failure := Failure{Module: module, Key: key, Value: value.Clone()}
	switch {
	case module == "":
		return m.fail(ctx, failure, ErrInvalidModule)
	case key == "":
		return m.fail(ctx, failure, ErrInvalidKey)
	}

	state := m.moduleState(module)
	lock := &state.commit
	lock.Lock()
	current, err := m.load(ctx, module)
	if errors.Is(err, ErrCorruptBlob) {
		m.cfg.logger.Warn("settings: discarding unreadable blob", "module", module, "error", err)
		current, err = Blob{}, nil
	}
	if err != nil {
		lock.Unlock()
		return m.fail(ctx, failure, fmt.Errorf("settings: load %s: %w", module, err))
	}
	if err := m.validate(module, key, value, current); err != nil {
		lock.Unlock()
		return m.fail(ctx, failure, err)
	}

	previous, hadPrevious := current[key]
	next := current.Clone()
	next[key] = value.Clone()
	if err := m.store.Save(ctx, module, next); err != nil {
		lock.Unlock()
		return m.fail(ctx, failure, fmt.Errorf("settings: persist %s: %w", module, err))
	}
	state.enqueue(next)
	lock.Unlock()

	m.drain(module, state)
	m.emit(ctx, activity.BuildSettingsUpdatedEvent(activity.SettingsEventInput{
		ActorID:    m.cfg.actorID,
		Module:     module,
		Key:        key,
		OldValue:   nativeOrNil(previous, hadPrevious),
		NewValue:   value.Native(),
		Revision:   uuid.NewString(),
		OccurredAt: m.cfg.clock(),
	}))
	return nil
}

// OnChange registers l for module. Registering the same listener again has
// no effect. A listener that calls Set for the same module is handed the
// resulting blob after it returns; looping on that is the listener's
// responsibility.
func (m *Manager) OnChange(module string, l Listener) error {
	if l == nil {
		return nil
	}
	if !reflect.TypeOf(l).Comparable() {
		return fmt.Errorf("%w: %T", ErrListenerNotComparable, l)
	}
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	set, ok := m.listeners[module]
	if !ok {
		set = newListenerSet()
		m.listeners[module] = set
	}
	set.add(l)
	return nil
}

// OffChange removes l from module. Unknown listeners and modules are ignored.
func (m *Manager) OffChange(module string, l Listener) {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return
	}
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	set, ok := m.listeners[module]
	if !ok {
		return
	}
	set.remove(l)
	if set.len() == 0 {
		delete(m.listeners, module)
	}
}

// Subscribe registers fn for module and returns the handle that removes it.
func (m *Manager) Subscribe(module string, fn func(Blob)) *Subscription {
	sub := newSubscription(m, module, fn)
	// Pointers are always comparable.
	_ = m.OnChange(module, sub)
	return sub
}

// ListenerCount reports the listeners registered for module.
func (m *Manager) ListenerCount(module string) int {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	if set, ok := m.listeners[module]; ok {
		return set.len()
	}
	return 0
}

// Refresh notifies the listeners of module with the blob currently stored.
// Use it when the store was changed by someone other than this manager.
func (m *Manager) Refresh(ctx context.Context, module string) Blob {
	state := m.moduleState(module)
	state.commit.Lock()
	blob := m.GetAll(ctx, module)
	state.enqueue(blob)
	state.commit.Unlock()
	m.drain(module, state)
	return blob.Clone()
}

func (m *Manager) load(ctx context.Context, module string) (Blob, error) {
	if module == "" {
		return nil, ErrInvalidModule
	}
	blob, ok, err := m.store.Load(ctx, module)
	if err != nil {
		return nil, err
	}
	if !ok || blob == nil {
		return Blob{}, nil
	}
	return blob, nil
}

func (m *Manager) validate(module, key string, value Value, current Blob) error {
	descriptor, ok := m.cfg.registry.Lookup(module)
	if !ok {
		return nil
	}
	field, ok := descriptor.Field(key)
	if !ok {
		return nil
	}
	if err := CheckType(value, field.Type); err != nil {
		return &ValidationError{Module: module, Key: key, Rule: field.Rule, Value: value, Err: err}
	}
	if field.Rule == "" {
		return nil
	}

	now := m.cfg.clock()
	ruleCtx := RuleContext{
		Module:   module,
		Key:      key,
		Value:    value.Native(),
		Settings: current.Native(),
		Now:      &now,
	}
	started := time.Now()
	passed, err := CheckRule(m.cfg.evaluator, ruleCtx, field.Rule)
	m.cfg.evalLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   evaluatorEngineName(m.cfg.evaluator),
		Expr:     field.Rule,
		Field:    ruleCtx.field(),
		Duration: time.Since(started),
		Err:      err,
	})
	if err != nil {
		return &ValidationError{Module: module, Key: key, Rule: field.Rule, Value: value, Err: err}
	}
	if !passed {
		return &ValidationError{Module: module, Key: key, Rule: field.Rule, Value: value}
	}
	return nil
}

func (m *Manager) notify(module string, blob Blob) {
	m.listenersMu.RLock()
	var targets []Listener
	if set, ok := m.listeners[module]; ok {
		targets = set.snapshot()
	}
	m.listenersMu.RUnlock()

	for _, l := range targets {
		m.deliver(module, l, blob.Clone())
	}
}

func (m *Manager) deliver(module string, l Listener, blob Blob) {
	defer func() {
		if r := recover(); r != nil {
			m.cfg.logger.Error("settings: listener panicked", "module", module, "panic", r)
		}
	}()
	l.SettingsChanged(module, blob)
}

func (m *Manager) fail(ctx context.Context, failure Failure, err error) error {
	failure.Err = err
	m.cfg.logger.Error("settings: failed to set",
		"module", failure.Module,
		"key", failure.Key,
		"error", err,
	)
	m.emit(ctx, activity.BuildSettingsRejectedEvent(activity.SettingsEventInput{
		ActorID:    m.cfg.actorID,
		Module:     failure.Module,
		Key:        failure.Key,
		NewValue:   failure.Value.Native(),
		Reason:     err.Error(),
		OccurredAt: m.cfg.clock(),
	}))
	if m.cfg.onFailure != nil {
		m.cfg.onFailure(failure)
	}
	return err
}

func (m *Manager) emit(ctx context.Context, event activity.Event) {
	if !m.cfg.emitter.Enabled() {
		return
	}
	if err := m.cfg.emitter.Emit(ctx, event); err != nil {
		m.cfg.logger.Warn("settings: activity hook failed", "verb", event.Verb, "error", err)
	}
}

// moduleState serializes writes to one module and orders their delivery.
type moduleState struct {
	commit sync.Mutex

	mu         sync.Mutex
	pending    []Blob
	delivering bool
}

// enqueue must be called with commit held so the queue follows commit order.
func (s *moduleState) enqueue(blob Blob) {
	s.mu.Lock()
	s.pending = append(s.pending, blob)
	s.mu.Unlock()
}

func (m *Manager) moduleState(module string) *moduleState {
	m.modulesMu.Lock()
	defer m.modulesMu.Unlock()
	state, ok := m.modules[module]
	if !ok {
		state = &moduleState{}
		m.modules[module] = state
	}
	return state
}

// drain delivers queued blobs until the queue is empty, unless another call
// is already doing so.
func (m *Manager) drain(module string, state *moduleState) {
	state.mu.Lock()
	if state.delivering {
		state.mu.Unlock()
		return
	}
	state.delivering = true
	for len(state.pending) > 0 {
		blob := state.pending[0]
		state.pending = state.pending[1:]
		state.mu.Unlock()
		m.notify(module, blob)
		state.mu.Lock()
	}
	state.delivering = false
	state.mu.Unlock()
}

func nativeOrNil(v Value, ok bool) any {
	if !ok {
		return nil
	}
	return v.Native()
}

// listenerSet keeps listeners unique by identity and in registration order.
type listenerSet struct {
	order []Listener
	index map[Listener]struct{}
}

func newListenerSet() *listenerSet {
	return &listenerSet{index: make(map[Listener]struct{})}
}

func (s *listenerSet) add(l Listener) {
	if _, exists := s.index[l]; exists {
		return
	}
	s.index[l] = struct{}{}
	s.order = append(s.order, l)
}

func (s *listenerSet) remove(l Listener) {
	if _, exists := s.index[l]; !exists {
		return
	}
	delete(s.index, l)
	for i, existing := range s.order {
		if existing == l {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *listenerSet) len() int {
	return len(s.order)
}

func (s *listenerSet) snapshot() []Listener {
	return append([]Listener(nil), s.order...)
}
