package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " settings.updated ",
		ActorID:    " actor ",
		UserID:     " user ",
		ObjectType: " settings.module ",
		ObjectID:   " chat ",
		Channel:    " settings ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "settings.updated" || got.ObjectType != "settings.module" || got.ObjectID != "chat" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.UserID != "user" || got.Channel != "settings" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyDropsIncompleteEvents(t *testing.T) {
	capture := &CaptureHook{}
	if err := (Hooks{capture}).Notify(context.Background(), Event{Verb: "settings.updated"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n := len(capture.Events()); n != 0 {
		t.Fatalf("expected no events captured, got %d", n)
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: "settings.updated", ObjectType: ObjectTypeModule, ObjectID: "chat"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if n := len(capture.Events()); n != 1 {
		t.Fatalf("expected event to be captured once, got %d", n)
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: "settings.updated", ObjectType: ObjectTypeModule, ObjectID: "chat"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(events))
	}
	if events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", events[0].Channel)
	}

	var nilEmitter *Emitter
	if nilEmitter.Enabled() {
		t.Fatalf("nil emitter must be disabled")
	}
}

func TestEmitterPreservesExplicitChannelAndTime(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "settings.updated",
		ObjectType: ObjectTypeModule,
		ObjectID:   "chat",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	got := capture.Events()[0]
	if got.Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", got.Channel)
	}
	if !got.OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", got.OccurredAt)
	}
}
