package activity

import (
	"testing"
	"time"
)

func TestBuildSettingsUpdatedEvent(t *testing.T) {
	at := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	evt := BuildSettingsUpdatedEvent(SettingsEventInput{
		ActorID:    " player ",
		Module:     "chat",
		Key:        "font_size",
		OldValue:   float64(12),
		NewValue:   float64(14),
		Revision:   "rev-1",
		Metadata:   map[string]any{"source": "overlay"},
		OccurredAt: at,
	})

	if evt.Verb != VerbSettingsUpdated || evt.ObjectType != ObjectTypeModule || evt.ObjectID != "chat" {
		t.Fatalf("unexpected identity: %+v", evt)
	}
	if evt.ActorID != "player" {
		t.Fatalf("expected trimmed actor, got %q", evt.ActorID)
	}
	want := map[string]any{
		"source":    "overlay",
		"key":       "font_size",
		"old_value": float64(12),
		"new_value": float64(14),
		"revision":  "rev-1",
	}
	for k, v := range want {
		if evt.Metadata[k] != v {
			t.Fatalf("metadata[%q] = %v, want %v", k, evt.Metadata[k], v)
		}
	}
	if !evt.OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at %v, got %v", at, evt.OccurredAt)
	}
}

func TestBuildSettingsRejectedEventCarriesReason(t *testing.T) {
	evt := BuildSettingsRejectedEvent(SettingsEventInput{Key: "font_size", Reason: "too large"})
	if evt.Verb != VerbSettingsRejected {
		t.Fatalf("unexpected verb %q", evt.Verb)
	}
	if evt.ObjectID != "unknown" {
		t.Fatalf("expected fallback object id, got %q", evt.ObjectID)
	}
	if evt.Metadata["reason"] != "too large" {
		t.Fatalf("expected reason metadata, got %v", evt.Metadata)
	}
	if _, ok := evt.Metadata["old_value"]; ok {
		t.Fatalf("old_value must be omitted when nil")
	}
}
