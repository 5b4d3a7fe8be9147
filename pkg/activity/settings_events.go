package activity

import (
	"strings"
	"time"
)

// Verbs emitted for settings writes.
const (
	VerbSettingsUpdated  = "settings.updated"
	VerbSettingsRejected = "settings.rejected"

	ObjectTypeModule = "settings.module"
)

// SettingsEventInput describes a single write to a module.
type SettingsEventInput struct {
	ActorID    string
	UserID     string
	Channel    string
	Module     string
	Key        string
	OldValue   any
	NewValue   any
	Revision   string
	Reason     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildSettingsUpdatedEvent describes a committed write.
func BuildSettingsUpdatedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSettingsUpdated, input)
}

// BuildSettingsRejectedEvent describes a write that did not take effect.
func BuildSettingsRejectedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSettingsRejected, input)
}

func buildSettingsEvent(verb string, input SettingsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if input.Key != "" {
		set("key", input.Key)
	}
	if input.OldValue != nil {
		set("old_value", input.OldValue)
	}
	if input.NewValue != nil {
		set("new_value", input.NewValue)
	}
	if input.Revision != "" {
		set("revision", input.Revision)
	}
	if input.Reason != "" {
		set("reason", input.Reason)
	}

	objectID := strings.TrimSpace(input.Module)
	if objectID == "" {
		objectID = "unknown"
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		ObjectType: ObjectTypeModule,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
