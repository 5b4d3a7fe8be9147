package usersink

import (
	"context"
	"log/slog"

	usertypes "github.com/goliatone/go-users/pkg/types"
)

// LogSink is an ActivitySink that writes records to a logger. It serves
// hosts without an activity store.
type LogSink struct {
	Logger *slog.Logger
}

// Log implements usertypes.ActivitySink.
func (s LogSink) Log(ctx context.Context, record usertypes.ActivityRecord) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "activity",
		"verb", record.Verb,
		"object_type", record.ObjectType,
		"object_id", record.ObjectID,
		"channel", record.Channel,
		"data", record.Data,
	)
	return nil
}
