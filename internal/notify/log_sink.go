package notify

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/buildwatch/internal/logfields"
)

// LogSink writes change events to a slog logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink logs to logger, or to the default logger when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "Build status changed",
		logfields.Server(event.Server),
		logfields.Changes(len(event.Changes)),
		slog.String("message", event.Text))
	return nil
}

func (s *LogSink) Close() error { return nil }
