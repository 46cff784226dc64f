package simplemedia

import (
	"context"
	"log/slog"
	"time"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// Publish does nothing and returns nil
func (n *NoopEventSink) Publish(ctx context.Context, event Event) error {
	return nil
}

// LoggingEventSink writes every event to a logger
// Useful in development when no analytics collector is running
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink that logs at info level
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) Publish(ctx context.Context, event Event) error {
	l.logger.InfoContext(ctx, "media event",
		"kind", event.Kind,
		"type", event.Namespace,
		"id", event.EntryID,
		"key", event.StorageKey,
		"occurred_at", event.OccurredAt)
	return nil
}

// NoopMetrics discards all observations
type NoopMetrics struct{}

// NewNoopMetrics creates a metrics recorder that records nothing
func NewNoopMetrics() Metrics {
	return NoopMetrics{}
}

func (NoopMetrics) ResolveObserved(Format, string, time.Duration) {}

func (NoopMetrics) PosterObserved(string, time.Duration) {}

func (NoopMetrics) UploadCommitted(Namespace) {}
