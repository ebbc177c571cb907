// Package sinks provides Sink implementations for the progress hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/webharvest/webharvest/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or audits where no dashboard is attached.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("progress event",
			zap.String("batch_id", evt.BatchID),
			zap.String("stage", string(evt.Stage)),
			zap.String("task_id", evt.TaskID),
			zap.String("url", evt.URL),
			zap.String("worker", evt.Worker),
			zap.Int("workers", evt.Workers),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
