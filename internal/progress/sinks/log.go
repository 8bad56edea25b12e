package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/prudentia/pje-monitor/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or audits where metrics alone are too coarse.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("subscription_id", evt.SubscriptionUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("state_code", evt.StateCode),
			zap.Int64("found", evt.Found),
			zap.Int64("new", evt.New),
			zap.Int64("attempt", evt.Attempt),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
