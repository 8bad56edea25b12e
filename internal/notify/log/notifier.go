// Package log implements a Notifier that writes structured log entries.
// It is the default delivery channel when no broker is configured.
package log

import (
	"context"

	"go.uber.org/zap"

	"github.com/prudentia/pje-monitor/internal/pje"
)

// Notifier logs one entry per publication.
type Notifier struct {
	logger *zap.Logger
}

// New creates a Notifier.
func New(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Notify writes the publication as a log entry. High and urgent priorities
// log at warn level so they stand out in an operator's feed.
func (n *Notifier) Notify(_ context.Context, sub pje.MonitorSubscription, pub pje.Publication, priority pje.PriorityLevel, summary string) error {
	fields := []zap.Field{
		zap.String("subscription_id", sub.ID.String()),
		zap.String("bar_number", sub.BarNumber),
		zap.String("state_code", sub.StateCode),
		zap.String("case_number", pub.CaseNumber),
		zap.String("court", pub.Court),
		zap.Time("published_at", pub.PublishedAt),
		zap.String("priority", priority.String()),
		zap.String("summary", summary),
	}
	if priority >= pje.PriorityHigh {
		n.logger.Warn("New publication", fields...)
		return nil
	}
	n.logger.Info("New publication", fields...)
	return nil
}
