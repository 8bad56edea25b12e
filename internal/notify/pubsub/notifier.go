// Package pubsub implements a Google Cloud Pub/Sub notifier.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"

	"github.com/prudentia/pje-monitor/internal/pje"
)

// Message is the wire form of one publication notification.
type Message struct {
	SubscriptionID string    `json:"subscription_id"`
	BarNumber      string    `json:"bar_number"`
	StateCode      string    `json:"state_code"`
	CaseNumber     string    `json:"case_number"`
	Court          string    `json:"court"`
	TribunalName   string    `json:"tribunal_name,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
	Priority       string    `json:"priority"`
	Summary        string    `json:"summary"`
	SourceURL      string    `json:"source_url,omitempty"`
}

// Notifier publishes notification events to a Pub/Sub topic.
type Notifier struct {
	publisher *pubsub.Publisher
}

// New creates a Notifier for the provided topic publisher.
func New(publisher *pubsub.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Notify marshals the event and publishes it, blocking until the broker
// acknowledges. Priority and state ride as attributes so subscribers can
// filter without decoding the payload.
func (n *Notifier) Notify(ctx context.Context, sub pje.MonitorSubscription, pub pje.Publication, priority pje.PriorityLevel, summary string) error {
	if n.publisher == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(Message{
		SubscriptionID: sub.ID.String(),
		BarNumber:      sub.BarNumber,
		StateCode:      sub.StateCode,
		CaseNumber:     pub.CaseNumber,
		Court:          pub.Court,
		TribunalName:   pub.TribunalName,
		PublishedAt:    pub.PublishedAt,
		Priority:       priority.String(),
		Summary:        summary,
		SourceURL:      pub.SourceURL,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := &pubsub.Message{Data: data}
	msg.Attributes = map[string]string{
		"priority":   priority.String(),
		"state_code": sub.StateCode,
	}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	result := n.publisher.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
