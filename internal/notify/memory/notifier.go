// Package memory contains an in-memory notifier for tests.
package memory

import (
	"context"
	"sync"

	"github.com/prudentia/pje-monitor/internal/pje"
)

// Notifier stores delivered notifications for inspection.
type Notifier struct {
	mu            sync.RWMutex
	notifications []Notification
}

// Notification captures one Notify call.
type Notification struct {
	Subscription pje.MonitorSubscription
	Publication  pje.Publication
	Priority     pje.PriorityLevel
	Summary      string
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the notification.
func (n *Notifier) Notify(_ context.Context, sub pje.MonitorSubscription, pub pje.Publication, priority pje.PriorityLevel, summary string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, Notification{
		Subscription: sub,
		Publication:  pub,
		Priority:     priority,
		Summary:      summary,
	})
	return nil
}

// Notifications returns the recorded deliveries.
func (n *Notifier) Notifications() []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Notification, len(n.notifications))
	copy(out, n.notifications)
	return out
}
