package memory

import (
	"context"
	"testing"

	"github.com/prudentia/pje-monitor/internal/pje"
)

func TestNotifierStoresDeliveries(t *testing.T) {
	t.Parallel()

	n := New()
	pub := pje.Publication{CaseNumber: "1234567-89.2023.8.26.0100"}

	if err := n.Notify(context.Background(), pje.MonitorSubscription{BarNumber: "123456"}, pub, pje.PriorityUrgent, "prazo de 5 dias"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := n.Notify(context.Background(), pje.MonitorSubscription{BarNumber: "654321"}, pub, pje.PriorityLow, ""); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	got := n.Notifications()
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if got[0].Priority != pje.PriorityUrgent || got[0].Summary != "prazo de 5 dias" {
		t.Fatalf("first notification not recorded correctly: %+v", got[0])
	}

	got[0].Summary = "modified"
	if n.Notifications()[0].Summary == "modified" {
		t.Fatal("expected Notifications() to return a copy")
	}
}
