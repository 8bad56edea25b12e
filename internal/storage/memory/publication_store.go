// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prudentia/pje-monitor/internal/pje"
)

// PublicationStore implements pje.PublicationStore with mutex-guarded maps.
type PublicationStore struct {
	mu            sync.RWMutex
	publications  map[string]pje.Publication
	cases         map[string]pje.CaseRef
	subscriptions map[uuid.UUID]pje.MonitorSubscription
	logs          map[uuid.UUID][]pje.MonitorLog
	ids           pje.IDGenerator
}

// NewPublicationStore constructs a PublicationStore.
func NewPublicationStore(ids pje.IDGenerator) *PublicationStore {
	return &PublicationStore{
		publications:  make(map[string]pje.Publication),
		cases:         make(map[string]pje.CaseRef),
		subscriptions: make(map[uuid.UUID]pje.MonitorSubscription),
		logs:          make(map[uuid.UUID][]pje.MonitorLog),
		ids:           ids,
	}
}

// FindByIdentityHash reports whether a publication with the hash is stored.
func (s *PublicationStore) FindByIdentityHash(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.publications[hash]
	return ok, nil
}

// CreatePublication stores a publication. Inserting the same identity hash
// again is a no-op, mirroring the database's conflict handling.
func (s *PublicationStore) CreatePublication(_ context.Context, pub pje.Publication, _ pje.MonitorSubscription) error {
	if pub.IdentityHash == "" {
		return errors.New("publication missing identity hash")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.publications[pub.IdentityHash]; exists {
		return nil
	}
	s.publications[pub.IdentityHash] = pub
	return nil
}

// GetOrCreateCase returns the case row for a case number, creating it on
// first sight. Lookups key on the normalized CNJ number.
func (s *PublicationStore) GetOrCreateCase(_ context.Context, caseNumber string) (pje.CaseRef, error) {
	key := pje.NormalizeCaseNumber(caseNumber)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.cases[key]; ok {
		return ref, nil
	}
	id, err := s.ids.NewID()
	if err != nil {
		return pje.CaseRef{}, fmt.Errorf("new case id: %w", err)
	}
	ref := pje.CaseRef{ID: id, CaseNumber: key}
	s.cases[key] = ref
	return ref, nil
}

// UpdateLastChecked stamps the subscription's last successful check.
func (s *PublicationStore) UpdateLastChecked(_ context.Context, subscriptionID uuid.UUID, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return fmt.Errorf("subscription %s: %w", subscriptionID, pje.ErrNotFound)
	}
	checked := ts
	sub.LastCheckedAt = &checked
	s.subscriptions[subscriptionID] = sub
	return nil
}

// RecordMonitorLog appends a cycle outcome for a subscription.
func (s *PublicationStore) RecordMonitorLog(_ context.Context, entry pje.MonitorLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.SubscriptionID] = append(s.logs[entry.SubscriptionID], entry)
	return nil
}

// ListMonitorLogs returns up to limit log entries, newest first. A limit of
// zero or less returns everything.
func (s *PublicationStore) ListMonitorLogs(_ context.Context, subscriptionID uuid.UUID, limit int) ([]pje.MonitorLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.logs[subscriptionID]
	out := make([]pje.MonitorLog, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CreateSubscription stores a new subscription. The caller assigns the ID.
func (s *PublicationStore) CreateSubscription(_ context.Context, sub pje.MonitorSubscription) error {
	if sub.ID == uuid.Nil {
		return errors.New("subscription id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subscriptions[sub.ID]; exists {
		return fmt.Errorf("subscription %s already exists", sub.ID)
	}
	s.subscriptions[sub.ID] = sub
	return nil
}

// GetSubscription fetches a subscription by ID.
func (s *PublicationStore) GetSubscription(_ context.Context, id uuid.UUID) (pje.MonitorSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return pje.MonitorSubscription{}, fmt.Errorf("subscription %s: %w", id, pje.ErrNotFound)
	}
	return sub, nil
}

// ListSubscriptions returns subscriptions, optionally only active ones.
// UUIDv7 keys sort by creation time.
func (s *PublicationStore) ListSubscriptions(_ context.Context, activeOnly bool) ([]pje.MonitorSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pje.MonitorSubscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		if activeOnly && !sub.IsActive {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// SetSubscriptionActive pauses or resumes a subscription.
func (s *PublicationStore) SetSubscriptionActive(_ context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return fmt.Errorf("subscription %s: %w", id, pje.ErrNotFound)
	}
	sub.IsActive = active
	s.subscriptions[id] = sub
	return nil
}
