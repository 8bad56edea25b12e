package pje

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Fetcher executes a single HTTP GET and returns the raw response.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Policy serializes outbound requests behind a rate limit.
type Policy interface {
	Wait(ctx context.Context, target string) error
}

// RetryPolicy decides whether and when a failed fetch attempt is repeated.
type RetryPolicy interface {
	ShouldRetry(attempt int, outcome FetchOutcome) bool
	Backoff(attempt int) time.Duration
}

// PublicationStore is the persistence port consumed by the monitor. The
// attorney/case schema is owned by the collaborator behind it; the core only
// needs these operations.
type PublicationStore interface {
	FindByIdentityHash(ctx context.Context, hash string) (bool, error)
	CreatePublication(ctx context.Context, pub Publication, sub MonitorSubscription) error
	GetOrCreateCase(ctx context.Context, caseNumber string) (CaseRef, error)
	UpdateLastChecked(ctx context.Context, subscriptionID uuid.UUID, ts time.Time) error
	RecordMonitorLog(ctx context.Context, entry MonitorLog) error
	ListMonitorLogs(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]MonitorLog, error)

	CreateSubscription(ctx context.Context, sub MonitorSubscription) error
	GetSubscription(ctx context.Context, id uuid.UUID) (MonitorSubscription, error)
	ListSubscriptions(ctx context.Context, activeOnly bool) ([]MonitorSubscription, error)
	SetSubscriptionActive(ctx context.Context, id uuid.UUID, active bool) error
}

// Notifier delivers one classified publication to a notification channel.
// Callers treat it as fire-and-forget: failures are logged, never fatal.
type Notifier interface {
	Notify(ctx context.Context, sub MonitorSubscription, pub Publication, priority PriorityLevel, summary string) error
}

// Scheduler defers a job by a duration. It replaces the task broker: the
// monitor only ever expresses scheduling decisions through it.
type Scheduler interface {
	ScheduleAfter(delay time.Duration, name string, job func(ctx context.Context))
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes hex digests for identity and snapshot keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces subscription and request IDs.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}
