package pje

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SearchQuery captures one page request against the consultation endpoint.
type SearchQuery struct {
	BarNumber string     `json:"bar_number"`
	StateCode string     `json:"state_code"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// Publication is a single gazette entry scraped from the portal. It is a
// value object: the identity hash is computed at construction and the record
// is never mutated afterwards.
type Publication struct {
	// IdentityHash is the dedup key, a digest of case number, publication
	// timestamp, and deciding body.
	IdentityHash string    `json:"identity_hash"`
	CaseNumber   string    `json:"case_number"`
	PublishedAt  time.Time `json:"published_at"`
	// Court is the deciding body (órgão julgador) that issued the entry.
	Court        string `json:"court"`
	Content      string `json:"content"`
	TribunalName string `json:"tribunal_name"`
	Notebook     string `json:"notebook,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

// SearchResult is the aggregate answer for one query. When Error is set the
// publication list is empty.
type SearchResult struct {
	Publications []Publication `json:"publications"`
	TotalFound   int           `json:"total_found"`
	CurrentPage  int           `json:"current_page"`
	TotalPages   int           `json:"total_pages"`
	Query        SearchQuery   `json:"query"`
	FetchedAt    time.Time     `json:"fetched_at"`
	Error        string        `json:"error,omitempty"`
}

// MonitorSubscription is the per-attorney monitoring row owned by the
// persistence collaborator. The orchestrator reads it to compute scheduling
// and writes back LastCheckedAt.
type MonitorSubscription struct {
	ID            uuid.UUID  `json:"id"`
	BarNumber     string     `json:"bar_number"`
	StateCode     string     `json:"state_code"`
	IsActive      bool       `json:"is_active"`
	IntervalHours int        `json:"interval_hours"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// CaseRef points at a case row owned by the persistence collaborator.
type CaseRef struct {
	ID         uuid.UUID `json:"id"`
	CaseNumber string    `json:"case_number"`
}

// MonitorStatus is the outcome recorded for one monitor cycle.
type MonitorStatus string

// Cycle outcomes persisted in monitor logs.
const (
	MonitorSuccess MonitorStatus = "success"
	MonitorFailure MonitorStatus = "failure"
)

// MonitorLog records the outcome of one completed monitor cycle.
type MonitorLog struct {
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	Status         MonitorStatus `json:"status"`
	Found          int           `json:"found"`
	New            int           `json:"new"`
	Error          string        `json:"error,omitempty"`
	At             time.Time     `json:"at"`
}

// PriorityLevel orders publication urgency. Classification only ever raises
// a level, never lowers it.
type PriorityLevel int

// Priority levels from least to most urgent.
const (
	PriorityLow PriorityLevel = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p PriorityLevel) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the level as its name.
func (p PriorityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// MaxPriority returns the higher of two levels.
func MaxPriority(a, b PriorityLevel) PriorityLevel {
	if b > a {
		return b
	}
	return a
}

// ContentAnalysis is the classifier verdict for one publication body.
type ContentAnalysis struct {
	Priority        PriorityLevel `json:"priority"`
	MatchedKeywords []string      `json:"matched_keywords"`
}

// CheckState is the monitor-cycle state for one subscription.
type CheckState string

// Monitor cycle states. A healthy subscription cycles
// Idle → Due → Fetching → Processing → Scheduled while active.
const (
	CheckIdle       CheckState = "idle"
	CheckDue        CheckState = "due"
	CheckFetching   CheckState = "fetching"
	CheckProcessing CheckState = "processing"
	CheckScheduled  CheckState = "scheduled"
)

// FetchRequest captures everything needed for one GET against the portal.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the raw result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OutcomeKind tags the classification of one fetch attempt.
type OutcomeKind string

// Fetch outcome classifications. Retryable outcomes re-enter the retry loop;
// captcha and not-found are terminal and never retried.
const (
	OutcomeOK        OutcomeKind = "ok"
	OutcomeRetryable OutcomeKind = "retryable"
	OutcomeCaptcha   OutcomeKind = "captcha"
	OutcomeNotFound  OutcomeKind = "not_found"
)

// FetchOutcome is the tagged result of one fetch attempt, so callers branch
// on data instead of error hierarchies.
type FetchOutcome struct {
	Kind     OutcomeKind
	Response FetchResponse
	Err      error
}
