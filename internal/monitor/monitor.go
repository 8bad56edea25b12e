// Package monitor schedules and runs periodic publication checks for attorney
// subscriptions.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudentia/pje-monitor/internal/pje"
	"github.com/prudentia/pje-monitor/internal/progress"
	"github.com/prudentia/pje-monitor/internal/telemetry"
)

// Searcher is the slice of the search client the monitor drives.
type Searcher interface {
	SearchByPeriodConcurrent(ctx context.Context, barNumber, stateCode string, startDate, endDate *time.Time) (pje.SearchResult, error)
}

// Config controls scheduling and retry behavior.
type Config struct {
	// DefaultInterval applies when a subscription has no interval of its own.
	DefaultInterval time.Duration
	// MinDelay is the floor for any scheduled delay, so a burst of past-due
	// subscriptions does not stampede the portal at startup.
	MinDelay time.Duration
	// OverlapDays widens the search window below LastCheckedAt so entries
	// published around the previous check are never missed.
	OverlapDays int
	// RetroactiveDays is the window for a subscription that was never checked.
	RetroactiveDays int
	// RetryBackoff is the fixed delay between failed-cycle retries.
	RetryBackoff time.Duration
	// MaxRetries bounds consecutive retries before a cycle is recorded as
	// failed and the normal schedule resumes.
	MaxRetries int
}

// Defaults for Config fields left at zero.
const (
	DefaultInterval        = 24 * time.Hour
	DefaultMinDelay        = time.Minute
	DefaultOverlapDays     = 1
	DefaultRetroactiveDays = 7
	DefaultRetryBackoff    = 30 * time.Minute
	DefaultMaxRetries      = 3
)

// Monitor owns the check lifecycle for every tracked subscription. Each check
// is a one-shot scheduled job that reschedules its successor, so there is no
// central ticker loop.
type Monitor struct {
	searcher  Searcher
	store     pje.PublicationStore
	notifier  pje.Notifier
	scheduler pje.Scheduler
	clock     pje.Clock
	emitter   progress.Emitter
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	states  map[uuid.UUID]pje.CheckState
	retries map[uuid.UUID]int
	gens    map[uuid.UUID]uint64
}

// New constructs a Monitor. Zero Config fields fall back to the defaults.
func New(
	searcher Searcher,
	store pje.PublicationStore,
	notifier pje.Notifier,
	scheduler pje.Scheduler,
	clock pje.Clock,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Monitor {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = DefaultInterval
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.OverlapDays <= 0 {
		cfg.OverlapDays = DefaultOverlapDays
	}
	if cfg.RetroactiveDays <= 0 {
		cfg.RetroactiveDays = DefaultRetroactiveDays
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		searcher:  searcher,
		store:     store,
		notifier:  notifier,
		scheduler: scheduler,
		clock:     clock,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
		states:    make(map[uuid.UUID]pje.CheckState),
		retries:   make(map[uuid.UUID]int),
		gens:      make(map[uuid.UUID]uint64),
	}
}

// Start loads every active subscription and schedules its next check.
func (m *Monitor) Start(ctx context.Context) error {
	subs, err := m.store.ListSubscriptions(ctx, true)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	for _, sub := range subs {
		m.Track(sub)
	}
	m.logger.Info("Monitor started", zap.Int("subscriptions", len(subs)))
	return nil
}

// Track schedules the next check for a subscription. Inactive subscriptions
// are ignored; they are picked up again through Track after reactivation.
func (m *Monitor) Track(sub pje.MonitorSubscription) {
	if !sub.IsActive {
		return
	}
	m.scheduleCheck(sub.ID, m.nextDelay(sub))
}

// CheckNow schedules an immediate check, superseding any pending one.
func (m *Monitor) CheckNow(id uuid.UUID) {
	m.scheduleCheck(id, 0)
}

// State reports the current cycle state for a subscription. Unknown
// subscriptions are idle.
func (m *Monitor) State(id uuid.UUID) pje.CheckState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[id]; ok {
		return state
	}
	return pje.CheckIdle
}

// nextDelay computes how long to wait before the next check. Never-checked and
// past-due subscriptions both wait at least MinDelay.
func (m *Monitor) nextDelay(sub pje.MonitorSubscription) time.Duration {
	if sub.LastCheckedAt == nil {
		return m.cfg.MinDelay
	}
	delay := sub.LastCheckedAt.Add(m.interval(sub)).Sub(m.clock.Now())
	if delay < m.cfg.MinDelay {
		return m.cfg.MinDelay
	}
	return delay
}

func (m *Monitor) interval(sub pje.MonitorSubscription) time.Duration {
	if sub.IntervalHours <= 0 {
		return m.cfg.DefaultInterval
	}
	return time.Duration(sub.IntervalHours) * time.Hour
}

// window is the availability period the next check searches. It overlaps the
// previous check so border entries are caught; the identity hash keeps the
// overlap from producing duplicates.
func (m *Monitor) window(sub pje.MonitorSubscription) (time.Time, time.Time) {
	end := m.clock.Now()
	if sub.LastCheckedAt != nil {
		return sub.LastCheckedAt.AddDate(0, 0, -m.cfg.OverlapDays), end
	}
	return end.AddDate(0, 0, -m.cfg.RetroactiveDays), end
}

// scheduleCheck arms a one-shot check job. Each call bumps the subscription's
// generation; when an older timer fires it notices the newer one and yields,
// so a manual trigger never forks a second check chain.
func (m *Monitor) scheduleCheck(id uuid.UUID, delay time.Duration) {
	m.mu.Lock()
	m.gens[id]++
	gen := m.gens[id]
	m.states[id] = pje.CheckScheduled
	m.mu.Unlock()

	m.scheduler.ScheduleAfter(delay, "check-"+id.String(), func(ctx context.Context) {
		m.runCheck(ctx, id, gen)
	})
	m.logger.Debug("Check scheduled",
		zap.String("subscription_id", id.String()),
		zap.Duration("delay", delay),
	)
}

func (m *Monitor) runCheck(ctx context.Context, id uuid.UUID, gen uint64) {
	if !m.currentGen(id, gen) {
		return
	}
	started := m.clock.Now()
	m.setState(id, pje.CheckDue)

	sub, err := m.store.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, pje.ErrNotFound) {
			m.logger.Info("Subscription removed, stopping checks",
				zap.String("subscription_id", id.String()))
			m.forget(id)
			return
		}
		m.failCycle(ctx, pje.MonitorSubscription{ID: id}, started, fmt.Sprintf("load subscription: %v", err))
		return
	}
	if !sub.IsActive {
		m.logger.Info("Subscription paused, stopping checks",
			zap.String("subscription_id", id.String()))
		m.forget(id)
		return
	}

	m.emit(progress.Event{
		SubscriptionID: progress.UUIDToBytes(id),
		TS:             started,
		Stage:          progress.StageCheckStart,
		StateCode:      sub.StateCode,
	})

	m.setState(id, pje.CheckFetching)
	start, end := m.window(sub)
	result, err := m.searcher.SearchByPeriodConcurrent(ctx, sub.BarNumber, sub.StateCode, &start, &end)
	if ctx.Err() != nil {
		m.abortCheck(id)
		return
	}
	if err != nil {
		m.failCycle(ctx, sub, started, fmt.Sprintf("search: %v", err))
		return
	}
	if result.Error != "" {
		m.failCycle(ctx, sub, started, result.Error)
		return
	}

	m.setState(id, pje.CheckProcessing)
	newCount, err := m.processPublications(ctx, sub, result.Publications)
	if ctx.Err() != nil {
		m.abortCheck(id)
		return
	}
	if err != nil {
		m.failCycle(ctx, sub, started, err.Error())
		return
	}

	now := m.clock.Now()
	if err := m.store.UpdateLastChecked(ctx, id, now); err != nil {
		m.failCycle(ctx, sub, started, fmt.Sprintf("update last checked: %v", err))
		return
	}
	m.recordLog(ctx, pje.MonitorLog{
		SubscriptionID: id,
		Status:         pje.MonitorSuccess,
		Found:          len(result.Publications),
		New:            newCount,
		At:             now,
	})
	m.resetRetries(id)
	m.emit(progress.Event{
		SubscriptionID: progress.UUIDToBytes(id),
		TS:             now,
		Stage:          progress.StageCheckDone,
		StateCode:      sub.StateCode,
		Found:          int64(len(result.Publications)),
		New:            int64(newCount),
		Dur:            now.Sub(started),
	})
	m.logger.Info("Check completed",
		zap.String("subscription_id", id.String()),
		zap.Int("found", len(result.Publications)),
		zap.Int("new", newCount),
	)

	sub.LastCheckedAt = &now
	m.Track(sub)
}

// processPublications persists and notifies the unseen portion of a result
// set. A store error aborts the cycle; already persisted entries stay and the
// retry skips them through the identity hash.
func (m *Monitor) processPublications(ctx context.Context, sub pje.MonitorSubscription, pubs []pje.Publication) (int, error) {
	newCount := 0
	for _, pub := range pubs {
		if err := ctx.Err(); err != nil {
			return newCount, err
		}
		created, err := m.processPublication(ctx, sub, pub)
		if err != nil {
			return newCount, err
		}
		if created {
			newCount++
		}
	}
	return newCount, nil
}

func (m *Monitor) processPublication(ctx context.Context, sub pje.MonitorSubscription, pub pje.Publication) (bool, error) {
	seen, err := m.store.FindByIdentityHash(ctx, pub.IdentityHash)
	if err != nil {
		return false, fmt.Errorf("identity lookup: %w", err)
	}
	if seen {
		return false, nil
	}

	analysis := pje.AnalyzeContent(pub.Content)
	summary := pje.Summarize(pub.Content)

	if _, err := m.store.GetOrCreateCase(ctx, pub.CaseNumber); err != nil {
		return false, fmt.Errorf("get or create case: %w", err)
	}
	if err := m.store.CreatePublication(ctx, pub, sub); err != nil {
		return false, fmt.Errorf("create publication: %w", err)
	}

	m.notify(ctx, sub, pub, analysis.Priority, summary)
	return true, nil
}

func (m *Monitor) notify(ctx context.Context, sub pje.MonitorSubscription, pub pje.Publication, priority pje.PriorityLevel, summary string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, sub, pub, priority, summary); err != nil {
		telemetry.ObserveNotification("error")
		m.logger.Warn("Notification delivery failed",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("case_number", pub.CaseNumber),
			zap.Error(err),
		)
		return
	}
	telemetry.ObserveNotification("sent")
}

// failCycle retries a failed check after a fixed backoff. Once retries are
// exhausted it records the failure and falls back to the normal schedule, so
// a broken portal heals itself on the next period.
func (m *Monitor) failCycle(ctx context.Context, sub pje.MonitorSubscription, started time.Time, errText string) {
	if ctx.Err() != nil {
		m.abortCheck(sub.ID)
		return
	}
	now := m.clock.Now()
	attempt := m.bumpRetries(sub.ID)
	if attempt <= m.cfg.MaxRetries {
		m.logger.Warn("Check failed, retrying",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", m.cfg.RetryBackoff),
			zap.String("error", errText),
		)
		m.emit(progress.Event{
			SubscriptionID: progress.UUIDToBytes(sub.ID),
			TS:             now,
			Stage:          progress.StageCheckRetry,
			StateCode:      sub.StateCode,
			Attempt:        int64(attempt),
			Dur:            now.Sub(started),
			Note:           errText,
		})
		m.scheduleCheck(sub.ID, m.cfg.RetryBackoff)
		return
	}

	m.resetRetries(sub.ID)
	m.recordLog(ctx, pje.MonitorLog{
		SubscriptionID: sub.ID,
		Status:         pje.MonitorFailure,
		Error:          errText,
		At:             now,
	})
	m.logger.Error("Check failed permanently, resuming normal schedule",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("error", errText),
	)
	m.emit(progress.Event{
		SubscriptionID: progress.UUIDToBytes(sub.ID),
		TS:             now,
		Stage:          progress.StageCheckError,
		StateCode:      sub.StateCode,
		Dur:            now.Sub(started),
		Note:           errText,
	})
	m.scheduleCheck(sub.ID, m.interval(sub))
}

func (m *Monitor) recordLog(ctx context.Context, entry pje.MonitorLog) {
	if err := m.store.RecordMonitorLog(ctx, entry); err != nil {
		m.logger.Error("Record monitor log failed",
			zap.String("subscription_id", entry.SubscriptionID.String()),
			zap.Error(err),
		)
	}
}

func (m *Monitor) emit(evt progress.Event) {
	if m.emitter == nil {
		return
	}
	m.emitter.Emit(evt)
}

// abortCheck drops local state on shutdown without touching the store. The
// next process start reloads and reschedules the subscription.
func (m *Monitor) abortCheck(id uuid.UUID) {
	m.logger.Info("Check aborted by shutdown", zap.String("subscription_id", id.String()))
	m.forget(id)
}

func (m *Monitor) currentGen(id uuid.UUID, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[id] == gen
}

func (m *Monitor) setState(id uuid.UUID, state pje.CheckState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = state
}

func (m *Monitor) forget(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	delete(m.retries, id)
	delete(m.gens, id)
}

func (m *Monitor) bumpRetries(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[id]++
	return m.retries[id]
}

func (m *Monitor) resetRetries(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retries, id)
}
