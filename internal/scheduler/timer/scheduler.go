// Package timer implements pje.Scheduler on top of time.AfterFunc.
package timer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs named jobs after a delay, each on its own goroutine.
// Jobs receive a context that is canceled when the scheduler closes.
type Scheduler struct {
	mu     sync.Mutex
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	timers map[uint64]*time.Timer
	nextID uint64
	closed bool
	logger *zap.Logger
}

// New creates a Scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		base:   ctx,
		cancel: cancel,
		timers: make(map[uint64]*time.Timer),
		logger: logger,
	}
}

// ScheduleAfter arranges for job to run once delay has elapsed. Jobs
// scheduled after Close are dropped.
func (s *Scheduler) ScheduleAfter(delay time.Duration, name string, job func(ctx context.Context)) {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("Scheduler closed, dropping job", zap.String("job", name))
		return
	}
	id := s.nextID
	s.nextID++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.logger.Debug("Job firing", zap.String("job", name))
		job(s.base)
	})
	s.mu.Unlock()
	s.logger.Debug("Job scheduled",
		zap.String("job", name),
		zap.Duration("delay", delay),
	)
}

// Close stops pending timers, cancels running jobs and waits for them to
// finish. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, t := range s.timers {
		if t.Stop() {
			// The callback will never fire, so release its wait slot here.
			s.wg.Done()
			delete(s.timers, id)
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
