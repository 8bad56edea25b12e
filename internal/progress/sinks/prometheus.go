package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prudentia/pje-monitor/internal/progress"
)

// PrometheusSink exports monitor progress metrics via Prometheus. It owns all
// collectors for checks started/completed/running and per-state publication
// counters.
type PrometheusSink struct {
	checksStarted   prometheus.Counter
	checksCompleted *prometheus.CounterVec
	checksRunning   prometheus.Gauge
	checkRuntime    *prometheus.HistogramVec

	publicationsFound *prometheus.CounterVec
	publicationsNew   *prometheus.CounterVec

	tracker *checkTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		checksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_checks_started_total",
			Help: "Total subscription checks that have started.",
		}),
		checksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_checks_completed_total",
			Help: "Total checks completed partitioned by result.",
		}, []string{"result"}),
		checksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_checks_running",
			Help: "Current number of running checks.",
		}),
		checkRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monitor_check_runtime_seconds",
			Help:    "Wall time per completed check.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		publicationsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_publications_found_total",
			Help: "Publications returned by checks partitioned by state.",
		}, []string{"state_code"}),
		publicationsNew: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_publications_new_total",
			Help: "Previously unseen publications partitioned by state.",
		}, []string{"state_code"}),
		tracker: newCheckTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.checksStarted,
		s.checksCompleted,
		s.checksRunning,
		s.checkRuntime,
		s.publicationsFound,
		s.publicationsNew,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCheckStart:
		s.checksStarted.Inc()
		if s.tracker.start(evt.SubscriptionID) {
			s.checksRunning.Inc()
		}
		return
	case progress.StageCheckDone:
		s.checksCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
		s.observePublications(evt)
	case progress.StageCheckRetry:
		s.checksCompleted.WithLabelValues("retry").Inc()
		s.observeRuntime(evt, "retry")
	case progress.StageCheckError:
		s.checksCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	default:
		return
	}
	if s.tracker.complete(evt.SubscriptionID) {
		s.checksRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.checkRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observePublications(evt progress.Event) {
	state := evt.StateCode
	if state == "" {
		state = "unknown"
	}
	if evt.Found > 0 {
		s.publicationsFound.WithLabelValues(state).Add(float64(evt.Found))
	}
	if evt.New > 0 {
		s.publicationsNew.WithLabelValues(state).Add(float64(evt.New))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type checkTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newCheckTracker() *checkTracker {
	return &checkTracker{running: make(map[[16]byte]struct{})}
}

func (t *checkTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *checkTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
