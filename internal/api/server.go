// Package api exposes the HTTP interface for the publication monitor service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudentia/pje-monitor/internal/config"
	"github.com/prudentia/pje-monitor/internal/pje"
	"github.com/prudentia/pje-monitor/internal/telemetry"
)

// Searcher is the slice of the search façade the API consumes.
type Searcher interface {
	SearchByPeriodConcurrent(ctx context.Context, barNumber, stateCode string, startDate, endDate *time.Time) (pje.SearchResult, error)
	SearchLastDaysConcurrent(ctx context.Context, barNumber, stateCode string, days int) (pje.SearchResult, error)
}

// MonitorControl is the scheduling surface the API drives. Track begins or
// reschedules monitoring for a subscription, CheckNow triggers an immediate
// check, and State reports where a subscription is in its cycle.
type MonitorControl interface {
	Track(sub pje.MonitorSubscription)
	CheckNow(id uuid.UUID)
	State(id uuid.UUID) pje.CheckState
}

// Server wires HTTP handlers to the search façade, the store, and the monitor.
type Server struct {
	router   chi.Router
	searcher Searcher
	subs     *SubscriptionHandler
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. A nil monitor
// disables the subscription endpoints' scheduling side effects but keeps the
// CRUD surface working.
func NewServer(
	store pje.PublicationStore,
	searcher Searcher,
	mon MonitorControl,
	idGen pje.IDGenerator,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		searcher: searcher,
		subs:     NewSubscriptionHandler(store, mon, idGen, logger),
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(telemetry.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.search)
		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", s.subs.Create)
			r.Get("/", s.subs.List)
			r.Route("/{subscription_id}", func(r chi.Router) {
				r.Get("/", s.subs.Get)
				r.Post("/pause", s.subs.Pause)
				r.Post("/resume", s.subs.Resume)
				r.Post("/check", s.subs.TriggerCheck)
				r.Get("/logs", s.subs.ListLogs)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchRequest struct {
	BarNumber string `json:"bar_number"`
	StateCode string `json:"state_code"`
	Days      int    `json:"days"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

const searchDateLayout = "2006-01-02"

// search handles POST /v1/search. The body names the attorney and either a
// day count or an explicit date window. Portal-side failures (captcha,
// network exhaustion) travel inside the SearchResult error field with a 200;
// only invalid parameters produce a 400.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	start, end, err := req.window()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result pje.SearchResult
	if start == nil && end == nil {
		days := req.Days
		if days <= 0 {
			days = 7
		}
		result, err = s.searcher.SearchLastDaysConcurrent(r.Context(), req.BarNumber, req.StateCode, days)
	} else {
		result, err = s.searcher.SearchByPeriodConcurrent(r.Context(), req.BarNumber, req.StateCode, start, end)
	}
	if err != nil {
		var validation *pje.ValidationError
		if errors.As(err, &validation) {
			writeError(w, http.StatusBadRequest, validation.Error())
			return
		}
		s.logger.Error("Search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// window parses the optional explicit date range. Both bounds must be given
// together.
func (r searchRequest) window() (*time.Time, *time.Time, error) {
	if r.StartDate == "" && r.EndDate == "" {
		return nil, nil, nil
	}
	if r.StartDate == "" || r.EndDate == "" {
		return nil, nil, errors.New("start_date and end_date must be set together")
	}
	start, err := time.Parse(searchDateLayout, r.StartDate)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start_date: expected %s", searchDateLayout)
	}
	end, err := time.Parse(searchDateLayout, r.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end_date: expected %s", searchDateLayout)
	}
	return &start, &end, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
