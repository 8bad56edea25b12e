package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudentia/pje-monitor/internal/pje"
)

const (
	defaultLogLimit      = 20
	maxLogLimit          = 200
	defaultIntervalHours = 24
	storeTimeout         = 3 * time.Second
)

// SubscriptionHandler exposes the monitoring subscription endpoints. Writes
// go through the store; scheduling side effects go through the monitor.
type SubscriptionHandler struct {
	store   pje.PublicationStore
	monitor MonitorControl
	idGen   pje.IDGenerator
	timeout time.Duration
	logger  *zap.Logger
}

// NewSubscriptionHandler wires the store, monitor, and logger.
func NewSubscriptionHandler(store pje.PublicationStore, mon MonitorControl, idGen pje.IDGenerator, logger *zap.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionHandler{
		store:   store,
		monitor: mon,
		idGen:   idGen,
		timeout: storeTimeout,
		logger:  logger,
	}
}

type createSubscriptionRequest struct {
	BarNumber     string `json:"bar_number"`
	StateCode     string `json:"state_code"`
	IntervalHours int    `json:"interval_hours"`
}

// Create handles POST /v1/subscriptions. It validates the attorney identity
// against the portal contract, persists the subscription, and begins
// monitoring. Returns 201 with the subscription, 400 for invalid input, or
// 500 if the store rejects the write.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	query := pje.SearchQuery{BarNumber: req.BarNumber, StateCode: req.StateCode}.WithDefaults()
	if err := query.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IntervalHours < 0 {
		writeError(w, http.StatusBadRequest, "invalid interval_hours: must not be negative")
		return
	}
	interval := req.IntervalHours
	if interval == 0 {
		interval = defaultIntervalHours
	}

	id, err := h.idGen.NewID()
	if err != nil {
		h.logger.Error("generate subscription id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}
	sub := pje.MonitorSubscription{
		ID:            id,
		BarNumber:     query.BarNumber,
		StateCode:     query.StateCode,
		IsActive:      true,
		IntervalHours: interval,
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.store.CreateSubscription(ctx, sub); err != nil {
		h.logger.Error("create subscription failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}
	if h.monitor != nil {
		h.monitor.Track(sub)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"subscription": h.toDTO(sub)})
}

// List handles GET /v1/subscriptions?active=. It returns {"subscriptions":
// [...]} with all subscriptions, or only active ones when active=true.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active filter")
			return
		}
		activeOnly = val
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	subs, err := h.store.ListSubscriptions(ctx, activeOnly)
	if err != nil {
		h.logger.Error("list subscriptions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	dtos := make([]subscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		dtos = append(dtos, h.toDTO(sub))
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": dtos})
}

// Get handles GET /v1/subscriptions/{subscription_id}. The response includes
// the subscription's current position in the check cycle.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseSubscriptionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sub, err := h.store.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, pje.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		h.logger.Error("get subscription failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscription": h.toDTO(sub)})
}

// Pause handles POST /v1/subscriptions/{subscription_id}/pause. A paused
// subscription keeps its row but the monitor stops checking it at the next
// scheduled fire.
func (h *SubscriptionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Resume handles POST /v1/subscriptions/{subscription_id}/resume. The
// monitor picks the subscription back up immediately.
func (h *SubscriptionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *SubscriptionHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := parseSubscriptionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.SetSubscriptionActive(ctx, id, active); err != nil {
		if errors.Is(err, pje.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		h.logger.Error("update subscription failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}
	sub, err := h.store.GetSubscription(ctx, id)
	if err != nil {
		h.logger.Error("reload subscription failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if active && h.monitor != nil {
		h.monitor.Track(sub)
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscription": h.toDTO(sub)})
}

// TriggerCheck handles POST /v1/subscriptions/{subscription_id}/check. It
// schedules an immediate check and returns 202; the check itself runs
// asynchronously.
func (h *SubscriptionHandler) TriggerCheck(w http.ResponseWriter, r *http.Request) {
	id, err := parseSubscriptionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.store.GetSubscription(ctx, id); err != nil {
		if errors.Is(err, pje.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		h.logger.Error("get subscription failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "monitor unavailable")
		return
	}
	h.monitor.CheckNow(id)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"subscription_id": id.String(),
		"status":          "check scheduled",
	})
}

// ListLogs handles GET /v1/subscriptions/{subscription_id}/logs?limit=. Logs
// come back newest first.
func (h *SubscriptionHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	id, err := parseSubscriptionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r, defaultLogLimit, maxLogLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	logs, err := h.store.ListMonitorLogs(ctx, id, limit)
	if err != nil {
		h.logger.Error("list monitor logs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list monitor logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": toLogDTOs(logs)})
}

func parseSubscriptionID(r *http.Request) (uuid.UUID, error) {
	idStr := chi.URLParam(r, "subscription_id")
	if idStr == "" {
		return uuid.UUID{}, errors.New("subscription_id is required")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid subscription_id")
	}
	return id, nil
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > maxLimit {
		val = maxLimit
	}
	return val, nil
}

func (h *SubscriptionHandler) toDTO(sub pje.MonitorSubscription) subscriptionDTO {
	dto := subscriptionDTO{
		ID:            sub.ID.String(),
		BarNumber:     sub.BarNumber,
		StateCode:     sub.StateCode,
		IsActive:      sub.IsActive,
		IntervalHours: sub.IntervalHours,
		LastCheckedAt: sub.LastCheckedAt,
	}
	if h.monitor != nil {
		dto.CheckState = string(h.monitor.State(sub.ID))
	}
	return dto
}

func toLogDTOs(in []pje.MonitorLog) []monitorLogDTO {
	out := make([]monitorLogDTO, 0, len(in))
	for _, entry := range in {
		out = append(out, monitorLogDTO{
			SubscriptionID: entry.SubscriptionID.String(),
			Status:         string(entry.Status),
			Found:          entry.Found,
			New:            entry.New,
			Error:          entry.Error,
			At:             entry.At,
		})
	}
	return out
}

type subscriptionDTO struct {
	ID            string     `json:"id"`
	BarNumber     string     `json:"bar_number"`
	StateCode     string     `json:"state_code"`
	IsActive      bool       `json:"is_active"`
	IntervalHours int        `json:"interval_hours"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CheckState    string     `json:"check_state,omitempty"`
}

type monitorLogDTO struct {
	SubscriptionID string    `json:"subscription_id"`
	Status         string    `json:"status"`
	Found          int       `json:"found"`
	New            int       `json:"new"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}
