package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type budgetSource interface {
	InWindow() int
	Remaining() int
}

type backlogSource interface {
	CountPending(ctx context.Context) (int, error)
}

type alertCounter interface {
	CountOpen(ctx context.Context) (int, error)
}

// StatusHandler exposes the collector's operational state: budget
// usage, parse backlog and open alerts. Read-only; collection is driven
// by the scheduler, not by HTTP.
type StatusHandler struct {
	governor  budgetSource
	captures  backlogSource
	alerts    alertCounter
	startedAt time.Time
}

func NewStatusHandler(governor budgetSource, captures backlogSource, alerts alertCounter) *StatusHandler {
	return &StatusHandler{
		governor:  governor,
		captures:  captures,
		alerts:    alerts,
		startedAt: time.Now(),
	}
}

func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.Status)
}

type statusResponse struct {
	UptimeSeconds   int64 `json:"uptime_seconds"`
	CallsInWindow   int   `json:"calls_in_window"`
	BudgetRemaining int   `json:"budget_remaining"`
	ParseBacklog    int   `json:"parse_backlog"`
	OpenAlerts      int   `json:"open_alerts"`
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	backlog, err := h.captures.CountPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count parse backlog")
		return
	}
	openAlerts, err := h.alerts.CountOpen(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count open alerts")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		UptimeSeconds:   int64(time.Since(h.startedAt).Seconds()),
		CallsInWindow:   h.governor.InWindow(),
		BudgetRemaining: h.governor.Remaining(),
		ParseBacklog:    backlog,
		OpenAlerts:      openAlerts,
	})
}
