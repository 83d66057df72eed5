package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type stubBudget struct {
	inWindow  int
	remaining int
}

func (s *stubBudget) InWindow() int  { return s.inWindow }
func (s *stubBudget) Remaining() int { return s.remaining }

type stubBacklog struct {
	n   int
	err error
}

func (s *stubBacklog) CountPending(context.Context) (int, error) { return s.n, s.err }

type stubAlerts struct {
	n   int
	err error
}

func (s *stubAlerts) CountOpen(context.Context) (int, error) { return s.n, s.err }

func newStatusServer(h *StatusHandler) *httptest.Server {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return httptest.NewServer(r)
}

func TestStatus(t *testing.T) {
	h := NewStatusHandler(
		&stubBudget{inWindow: 42, remaining: 558},
		&stubBacklog{n: 7},
		&stubAlerts{n: 3},
	)
	srv := newStatusServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET /status error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.CallsInWindow != 42 || body.BudgetRemaining != 558 {
		t.Errorf("budget = %d/%d, want 42/558", body.CallsInWindow, body.BudgetRemaining)
	}
	if body.ParseBacklog != 7 {
		t.Errorf("ParseBacklog = %d, want 7", body.ParseBacklog)
	}
	if body.OpenAlerts != 3 {
		t.Errorf("OpenAlerts = %d, want 3", body.OpenAlerts)
	}
}

func TestStatus_StoreErrorReturns500(t *testing.T) {
	h := NewStatusHandler(
		&stubBudget{},
		&stubBacklog{err: errors.New("connection refused")},
		&stubAlerts{},
	)
	srv := newStatusServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET /status error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}
