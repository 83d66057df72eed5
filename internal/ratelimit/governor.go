package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrBudgetExceeded is returned by Reserve when admitting the requested
// calls would push the rolling-window count over the ceiling.
var ErrBudgetExceeded = errors.New("api call budget exceeded")

// Governor bounds total API calls across all accounts and tiers to a
// fixed ceiling per rolling window. The window is a true rolling
// interval: a call made at T stops counting exactly at T + window.
//
// Reserve is non-blocking. Callers reserve before issuing a call and
// convert each reservation into a recorded timestamp with Record once
// the call completes — failed calls still count, since the remote API
// counted them. All methods are safe for concurrent use.
type Governor struct {
	ceiling int
	window  time.Duration

	mu       sync.Mutex
	calls    []time.Time
	reserved int

	now func() time.Time
}

func NewGovernor(ceiling int, window time.Duration) *Governor {
	return &Governor{
		ceiling: ceiling,
		window:  window,
		now:     time.Now,
	}
}

// Reserve admits n more calls if the rolling-window count plus
// outstanding reservations stays at or under the ceiling. It never
// blocks; on failure the caller must not issue the calls.
func (g *Governor) Reserve(n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(g.now())
	if len(g.calls)+g.reserved+n > g.ceiling {
		return ErrBudgetExceeded
	}
	g.reserved += n
	return nil
}

// Release returns n unused reservations to the budget, e.g. when a run
// aborts before spending everything it reserved.
func (g *Governor) Release(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.reserved -= n
	if g.reserved < 0 {
		g.reserved = 0
	}
}

// Record converts one reservation into a timestamped call. It is called
// for every issued call regardless of outcome. A Record without a
// matching reservation still appends, so unreserved callers cannot
// under-count the window.
func (g *Governor) Record() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reserved > 0 {
		g.reserved--
	}
	g.calls = append(g.calls, g.now())
}

// InWindow returns the number of calls still counting against the
// rolling window.
func (g *Governor) InWindow() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(g.now())
	return len(g.calls)
}

// Remaining returns how many more calls could currently be reserved.
func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(g.now())
	r := g.ceiling - len(g.calls) - g.reserved
	if r < 0 {
		return 0
	}
	return r
}

// prune drops timestamps older than one window. Caller holds g.mu.
func (g *Governor) prune(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.calls) && !g.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.calls = append(g.calls[:0], g.calls[i:]...)
	}
}
