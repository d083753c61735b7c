// File: internal/quota/quota.go

// Package quota tracks the remaining request budget against the upstream
// reputation API. The tracking is advisory: it avoids burning requests that
// are certain to be rejected, but the upstream remains the source of truth
// and its response headers override local bookkeeping. State is process-local;
// concurrent processes sharing one API key can still exceed the real quota.
package quota

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/xkilldash9x/iocscope/api/schemas"
)

// Tracker is a mutex-guarded quota window. Construct one per API key and
// share it between every caller of the upstream client.
type Tracker struct {
	mu        sync.Mutex
	budget    int
	window    time.Duration
	remaining int
	resetAt   time.Time

	now func() time.Time
}

// New creates a tracker with a full budget and an already-expired window, so
// the first call starts a fresh window.
func New(budget int, window time.Duration) *Tracker {
	t := &Tracker{
		budget: budget,
		window: window,
		now:    time.Now,
	}
	t.remaining = budget
	t.resetAt = t.now()
	return t
}

// SetClock overrides the tracker's time source. Tests only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// CanProceed reports whether a request may be attempted. An expired window is
// reset to the full budget before evaluating.
func (t *Tracker) CanProceed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfExpiredLocked()
	return t.remaining > 0
}

// Consume records one locally-initiated request against the budget.
func (t *Tracker) Consume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfExpiredLocked()
	if t.remaining > 0 {
		t.remaining--
	}
}

// UpdateFromResponse applies authoritative values from the upstream response
// headers. remaining is a decimal count; reset is epoch seconds. Either may be
// empty or malformed, in which case the local value stands.
func (t *Tracker) UpdateFromResponse(remaining, reset string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			t.remaining = n
		}
	}
	if reset != "" {
		if sec, err := strconv.ParseInt(reset, 10, 64); err == nil {
			t.resetAt = time.Unix(sec, 0)
		}
	}
}

// Info returns a snapshot of the current state.
func (t *Tracker) Info() schemas.RateLimitInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	minutes := t.resetAt.Sub(t.now()).Minutes()
	return schemas.RateLimitInfo{
		Remaining:         t.remaining,
		ResetAt:           t.resetAt,
		MinutesUntilReset: math.Max(0, minutes),
	}
}

func (t *Tracker) resetIfExpiredLocked() {
	if !t.now().Before(t.resetAt) {
		t.remaining = t.budget
		t.resetAt = t.now().Add(t.window)
	}
}
