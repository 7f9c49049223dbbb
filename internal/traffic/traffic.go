// Package traffic keeps sliding windows of request outcomes for health and
// load reporting.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished request.
type Outcome int

const (
	// OutcomeSuccess is a full answer with every pipeline stage available.
	OutcomeSuccess Outcome = iota
	// OutcomeDegraded is an answer served with at least one fallback.
	OutcomeDegraded
	// OutcomeError is a failed request (5xx, timeout).
	OutcomeError
	// OutcomeDenied is a rate-limit rejection (429).
	OutcomeDenied
	outcomeCount
)

// retention bounds how long timestamps are kept.
const retention = 5 * time.Minute

var defaultTracker Tracker

// Record records an outcome on the process-wide tracker.
func Record(o Outcome) {
	defaultTracker.Record(o)
}

// RecordDenied records a rate-limit denial.
func RecordDenied() {
	defaultTracker.Record(OutcomeDenied)
}

// RequestCount returns all outcomes within the window, denials included.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.Count(OutcomeDenied, window)
}

// DegradedRate returns (degraded+errors, answered) within the window.
func DegradedRate(window time.Duration) (degraded, total int) {
	return defaultTracker.DegradedRate(window)
}

// Reset clears the process-wide tracker. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps. The zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	times [outcomeCount][]time.Time
	now   func() time.Time
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Record appends an outcome and prunes expired entries.
func (t *Tracker) Record(o Outcome) {
	t.RecordN(o, 1)
}

// RecordN appends n identical outcomes.
func (t *Tracker) RecordN(o Outcome, n int) {
	if o < 0 || o >= outcomeCount {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	for i := 0; i < n; i++ {
		t.times[o] = append(t.times[o], now)
	}
	t.pruneLocked(now)
}

// Count returns the outcomes of kind o within the window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	if o < 0 || o >= outcomeCount {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[o], t.clock().Add(-window))
}

// RequestCount returns all outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	n := 0
	for _, ts := range t.times {
		n += countSince(ts, cutoff)
	}
	return n
}

// DegradedRate returns (degraded+errors, success+degraded+errors) within the
// window. Denials are excluded from both.
func (t *Tracker) DegradedRate(window time.Duration) (degraded, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	ok := countSince(t.times[OutcomeSuccess], cutoff)
	deg := countSince(t.times[OutcomeDegraded], cutoff)
	errs := countSince(t.times[OutcomeError], cutoff)
	return deg + errs, ok + deg + errs
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.times {
		t.times[i] = nil
	}
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for k, times := range t.times {
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			t.times[k] = append(times[:0], times[i:]...)
		}
	}
}
