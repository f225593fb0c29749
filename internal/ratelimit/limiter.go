// Package ratelimit implements a fixed-window request limiter keyed by a
// caller identifier (typically client IP plus route class). Every window
// allows at most max requests per identifier; the cutoff is hard, with no
// token-bucket smoothing.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of a single Check call.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
}

type record struct {
	count int
	reset time.Time
}

// Limiter owns the identifier -> record mapping and a background sweep that
// reclaims expired records. Construct with New and release with Stop; the
// limiter is passed by reference to every handler that needs it.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	records map[string]*record
	done    chan struct{}
}

// New creates a Limiter allowing max requests per window and starts the
// sweep goroutine, which runs every sweepInterval independent of traffic.
func New(window time.Duration, max int, sweepInterval time.Duration) *Limiter {
	l := &Limiter{
		window:  window,
		max:     max,
		records: make(map[string]*record),
		done:    make(chan struct{}),
	}
	go l.sweepLoop(sweepInterval)
	return l
}

// Check records one request for the identifier and reports whether it is
// allowed. The read-check-write is atomic under the mutex, so concurrent
// requests for the same identifier can never push the count past max.
// Check never fails.
func (l *Limiter) Check(identifier string) Result {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identifier]
	if !ok || now.After(rec.reset) {
		l.records[identifier] = &record{count: 1, reset: now.Add(l.window)}
		return Result{Allowed: true, Remaining: l.max - 1, Limit: l.max}
	}

	if rec.count >= l.max {
		return Result{Allowed: false, Remaining: 0, Limit: l.max}
	}

	rec.count++
	return Result{Allowed: true, Remaining: l.max - rec.count, Limit: l.max}
}

// Stop terminates the sweep goroutine. Safe to call once.
func (l *Limiter) Stop() {
	close(l.done)
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep(time.Now())
		}
	}
}

// sweep deletes every record whose window has passed. Deleting a record a
// concurrent Check was about to refresh only causes one extra early reset,
// which is acceptable.
func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, rec := range l.records {
		if now.After(rec.reset) {
			delete(l.records, id)
		}
	}
}
