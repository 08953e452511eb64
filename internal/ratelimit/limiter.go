package ratelimit

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window request counter keyed by an opaque client
// identity. Counters hard-reset at the window boundary; a client straddling
// two windows can get up to twice the configured maximum, which is the
// documented behavior, not a bug.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]record

	window time.Duration
	max    int
}

// New creates a limiter allowing max requests per key within each window.
func New(window time.Duration, max int) *Limiter {
	return &Limiter{
		entries: make(map[string]record),
		window:  window,
		max:     max,
	}
}

// Check records one attempt for key and reports whether the key is now over
// its quota (true = reject). An expired window is treated as fresh before
// counting, so stale entries never need to be swept for correctness.
func (l *Limiter) Check(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.entries[key]
	if !ok || now.After(rec.resetAt) {
		rec = record{resetAt: now.Add(l.window)}
	}
	rec.count++
	l.entries[key] = rec

	return rec.count > l.max
}

// Sweep drops entries whose window has expired. It only bounds memory;
// Check is correct without it.
func (l *Limiter) Sweep() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, rec := range l.entries {
		if now.After(rec.resetAt) {
			delete(l.entries, key)
		}
	}
}

// StartSweeper runs Sweep on the given interval until ctx is canceled.
func (l *Limiter) StartSweeper(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Stats reports the current limiter footprint.
type Stats struct {
	Keys        int           `json:"keys"`
	MaxRequests int           `json:"maxRequests"`
	Window      time.Duration `json:"windowMs"`
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Keys:        len(l.entries),
		MaxRequests: l.max,
		Window:      l.window,
	}
}
