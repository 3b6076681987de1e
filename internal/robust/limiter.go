package robust

import (
	"context"
	"sync"
	"time"
)

// Limiter bounds in-flight units of work and enforces a minimum delay between
// successive call starts (a leaky bucket keyed on the last call timestamp).
// The in-flight counter is the only mutable shared resource in a pipeline run;
// it is updated under the mutex on acquire and release, including on failure.
type Limiter struct {
	mu sync.Mutex

	maxConcurrent int
	minInterval   time.Duration

	inFlight int
	lastCall time.Time
	waiters  []chan struct{}

	// Statistics
	totalAcquired int64
	totalWaited   time.Duration
}

// LimiterStatus reports current limiter state.
type LimiterStatus struct {
	InFlight      int           `json:"in_flight"`
	MaxConcurrent int           `json:"max_concurrent"`
	TotalAcquired int64         `json:"total_acquired"`
	TotalWaited   time.Duration `json:"total_waited"`
}

// NewLimiter creates a limiter. maxConcurrent <= 0 means unbounded concurrency;
// minInterval <= 0 disables inter-call spacing.
func NewLimiter(maxConcurrent int, minInterval time.Duration) *Limiter {
	return &Limiter{
		maxConcurrent: maxConcurrent,
		minInterval:   minInterval,
	}
}

// Acquire blocks until a slot is available and the inter-call delay has
// elapsed, or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	for {
		l.mu.Lock()
		if l.maxConcurrent <= 0 || l.inFlight < l.maxConcurrent {
			// Slot available; enforce inter-call spacing.
			wait := time.Duration(0)
			if l.minInterval > 0 && !l.lastCall.IsZero() {
				if since := time.Since(l.lastCall); since < l.minInterval {
					wait = l.minInterval - since
				}
			}
			if wait == 0 {
				l.inFlight++
				l.lastCall = time.Now()
				l.totalAcquired++
				l.totalWaited += time.Since(start)
				l.mu.Unlock()
				return nil
			}
			l.mu.Unlock()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		// No slot; wait for a release.
		ch := make(chan struct{})
		l.waiters = append(l.waiters, ch)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			l.removeWaiter(ch)
			return ctx.Err()
		case <-ch:
		}
	}
}

// Release frees a slot. Must be called exactly once per successful Acquire,
// on both success and failure paths.
func (l *Limiter) Release() {
	l.mu.Lock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	var ch chan struct{}
	if len(l.waiters) > 0 {
		ch = l.waiters[0]
		l.waiters = l.waiters[1:]
	}
	l.mu.Unlock()

	if ch != nil {
		close(ch)
	}
}

// Status returns current limiter state.
func (l *Limiter) Status() LimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterStatus{
		InFlight:      l.inFlight,
		MaxConcurrent: l.maxConcurrent,
		TotalAcquired: l.totalAcquired,
		TotalWaited:   l.totalWaited,
	}
}

func (l *Limiter) removeWaiter(ch chan struct{}) {
	l.mu.Lock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			l.mu.Unlock()
			return
		}
	}
	// Already signalled: we were handed a wake-up we will not use,
	// so pass it to the next waiter.
	var next chan struct{}
	if len(l.waiters) > 0 {
		next = l.waiters[0]
		l.waiters = l.waiters[1:]
	}
	l.mu.Unlock()
	if next != nil {
		close(next)
	}
}
