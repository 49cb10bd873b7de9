package core

// compare_limiter.go bounds how many comparisons run against the backend at
// once. Each comparison holds two uploaded workbooks in memory and a slow
// backend call, so callers wait for a slot up to maxWait and then fail with
// ErrTooManyComparisons.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyComparisons is returned when every slot stays busy for the whole
// wait period. Clients should retry after a short delay.
var ErrTooManyComparisons = errors.New("too many comparisons in progress, please try again later")

// DefaultMaxConcurrentComparisons is the default number of parallel backend calls.
const DefaultMaxConcurrentComparisons = 4

// DefaultMaxCompareWait is how long to wait for a slot before rejecting.
const DefaultMaxCompareWait = 30 * time.Second

// CompareLimiter is a counting semaphore over backend comparisons.
type CompareLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewCompareLimiter allows at most maxConcurrent simultaneous comparisons.
// Non-positive arguments fall back to the defaults.
func NewCompareLimiter(maxConcurrent int, maxWait time.Duration) *CompareLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentComparisons
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxCompareWait
	}
	return &CompareLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a slot. It returns ctx.Err() if ctx ends first and
// ErrTooManyComparisons if maxWait elapses. On success the caller must
// call Release exactly once.
func (l *CompareLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyComparisons
	}
}

// TryAcquire takes a slot without blocking and reports whether it did.
func (l *CompareLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *CompareLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of comparisons holding a slot.
func (l *CompareLimiter) Active() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until no comparison holds a slot or ctx ends.
// Used during shutdown so in-flight comparisons can finish.
func (l *CompareLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CompareLimiterStatus is a snapshot for the health endpoint.
type CompareLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *CompareLimiter) Status() CompareLimiterStatus {
	return CompareLimiterStatus{
		Active:        l.Active(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
