package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCompareLimiter_AcquireRelease(t *testing.T) {
	limiter := NewCompareLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.Status(); got != (CompareLimiterStatus{Active: 0, Available: 2, MaxConcurrent: 2}) {
		t.Errorf("initial Status = %+v", got)
	}

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i+1, err)
		}
	}
	if got := limiter.Status(); got.Active != 2 || got.Available != 0 {
		t.Errorf("full Status = %+v, want 2 active, 0 available", got)
	}

	limiter.Release()
	limiter.Release()
	if got := limiter.Active(); got != 0 {
		t.Errorf("after Release, Active = %d, want 0", got)
	}
}

func TestCompareLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewCompareLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrTooManyComparisons) {
		t.Errorf("Acquire on full limiter = %v, want ErrTooManyComparisons", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("gave up too early: %v", elapsed)
	}
}

func TestCompareLimiter_ContextCancelled(t *testing.T) {
	limiter := NewCompareLimiter(1, time.Minute)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire on empty limiter failed")
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire with cancelled ctx = %v, want context.Canceled", err)
	}
	if limiter.TryAcquire() {
		t.Error("TryAcquire succeeded on a full limiter")
	}
}

func TestCompareLimiter_BoundsConcurrency(t *testing.T) {
	const maxConcurrent = 3
	limiter := NewCompareLimiter(maxConcurrent, time.Second)

	var wg sync.WaitGroup
	var peak atomic.Int64
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			n := int64(limiter.Active())
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > maxConcurrent {
		t.Errorf("peak active = %d, want <= %d", got, maxConcurrent)
	}
	if got := limiter.Active(); got != 0 {
		t.Errorf("Active after all done = %d, want 0", got)
	}
}

func TestCompareLimiter_WaitForDrain(t *testing.T) {
	limiter := NewCompareLimiter(2, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain = %v, want nil", err)
	}
}

func TestCompareLimiter_Defaults(t *testing.T) {
	limiter := NewCompareLimiter(0, 0)
	if got := limiter.Status().MaxConcurrent; got != DefaultMaxConcurrentComparisons {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentComparisons)
	}
}
