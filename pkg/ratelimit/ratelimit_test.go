package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/provakit/provakit/pkg/observability/logger"
)

// fakeCounter is an in-memory Counter with a failure toggle.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	fail   bool
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) Increment(_ context.Context, key string, amount int64, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errors.New("counter backend unavailable")
	}
	f.counts[key] += amount
	return f.counts[key], nil
}

func TestLimiter_CountsDownThenRejects(t *testing.T) {
	limiter := NewLimiter(newFakeCounter(), "test", logger.NewNoopLogger())
	ctx := context.Background()

	req := Request{Key: "client-1", Limit: 3, Window: time.Hour}

	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		result := limiter.Check(ctx, req)
		if !result.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
		if result.Remaining != want {
			t.Errorf("call %d: expected remaining %d, got %d", i+1, want, result.Remaining)
		}
		if result.Limit != 3 {
			t.Errorf("call %d: expected limit 3, got %d", i+1, result.Limit)
		}
	}

	result := limiter.Check(ctx, req)
	if result.Allowed {
		t.Error("expected 4th call to be rejected")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0 after rejection, got %d", result.Remaining)
	}
	if !result.ResetAt.After(time.Now()) {
		t.Errorf("expected ResetAt in the future, got %v", result.ResetAt)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(newFakeCounter(), "test", logger.NewNoopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.Check(ctx, Request{Key: "client-1", Limit: 3, Window: time.Hour})
	}
	if limiter.Check(ctx, Request{Key: "client-1", Limit: 3, Window: time.Hour}).Allowed {
		t.Error("expected client-1 to be limited")
	}

	result := limiter.Check(ctx, Request{Key: "client-2", Limit: 3, Window: time.Hour})
	if !result.Allowed || result.Remaining != 2 {
		t.Errorf("expected fresh budget for client-2, got %+v", result)
	}
}

func TestLimiter_FailsOpenOnCounterError(t *testing.T) {
	counter := newFakeCounter()
	counter.fail = true
	limiter := NewLimiter(counter, "test", logger.NewNoopLogger())

	result := limiter.Check(context.Background(), Request{Key: "client-1", Limit: 3, Window: time.Hour})
	if !result.Allowed {
		t.Error("expected fail-open decision when the counter is unavailable")
	}
	if result.Remaining != 3 {
		t.Errorf("expected full remaining budget on fail-open, got %d", result.Remaining)
	}
}

func TestLimiter_SubSecondWindowRoundsUp(t *testing.T) {
	counter := newFakeCounter()
	limiter := NewLimiter(counter, "test", logger.NewNoopLogger())

	result := limiter.Check(context.Background(), Request{Key: "k", Limit: 1, Window: 10 * time.Millisecond})
	if !result.Allowed {
		t.Error("expected first call to be allowed")
	}
	if result.ResetAt.Before(time.Now().Add(-time.Second)) {
		t.Errorf("expected reset within a one second bucket, got %v", result.ResetAt)
	}
}

func TestTokenBucketLimiter_BurstThenSteady(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 2)

	if !limiter.Allow("k") || !limiter.Allow("k") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if limiter.Allow("k") {
		t.Error("expected 3rd immediate call to be rejected")
	}

	// Independent key gets its own bucket
	if !limiter.Allow("other") {
		t.Error("expected fresh bucket for a new key")
	}
}
