package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastOptions() Options {
	return Options{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Base:         2,
	}
}

func TestWithRetry_FirstAttemptSucceeds(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 3

	result := WithRetry(context.Background(), func(context.Context) (int, error) {
		return 7, nil
	}, opts)

	if !result.Success {
		t.Fatalf("expected success, got error %v", result.Err)
	}
	if result.Data != 7 {
		t.Errorf("expected data 7, got %d", result.Data)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
}

func TestWithRetry_SucceedsOnThirdAttempt(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 3

	calls := 0
	result := WithRetry(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, opts)

	if !result.Success {
		t.Fatalf("expected success, got error %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if result.Data != "ok" {
		t.Errorf("expected data %q, got %q", "ok", result.Data)
	}
}

func TestWithRetry_ExhaustsBudget(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 2

	wantErr := errors.New("permanent")
	calls := 0
	result := WithRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, wantErr
	}, opts)

	if result.Success {
		t.Fatal("expected failure")
	}
	// Initial attempt plus two retries.
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if calls != 3 {
		t.Errorf("expected op to run 3 times, ran %d", calls)
	}
	if !errors.Is(result.Err, wantErr) {
		t.Errorf("expected terminal error to surface, got %v", result.Err)
	}
}

func TestWithRetry_DelaysStayBounded(t *testing.T) {
	opts := Options{
		MaxRetries:   6,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Base:         2,
	}

	var delays []time.Duration
	opts.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	WithRetry(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("always")
	}, opts)

	if len(delays) != 6 {
		t.Fatalf("expected 6 retry callbacks, got %d", len(delays))
	}
	limit := time.Duration(float64(opts.MaxDelay) * (1 + jitterFactor))
	for i, delay := range delays {
		if delay < 0 {
			t.Errorf("delay %d is negative: %v", i, delay)
		}
		if delay > limit {
			t.Errorf("delay %d exceeds cap: %v > %v", i, delay, limit)
		}
	}
	// The first delay starts from InitialDelay, never above its jittered bound.
	firstLimit := time.Duration(float64(opts.InitialDelay) * (1 + jitterFactor))
	if delays[0] > firstLimit {
		t.Errorf("first delay %v exceeds %v", delays[0], firstLimit)
	}
}

func TestWithRetry_OnRetryReceivesAttemptNumbers(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 2

	var attempts []int
	opts.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	WithRetry(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("always")
	}, opts)

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected attempts [1 2], got %v", attempts)
	}
}

func TestWithRetry_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	opts := Options{
		MaxRetries:   10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Base:         2,
	}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := WithRetry(ctx, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	}, opts)

	if result.Success {
		t.Fatal("expected failure after cancellation")
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("expected context.Canceled in error chain, got %v", result.Err)
	}
	if calls > 2 {
		t.Errorf("expected cancellation to stop retries early, op ran %d times", calls)
	}
}

func TestRetryable_CollapsesResult(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 2

	calls := 0
	fn := Retryable(func(context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 99, nil
	}, opts)

	got, err := fn(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 99 {
		t.Errorf("expected 99, got %d", got)
	}

	wantErr := errors.New("permanent")
	failing := Retryable(func(context.Context) (string, error) {
		return "", wantErr
	}, opts)

	_, err = failing(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("expected terminal error to be re-surfaced, got %v", err)
	}
}

func TestDo(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 1

	calls := 0
	result := Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}, opts)

	if !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}
}
