package retry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestProcessBatch_AllSucceed(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	result := ProcessBatch(context.Background(), items, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	}, BatchOptions[int]{Concurrency: 2})

	if len(result.Failed) != 0 {
		t.Fatalf("expected no failures, got %v", result.Failed)
	}
	got := append([]int(nil), result.Successful...)
	sort.Ints(got)
	want := []int{1, 4, 9, 16, 25}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestProcessBatch_PoisonItemDoesNotCancelSiblings(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	poison := errors.New("item rejected")

	result := ProcessBatch(context.Background(), items, func(_ context.Context, n int) (int, error) {
		if n == 3 {
			return 0, poison
		}
		return n * 2, nil
	}, BatchOptions[int]{Concurrency: 2, Retry: Options{InitialDelay: time.Millisecond}})

	if len(result.Failed) != 1 {
		t.Fatalf("expected exactly one failure, got %d", len(result.Failed))
	}
	if result.Failed[0].Item != 3 {
		t.Errorf("expected item 3 to fail, got %d", result.Failed[0].Item)
	}
	if !errors.Is(result.Failed[0].Err, poison) {
		t.Errorf("expected poison error, got %v", result.Failed[0].Err)
	}

	got := append([]int(nil), result.Successful...)
	sort.Ints(got)
	want := []int{2, 4, 8, 10}
	if len(got) != len(want) {
		t.Fatalf("expected successes %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected successes %v, got %v", want, got)
		}
	}
}

func TestProcessBatch_ItemRetriesApply(t *testing.T) {
	var calls int32

	result := ProcessBatch(context.Background(), []string{"a"}, func(_ context.Context, s string) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("transient")
		}
		return s + "!", nil
	}, BatchOptions[string]{
		Concurrency: 1,
		ItemRetries: 2,
		Retry:       Options{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})

	if len(result.Failed) != 0 {
		t.Fatalf("expected item to recover within its retry budget, got %v", result.Failed)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if result.Successful[0] != "a!" {
		t.Errorf("unexpected result %q", result.Successful[0])
	}
}

func TestProcessBatch_ConcurrencyBound(t *testing.T) {
	var inFlight, peak int32

	ProcessBatch(context.Background(), make([]int, 20), func(context.Context, int) (int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return 0, nil
	}, BatchOptions[int]{Concurrency: 4})

	if got := atomic.LoadInt32(&peak); got > 4 {
		t.Errorf("expected at most 4 items in flight, saw %d", got)
	}
}

func TestProcessBatch_OnItemErrorCallback(t *testing.T) {
	var (
		mu     sync.Mutex
		failed []int
	)

	ProcessBatch(context.Background(), []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, errors.New("odd")
		}
		return n, nil
	}, BatchOptions[int]{
		Concurrency: 3,
		Retry:       Options{InitialDelay: time.Millisecond},
		OnItemError: func(item int, err error) {
			mu.Lock()
			failed = append(failed, item)
			mu.Unlock()
		},
	})

	mu.Lock()
	defer mu.Unlock()
	sort.Ints(failed)
	if len(failed) != 2 || failed[0] != 1 || failed[1] != 3 {
		t.Errorf("expected callbacks for items [1 3], got %v", failed)
	}
}

func TestProcessBatch_EmptyInput(t *testing.T) {
	result := ProcessBatch(context.Background(), nil, func(_ context.Context, n int) (int, error) {
		t.Fatal("processor should not run")
		return 0, nil
	}, BatchOptions[int]{Concurrency: 2})

	if len(result.Successful) != 0 || len(result.Failed) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}
