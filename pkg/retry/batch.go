package retry

import (
	"context"
	"sync"
)

// ItemFailure pairs an input item with its terminal processing error.
type ItemFailure[T any] struct {
	Item T
	Err  error
}

// BatchResult partitions a batch run into per-item successes and failures.
// Successful holds results in completion order, not input order; callers that
// need positional correspondence should embed identity in the result type.
type BatchResult[T, R any] struct {
	Successful []R
	Failed     []ItemFailure[T]
}

// BatchOptions controls batch concurrency and per-item retry behavior.
type BatchOptions[T any] struct {
	// Concurrency bounds the number of items in flight at once. Items are
	// processed in chunks of this size; a chunk starts only after the
	// previous one has fully settled.
	Concurrency int
	// ItemRetries is the per-item retry budget (attempts = ItemRetries + 1).
	ItemRetries int
	// Retry tunes the per-item backoff; its MaxRetries is overridden by
	// ItemRetries.
	Retry Options
	// OnItemError is invoked for each item whose retries are exhausted.
	OnItemError func(item T, err error)
}

// ProcessBatch runs processor over every item with bounded concurrency and
// per-item retries. One item exhausting its retries never cancels its
// siblings or later chunks; the batch always runs to completion and reports
// both partitions.
func ProcessBatch[T, R any](ctx context.Context, items []T, processor func(context.Context, T) (R, error), opts BatchOptions[T]) BatchResult[T, R] {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ItemRetries < 0 {
		opts.ItemRetries = 0
	}
	retryOpts := opts.Retry
	retryOpts.MaxRetries = opts.ItemRetries

	var (
		mu     sync.Mutex
		result BatchResult[T, R]
	)

	for start := 0; start < len(items); start += opts.Concurrency {
		end := start + opts.Concurrency
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for _, item := range items[start:end] {
			wg.Add(1)
			go func(item T) {
				defer wg.Done()

				itemResult := WithRetry(ctx, func(ctx context.Context) (R, error) {
					return processor(ctx, item)
				}, retryOpts)

				if itemResult.Success {
					mu.Lock()
					result.Successful = append(result.Successful, itemResult.Data)
					mu.Unlock()
					return
				}

				mu.Lock()
				result.Failed = append(result.Failed, ItemFailure[T]{Item: item, Err: itemResult.Err})
				mu.Unlock()
				if opts.OnItemError != nil {
					opts.OnItemError(item, itemResult.Err)
				}
			}(item)
		}
		wg.Wait()
	}

	return result
}
