// Package workerpool runs a function over a slice of items with bounded
// concurrency.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// ForEach calls fn for every item using at most workers goroutines and waits
// for all calls to return. Every non-nil error is collected and returned
// joined, in no particular order. Items not yet started when ctx is
// cancelled are skipped and ctx.Err() is included in the result.
func ForEach[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var errs []error
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			record(err)
			break
		}
		select {
		case <-ctx.Done():
			record(ctx.Err())
			wg.Wait()
			return errors.Join(errs...)
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(it T) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := fn(ctx, it); err != nil {
				record(err)
			}
		}(item)
	}

	wg.Wait()
	return errors.Join(errs...)
}
