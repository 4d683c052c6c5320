// Package concurrency runs work over a slice on the configured number of
// cores.
package concurrency

import (
	"sync"

	"barcodecount/pkg/context"
)

// minItemsForParallel is the slice length below which work stays on the
// calling goroutine. Image decoding is expensive, so the bar is low.
const minItemsForParallel = 4

// ForEach calls workerFunc for each item, distributing the work across
// ctx.Cores() workers. The first error wins; in sequential mode it stops the
// loop immediately.
func ForEach[T any](ctx *context.OperationContext, items []T, workerFunc func(index int, item T) error) error {
	_, err := run(ctx, items, func(i int, item T) (struct{}, error) {
		return struct{}{}, workerFunc(i, item)
	})
	return err
}

// Map calls workerFunc for each item and returns the results in input order.
// An empty input yields an empty result.
func Map[T any, U any](ctx *context.OperationContext, items []T, workerFunc func(item T) (U, error)) ([]U, error) {
	results, err := run(ctx, items, func(_ int, item T) (U, error) {
		return workerFunc(item)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func run[T any, U any](ctx *context.OperationContext, items []T, workerFunc func(int, T) (U, error)) ([]U, error) {
	numItems := len(items)
	results := make([]U, numItems)
	if numItems == 0 {
		return results, nil
	}

	numWorkers := min(ctx.Cores(), numItems)
	if numWorkers <= 1 || numItems < minItemsForParallel {
		for i, item := range items {
			if err := canceled(ctx); err != nil {
				return nil, err
			}
			res, err := workerFunc(i, item)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) { once.Do(func() { firstErr = err }) }

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := workerFunc(i, items[i])
				if err != nil {
					fail(err)
					continue
				}
				results[i] = res
			}
		}()
	}

	for i := 0; i < numItems; i++ {
		if err := canceled(ctx); err != nil {
			fail(err)
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func canceled(ctx *context.OperationContext) error {
	if ctx == nil || ctx.Context == nil {
		return nil
	}
	return ctx.Err()
}
