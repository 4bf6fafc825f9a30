// Package pool runs independent units of work on a fixed set of goroutines.
package pool

import (
	"context"
	"runtime"
	"sync"
)

// Run feeds units to workers and hands every output to collect on the
// calling goroutine, so collect needs no locking. The first error returned
// by work or collect cancels the units not yet started and is returned.
// Workers <= 0 means GOMAXPROCS.
func Run[U, R any](ctx context.Context, workers int, units []U, work func(context.Context, U) (R, error), collect func(R) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(units))
	if workers == 0 {
		return ctx.Err()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result R
		err    error
	}
	unitCh := make(chan U, workers)
	resultCh := make(chan outcome, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for u := range unitCh {
				if ctx.Err() != nil {
					continue
				}
				r, err := work(ctx, u)
				resultCh <- outcome{result: r, err: err}
			}
		}()
	}
	go func() {
		defer close(resultCh)
		wg.Wait()
	}()
	go func() {
		defer close(unitCh)
		for _, u := range units {
			select {
			case unitCh <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		first error
		done  int
	)
	for o := range resultCh {
		if first != nil {
			continue
		}
		err := o.err
		if err == nil {
			err = collect(o.result)
		}
		if err != nil {
			first = err
			cancel()
			continue
		}
		done++
	}
	if first != nil {
		return first
	}
	if done < len(units) {
		return ctx.Err()
	}
	return nil
}

// Each runs fn for every index in [0, n).
func Each(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}
	return Run(ctx, workers, index,
		func(ctx context.Context, i int) (struct{}, error) { return struct{}{}, fn(ctx, i) },
		func(struct{}) error { return nil },
	)
}
