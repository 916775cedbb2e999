package ingest

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FetchFailure records one URL a pool task could not complete.
type FetchFailure struct {
	URL string
	Err error
}

// FetchAll runs task for every URL with at most workers in flight.
// Individual failures are collected and returned in input order; they never
// stop the other tasks. Once ctx is done no further tasks start and the
// context error is returned.
func FetchAll(ctx context.Context, urls []string, workers int, task func(ctx context.Context, url string) error) ([]FetchFailure, error) {
	if workers <= 0 {
		workers = 1
	}

	errorsByIndex := make([]error, len(urls))
	var mutex sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for index, url := range urls {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if err := task(groupCtx, url); err != nil {
				mutex.Lock()
				errorsByIndex[index] = err
				mutex.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	var failures []FetchFailure
	for index, err := range errorsByIndex {
		if err != nil {
			failures = append(failures, FetchFailure{URL: urls[index], Err: err})
		}
	}
	return failures, ctx.Err()
}
