package dedup

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/fedreq/internal/reqmap"
)

// Job is the input of one fetch slot's build.
type Job struct {
	Key     reqmap.Key
	Mapper  reqmap.Mapper
	Entries []Entry
}

// Result is the outcome of one Job. Exactly one of Groups and Err is set,
// except for an empty batch which yields neither.
type Result struct {
	Key    reqmap.Key
	Groups []Group
	Err    error
}

// BuildAll builds the indices of several fetch slots concurrently, at most
// parallel at a time (unbounded when parallel <= 0). Slots are independent:
// a failed or cancelled slot yields an error for that slot only. Results are
// returned in job order.
func BuildAll(ctx context.Context, jobs []Job, parallel int, opts ...Option) []Result {
	results := make([]Result, len(jobs))
	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, job := range jobs {
		g.Go(func() error {
			groups, err := Build(ctx, job.Key, job.Mapper, job.Entries, opts...)
			results[i] = Result{Key: job.Key, Groups: groups, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
