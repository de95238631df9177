package dedup

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/fedreq/internal/eventbus"
	"github.com/hanpama/fedreq/internal/events"
	"github.com/hanpama/fedreq/internal/reqmap"
)

// Entry is one resolved parent object of a batch. Object is opaque to this
// package and handed to the mapper as is.
type Entry struct {
	ID     ObjectID
	Object any
}

// Options configures Build.
//
// Defaults:
//   - ChunkSize: 512 objects between cancellation checks
//   - Workers:   1 (sequential build into a single Index)
type Options struct {
	ChunkSize int
	Workers   int
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{ChunkSize: 512, Workers: 1}
}

func WithChunkSize(n int) Option { return func(o *Options) { o.ChunkSize = n } }
func WithWorkers(n int) Option   { return func(o *Options) { o.Workers = n } }

// Build maps every entry through mapper and groups the entries by
// equivalent requirement value for key.
//
// Entries are walked in chunks and ctx is checked between chunks, never in
// the middle of one. With more than one worker, chunks are mapped and
// indexed concurrently into Partials which are then merged; the groups are
// identical to a sequential build. Any error (cancellation, a mapper error,
// or a shape fault) discards the whole index and returns no groups.
func Build(ctx context.Context, key reqmap.Key, mapper reqmap.Mapper, entries []Entry, opts ...Option) ([]Group, error) {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 512
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	mapper = reqmap.Checked(mapper)
	var ixOpts []IndexOption
	if l, ok := mapper.Layout(key); ok {
		ixOpts = append(ixOpts, WithArity(l.Arity()))
	}

	start := time.Now()
	eventbus.Publish(ctx, events.IndexStart{Key: key.String(), Objects: len(entries), Workers: o.Workers})

	var groups []Group
	var err error
	if o.Workers == 1 || len(entries) <= o.ChunkSize {
		groups, err = buildSequential(ctx, key, mapper, entries, o.ChunkSize, ixOpts)
	} else {
		groups, err = buildSharded(ctx, key, mapper, entries, o, ixOpts)
	}
	if err != nil {
		eventbus.Publish(ctx, events.IndexAborted{Key: key.String(), Objects: len(entries), Err: err, Duration: time.Since(start)})
		return nil, err
	}
	eventbus.Publish(ctx, events.IndexBuilt{
		Key:      key.String(),
		Objects:  len(entries),
		Groups:   len(groups),
		Workers:  o.Workers,
		Duration: time.Since(start),
	})
	return groups, nil
}

func buildSequential(ctx context.Context, key reqmap.Key, mapper reqmap.Mapper, entries []Entry, chunk int, ixOpts []IndexOption) ([]Group, error) {
	ix := NewIndex(key, ixOpts...)
	for lo := 0; lo < len(entries); lo += chunk {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dedup: %s: build cancelled after %d objects: %w", key, lo, err)
		}
		hi := min(lo+chunk, len(entries))
		for _, e := range entries[lo:hi] {
			v, err := mapper.Map(key, e.Object)
			if err != nil {
				return nil, fmt.Errorf("dedup: %s: map object %d: %w", key, e.ID, err)
			}
			if err := ix.Insert(e.ID, v); err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dedup: %s: build cancelled after %d objects: %w", key, len(entries), err)
	}
	return ix.Flush()
}

// buildSharded indexes each chunk into its own Partial on a bounded worker
// pool and folds the partials pairwise.
func buildSharded(ctx context.Context, key reqmap.Key, mapper reqmap.Mapper, entries []Entry, o *Options, ixOpts []IndexOption) ([]Group, error) {
	n := (len(entries) + o.ChunkSize - 1) / o.ChunkSize
	partials := make([]*Partial, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for i := 0; i < n; i++ {
		lo := i * o.ChunkSize
		hi := min(lo+o.ChunkSize, len(entries))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := NewPartial(key, ixOpts...)
			for j, e := range entries[lo:hi] {
				v, err := mapper.Map(key, e.Object)
				if err != nil {
					return fmt.Errorf("dedup: %s: map object %d: %w", key, e.ID, err)
				}
				if err := p.InsertAt(lo+j, e.ID, v); err != nil {
					return err
				}
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("dedup: %s: build cancelled: %w", key, cerr)
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dedup: %s: build cancelled: %w", key, err)
	}

	merged, err := reduce(partials)
	if err != nil {
		return nil, err
	}
	return merged.Groups(), nil
}

// reduce merges neighbouring partials level by level.
func reduce(ps []*Partial) (*Partial, error) {
	for len(ps) > 1 {
		next := make([]*Partial, 0, (len(ps)+1)/2)
		for i := 0; i < len(ps); i += 2 {
			if i+1 == len(ps) {
				next = append(next, ps[i])
				break
			}
			m, err := Merge(ps[i], ps[i+1])
			if err != nil {
				return nil, err
			}
			next = append(next, m)
		}
		ps = next
	}
	return ps[0], nil
}
