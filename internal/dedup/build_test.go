package dedup

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedreq/internal/eventbus"
	"github.com/hanpama/fedreq/internal/events"
	"github.com/hanpama/fedreq/internal/reqmap"
	"github.com/hanpama/fedreq/internal/reqvalue"
)

// identityMapper treats each entry's Object as an already mapped value.
var identityMapper = reqmap.MapperFunc(func(_ reqmap.Key, obj any) (reqvalue.Value, error) {
	return obj.(reqvalue.Value), nil
})

func entriesOf(vs []reqvalue.Value) []Entry {
	out := make([]Entry, len(vs))
	for i, v := range vs {
		out[i] = Entry{ID: ObjectID(i), Object: v}
	}
	return out
}

func TestBuild_SequentialMatchesIndex(t *testing.T) {
	vs := randomBatch(rand.New(rand.NewSource(20)), 300)
	groups, err := Build(context.Background(), testKey, identityMapper, entriesOf(vs), WithChunkSize(16))
	require.NoError(t, err)
	requireGroups(t, sequentialGroups(t, vs), groups)
}

func TestBuild_ParallelMatchesSequential(t *testing.T) {
	vs := randomBatch(rand.New(rand.NewSource(21)), 2000)
	want := sequentialGroups(t, vs)
	for _, workers := range []int{2, 3, 8} {
		for _, chunk := range []int{1, 7, 64, 1999} {
			t.Run(fmt.Sprintf("w%d_c%d", workers, chunk), func(t *testing.T) {
				got, err := Build(context.Background(), testKey, identityMapper, entriesOf(vs),
					WithWorkers(workers), WithChunkSize(chunk))
				require.NoError(t, err)
				requireGroups(t, want, got)
			})
		}
	}
}

func TestBuild_ScenarioBParallel(t *testing.T) {
	entries := make([]Entry, 10000)
	for i := range entries {
		entries[i] = Entry{ID: ObjectID(i), Object: nested3()}
	}
	groups, err := Build(context.Background(), testKey, identityMapper, entries, WithWorkers(4), WithChunkSize(333))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Members, 10000)
	for i, id := range groups[0].Members {
		require.Equal(t, ObjectID(i), id)
	}
}

func TestBuild_CancellationCheckedBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mapped int
	m := reqmap.MapperFunc(func(_ reqmap.Key, obj any) (reqvalue.Value, error) {
		mapped++
		if mapped == 15 {
			cancel()
		}
		return reqvalue.Int(int64(obj.(int) % 3)), nil
	})
	entries := make([]Entry, 100)
	for i := range entries {
		entries[i] = Entry{ID: ObjectID(i), Object: i}
	}
	groups, err := Build(ctx, testKey, m, entries, WithChunkSize(10))
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, groups)
	// the chunk in flight when cancel fired still completes
	require.Equal(t, 20, mapped)
}

func TestBuild_CancelledBeforeStartParallel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var mapped atomic.Int64
	m := reqmap.MapperFunc(func(_ reqmap.Key, obj any) (reqvalue.Value, error) {
		mapped.Add(1)
		return reqvalue.Null(), nil
	})
	entries := make([]Entry, 100)
	groups, err := Build(ctx, testKey, m, entries, WithChunkSize(10), WithWorkers(4))
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, groups)
	require.Zero(t, mapped.Load())
}

func TestBuild_MapperErrorAbortsSlot(t *testing.T) {
	boom := errors.New("boom")
	m := reqmap.MapperFunc(func(_ reqmap.Key, obj any) (reqvalue.Value, error) {
		if obj.(int) == 42 {
			return reqvalue.Value{}, boom
		}
		return reqvalue.Int(1), nil
	})
	entries := make([]Entry, 100)
	for i := range entries {
		entries[i] = Entry{ID: ObjectID(i), Object: i}
	}
	for _, workers := range []int{1, 4} {
		groups, err := Build(context.Background(), testKey, m, entries, WithChunkSize(8), WithWorkers(workers))
		require.ErrorIs(t, err, boom)
		require.Contains(t, err.Error(), "object 42")
		require.Nil(t, groups)
	}
}

type fixedLayout struct {
	reqmap.MapperFunc
	arity int
}

func (f fixedLayout) Layout(reqmap.Key) (reqmap.Layout, bool) {
	return reqmap.Layout{Fields: make([]string, f.arity)}, true
}

func TestBuild_LayoutViolationIsShapeFault(t *testing.T) {
	m := fixedLayout{MapperFunc: identityMapper, arity: 2}
	vs := []reqvalue.Value{
		reqvalue.MustParse(`{a: 1, b: 2}`),
		reqvalue.MustParse(`{a: 1, b: 2, c: 3}`),
	}
	for _, workers := range []int{1, 2} {
		groups, err := Build(context.Background(), testKey, m, entriesOf(vs), WithChunkSize(1), WithWorkers(workers))
		require.ErrorIs(t, err, reqvalue.ErrInvalidValueShape)
		require.Nil(t, groups)
	}
}

func TestBuild_UndeclaredLayoutFirstObjectFixesArity(t *testing.T) {
	vs := []reqvalue.Value{
		reqvalue.MustParse(`{a: 1, b: 2}`),
		reqvalue.Null(),
		reqvalue.MustParse(`{a: 1}`),
	}
	_, err := Build(context.Background(), testKey, identityMapper, entriesOf(vs))
	require.ErrorIs(t, err, reqvalue.ErrInvalidValueShape)

	// across shards the mismatch surfaces at merge time
	_, err = Build(context.Background(), testKey, identityMapper, entriesOf(vs), WithChunkSize(1), WithWorkers(3))
	require.ErrorIs(t, err, reqvalue.ErrInvalidValueShape)
}

func TestBuild_PublishesEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	var built []events.IndexBuilt
	var aborted []events.IndexAborted
	eventbus.On(bus, func(_ context.Context, e events.IndexBuilt) { built = append(built, e) })
	eventbus.On(bus, func(_ context.Context, e events.IndexAborted) { aborted = append(aborted, e) })

	vs := []reqvalue.Value{reqvalue.Int(1), reqvalue.Int(2), reqvalue.Int(1)}
	_, err := Build(context.Background(), testKey, identityMapper, entriesOf(vs))
	require.NoError(t, err)
	require.Len(t, built, 1)
	require.Equal(t, testKey.String(), built[0].Key)
	require.Equal(t, 3, built[0].Objects)
	require.Equal(t, 2, built[0].Groups)

	bad := []reqvalue.Value{reqvalue.MustParse(`{a: 1}`), reqvalue.MustParse(`{a: 1, b: 1}`)}
	_, err = Build(context.Background(), testKey, identityMapper, entriesOf(bad))
	require.Error(t, err)
	require.Len(t, aborted, 1)
	require.ErrorIs(t, aborted[0].Err, reqvalue.ErrInvalidValueShape)
}

func TestBuildAll_SlotsFailIndependently(t *testing.T) {
	okKey := reqmap.Key{FetchNode: "Product.reviews", Slot: "representations"}
	badKey := reqmap.Key{FetchNode: "Product.inventory", Slot: "representations"}
	good := []reqvalue.Value{reqvalue.Int(1), reqvalue.Int(1)}
	bad := []reqvalue.Value{reqvalue.MustParse(`{a: 1}`), reqvalue.MustParse(`{a: 1, b: 1}`)}

	results := BuildAll(context.Background(), []Job{
		{Key: badKey, Mapper: identityMapper, Entries: entriesOf(bad)},
		{Key: okKey, Mapper: identityMapper, Entries: entriesOf(good)},
	}, 2)
	require.Len(t, results, 2)
	require.Equal(t, badKey, results[0].Key)
	require.ErrorIs(t, results[0].Err, reqvalue.ErrInvalidValueShape)
	require.Nil(t, results[0].Groups)
	require.Equal(t, okKey, results[1].Key)
	require.NoError(t, results[1].Err)
	require.Len(t, results[1].Groups, 1)
	require.Equal(t, []ObjectID{0, 1}, results[1].Groups[0].Members)
}
