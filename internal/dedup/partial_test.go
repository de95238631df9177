package dedup

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/fedreq/internal/reqmap"
	"github.com/hanpama/fedreq/internal/reqvalue"
)

// randomBatch draws values from a small pool so that groups span shards.
func randomBatch(r *rand.Rand, n int) []reqvalue.Value {
	pool := []string{
		`{id: 1, region: EU}`,
		`{id: 2, region: EU}`,
		`{id: 1, region: US}`,
		`{id: 1.0, region: EU}`,
		`{id: null, region: EU}`,
		`{id: [1, 2], region: EU}`,
		`{id: [2, 1], region: EU}`,
	}
	out := make([]reqvalue.Value, n)
	for i := range out {
		out[i] = reqvalue.MustParse(pool[r.Intn(len(pool))])
	}
	return out
}

func sequentialGroups(t *testing.T, vs []reqvalue.Value) []Group {
	t.Helper()
	ix := NewIndex(testKey)
	for i, v := range vs {
		require.NoError(t, ix.Insert(ObjectID(i), v))
	}
	g, err := ix.Flush()
	require.NoError(t, err)
	return g
}

// shard splits vs at the given cut points into partials.
func shard(t *testing.T, vs []reqvalue.Value, cuts []int) []*Partial {
	t.Helper()
	var out []*Partial
	lo := 0
	for _, hi := range append(cuts, len(vs)) {
		p := NewPartial(testKey)
		for i := lo; i < hi; i++ {
			require.NoError(t, p.InsertAt(i, ObjectID(i), vs[i]))
		}
		out = append(out, p)
		lo = hi
	}
	return out
}

func mustMerge(t *testing.T, a, b *Partial) *Partial {
	t.Helper()
	m, err := Merge(a, b)
	require.NoError(t, err)
	return m
}

func TestMerge_MatchesSequentialForAnySharding(t *testing.T) {
	r := rand.New(rand.NewSource(10))
	for round := 0; round < 50; round++ {
		vs := randomBatch(r, 40+r.Intn(40))
		want := sequentialGroups(t, vs)

		cuts := []int{}
		for c := 1 + r.Intn(10); c < len(vs); c += 1 + r.Intn(15) {
			cuts = append(cuts, c)
		}
		ps := shard(t, vs, cuts)
		// fold in a shuffled order: commutativity + associativity
		r.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })
		acc := ps[0]
		for _, p := range ps[1:] {
			acc = mustMerge(t, acc, p)
		}
		requireGroups(t, want, acc.Groups())

		got, err := reduce(shard(t, vs, cuts))
		require.NoError(t, err)
		requireGroups(t, want, got.Groups())
	}
}

func TestMerge_Associative(t *testing.T) {
	vs := randomBatch(rand.New(rand.NewSource(11)), 30)
	ps := shard(t, vs, []int{10, 20})
	left := mustMerge(t, mustMerge(t, ps[0], ps[1]), ps[2])
	right := mustMerge(t, ps[0], mustMerge(t, ps[1], ps[2]))
	requireGroups(t, left.Groups(), right.Groups())
}

func TestMerge_DoesNotModifyInputs(t *testing.T) {
	vs := randomBatch(rand.New(rand.NewSource(12)), 20)
	ps := shard(t, vs, []int{10})
	before0, before1 := ps[0].Groups(), ps[1].Groups()
	_ = mustMerge(t, ps[0], ps[1])
	requireGroups(t, before0, ps[0].Groups())
	requireGroups(t, before1, ps[1].Groups())
}

func TestMerge_CanonicalFromEarliestOccurrence(t *testing.T) {
	a := NewPartial(testKey)
	b := NewPartial(testKey)
	require.NoError(t, a.InsertAt(5, 5, reqvalue.MustParse(`{late: 1}`)))
	require.NoError(t, b.InsertAt(2, 2, reqvalue.MustParse(`{early: 1}`)))

	m := mustMerge(t, a, b)
	groups := m.Groups()
	require.Len(t, groups, 1)
	require.Equal(t, "early", groups[0].Canonical.FieldName(0))
	require.Equal(t, []ObjectID{2, 5}, groups[0].Members)
}

func TestMerge_KeyMismatch(t *testing.T) {
	other := reqmap.Key{FetchNode: "User.orders", Slot: "representations"}
	_, err := Merge(NewPartial(testKey), NewPartial(other))
	require.ErrorIs(t, err, ErrKeyMismatch)
}

func TestMerge_ArityMismatchAcrossShards(t *testing.T) {
	a := NewPartial(testKey)
	b := NewPartial(testKey)
	require.NoError(t, a.InsertAt(0, 1, reqvalue.MustParse(`{a: 1, b: 2}`)))
	require.NoError(t, b.InsertAt(1, 2, reqvalue.MustParse(`{a: 1, b: 2, c: 3}`)))
	_, err := Merge(a, b)
	require.ErrorIs(t, err, reqvalue.ErrInvalidValueShape)
}

func TestMerge_NestedArityMismatchAcrossShards(t *testing.T) {
	a := NewPartial(testKey)
	b := NewPartial(testKey)
	require.NoError(t, a.InsertAt(0, 1, reqvalue.MustParse(`{a: {x: 1}, b: []}`)))
	require.NoError(t, b.InsertAt(1, 2, reqvalue.MustParse(`{a: null, b: [{k: 1, v: 2}]}`)))
	c := NewPartial(testKey)
	require.NoError(t, c.InsertAt(2, 3, reqvalue.MustParse(`{a: {x: 1, y: 2}, b: []}`)))

	ab := mustMerge(t, a, b)
	_, err := Merge(ab, c)
	var se *reqvalue.InvalidShapeError
	require.ErrorAs(t, err, &se)
	require.Equal(t, []int{0}, se.Path)

	// the learned layout carries on: a later insert into the merged
	// partial is checked against both shards
	require.ErrorIs(t, ab.InsertAt(3, 4, reqvalue.MustParse(`{a: null, b: [{k: 1}]}`)), reqvalue.ErrInvalidValueShape)
}

func TestPartial_OutOfOrderInsertKeepsPositionOrder(t *testing.T) {
	p := NewPartial(testKey)
	v := reqvalue.Int(1)
	require.NoError(t, p.InsertAt(7, 70, v))
	require.NoError(t, p.InsertAt(3, 30, v))
	require.NoError(t, p.InsertAt(5, 50, v))
	require.NoError(t, p.InsertAt(1, 10, reqvalue.Int(2)))
	groups := p.Groups()
	require.Len(t, groups, 2)
	require.Equal(t, []ObjectID{10}, groups[0].Members)
	require.Equal(t, []ObjectID{30, 50, 70}, groups[1].Members)
	require.Equal(t, 2, p.Len())
}
