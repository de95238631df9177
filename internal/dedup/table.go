package dedup

import (
	"slices"

	"github.com/hanpama/fedreq/internal/reqvalue"
)

// table is the hash-bucketed group store shared by Index and Partial.
// Groups are kept in creation order; buckets map a value digest to the
// positions of the groups whose canonical value has that digest.
type table struct {
	shape   *shape
	groups  []*entry
	buckets map[uint64][]int
}

type entry struct {
	hash      uint64
	canonical reqvalue.Value
	members   []member
}

type member struct {
	pos int
	id  ObjectID
}

func newTable(s *shape) *table {
	return &table{shape: s, buckets: make(map[uint64][]int)}
}

// find returns the group position holding a value equal to v, or -1.
// Values reaching find have passed the shape check, so aligned objects
// always agree in arity.
func (t *table) find(h uint64, v reqvalue.Value) int {
	for _, gi := range t.buckets[h] {
		if reqvalue.Equal(t.groups[gi].canonical, v) {
			return gi
		}
	}
	return -1
}

func (t *table) insert(pos int, id ObjectID, v reqvalue.Value) error {
	if err := t.shape.observe(v); err != nil {
		return err
	}
	h := reqvalue.Hash(v)
	gi := t.find(h, v)
	if gi < 0 {
		t.add(&entry{hash: h, canonical: v, members: []member{{pos: pos, id: id}}})
		return nil
	}
	e := t.groups[gi]
	m := member{pos: pos, id: id}
	if n := len(e.members); n == 0 || e.members[n-1].pos <= pos {
		e.members = append(e.members, m)
		return nil
	}
	i, _ := slices.BinarySearchFunc(e.members, pos, func(m member, p int) int { return m.pos - p })
	e.members = slices.Insert(e.members, i, m)
	return nil
}

func (t *table) add(e *entry) {
	t.buckets[e.hash] = append(t.buckets[e.hash], len(t.groups))
	t.groups = append(t.groups, e)
}

// sorted returns the groups ordered by their earliest member position.
func (t *table) sorted() []*entry {
	out := slices.Clone(t.groups)
	slices.SortStableFunc(out, func(a, b *entry) int { return a.members[0].pos - b.members[0].pos })
	return out
}

func (t *table) export(ordered []*entry) []Group {
	out := make([]Group, len(ordered))
	for i, e := range ordered {
		ids := make([]ObjectID, len(e.members))
		for j, m := range e.members {
			ids[j] = m.id
		}
		out[i] = Group{Canonical: e.canonical, Members: ids}
	}
	return out
}

// mergeMembers merges two position-sorted member lists.
func mergeMembers(a, b []member) []member {
	out := make([]member, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if b[j].pos < a[i].pos {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
