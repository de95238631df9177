package dedup

import (
	"fmt"
	"slices"

	"github.com/hanpama/fedreq/internal/reqmap"
	"github.com/hanpama/fedreq/internal/reqvalue"
)

// Partial is a shard-local index whose members carry their global position
// in the batch. Partials over disjoint shards of one batch fold together
// with Merge into the same groups a single Index would have built.
type Partial struct {
	key reqmap.Key
	t   *table
}

func NewPartial(key reqmap.Key, opts ...IndexOption) *Partial {
	ix := NewIndex(key, opts...)
	return &Partial{key: key, t: ix.t}
}

func (p *Partial) Key() reqmap.Key { return p.key }

func (p *Partial) Len() int { return len(p.t.groups) }

// InsertAt adds id, found at global batch position pos, under value v.
func (p *Partial) InsertAt(pos int, id ObjectID, v reqvalue.Value) error {
	if err := p.t.insert(pos, id, v); err != nil {
		return fmt.Errorf("dedup: %s: object %d: %w", p.key, id, err)
	}
	return nil
}

// Groups returns the groups ordered by their earliest member position, each
// with members in position order.
func (p *Partial) Groups() []Group {
	return p.t.export(p.t.sorted())
}

// Merge folds two partial indices of the same slot into a new one. Groups
// with equal canonical values are combined and their members interleaved
// by position. Merge is associative and commutative, so the result does not
// depend on how the batch was sharded or in which order shards finish.
// Neither input is modified.
func Merge(a, b *Partial) (*Partial, error) {
	if a.key != b.key {
		return nil, fmt.Errorf("%w: %s vs %s", ErrKeyMismatch, a.key, b.key)
	}
	s, err := mergeShapes(a.t.shape, b.t.shape)
	if err != nil {
		return nil, fmt.Errorf("dedup: %s: merge: %w", a.key, err)
	}

	out := &Partial{key: a.key, t: newTable(s)}
	for _, e := range a.t.groups {
		out.t.add(&entry{hash: e.hash, canonical: e.canonical, members: slices.Clone(e.members)})
	}
	for _, e := range b.t.groups {
		gi := out.t.find(e.hash, e.canonical)
		if gi < 0 {
			out.t.add(&entry{hash: e.hash, canonical: e.canonical, members: slices.Clone(e.members)})
			continue
		}
		g := out.t.groups[gi]
		if e.members[0].pos < g.members[0].pos {
			g.canonical = e.canonical
		}
		g.members = mergeMembers(g.members, e.members)
	}
	return out, nil
}
