package dedup

import (
	"errors"
	"fmt"

	"github.com/hanpama/fedreq/internal/reqmap"
	"github.com/hanpama/fedreq/internal/reqvalue"
)

var (
	// ErrIndexFlushed is returned when an index is used after Flush.
	ErrIndexFlushed = errors.New("dedup: index already flushed")
	// ErrKeyMismatch is returned when partial indices for different fetch
	// slots are merged.
	ErrKeyMismatch = errors.New("dedup: fetch slot keys differ")
)

// ObjectID identifies one object of a result batch.
type ObjectID uint64

// Group is a canonical requirement value and the objects that share it, in
// the order they were inserted.
type Group struct {
	Canonical reqvalue.Value
	Members   []ObjectID
}

// State is the lifecycle stage of an Index.
type State uint8

const (
	StateEmpty State = iota
	StateBuilding
	StateFlushed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateFlushed:
		return "flushed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Index groups objects of one result batch by equivalent requirement value
// for a single fetch slot.
//
// An Index moves Empty -> Building on the first Insert and Building ->
// Flushed on Flush; there is no way back. A shape fault moves it to Failed,
// drops every group, and is returned from all later calls. Index is not
// safe for concurrent use; see Locked.
type Index struct {
	key   reqmap.Key
	state State
	t     *table
	next  int
	err   error
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithArity fixes the top-level object arity expected for the slot, usually
// from the mapper's declared Layout. Without it the first object seen fixes
// the arity. Nested layouts are always learned from the first object seen
// at each position.
func WithArity(n int) IndexOption {
	return func(ix *Index) { ix.t.shape.arity = n }
}

func NewIndex(key reqmap.Key, opts ...IndexOption) *Index {
	ix := &Index{key: key, t: newTable(newShape(-1))}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

func (ix *Index) Key() reqmap.Key { return ix.key }

func (ix *Index) State() State { return ix.state }

// Len returns the number of distinct groups so far.
func (ix *Index) Len() int {
	if ix.t == nil {
		return 0
	}
	return len(ix.t.groups)
}

// Objects returns the number of inserted objects.
func (ix *Index) Objects() int { return ix.next }

// Insert adds id under value v, joining the group of an equal value or
// opening a new one.
func (ix *Index) Insert(id ObjectID, v reqvalue.Value) error {
	switch ix.state {
	case StateFlushed:
		return ErrIndexFlushed
	case StateFailed:
		return ix.err
	}
	ix.state = StateBuilding
	if err := ix.t.insert(ix.next, id, v); err != nil {
		return ix.fail(fmt.Errorf("dedup: %s: object %d: %w", ix.key, id, err))
	}
	ix.next++
	return nil
}

// Flush seals the index and returns its groups in first-seen order.
func (ix *Index) Flush() ([]Group, error) {
	switch ix.state {
	case StateFlushed:
		return nil, ErrIndexFlushed
	case StateFailed:
		return nil, ix.err
	}
	ix.state = StateFlushed
	groups := ix.t.export(ix.t.groups)
	ix.t = nil
	return groups, nil
}

func (ix *Index) fail(err error) error {
	ix.state = StateFailed
	ix.err = err
	ix.t = nil
	return err
}
