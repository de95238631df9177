package dedup

import (
	"sync"

	"github.com/hanpama/fedreq/internal/reqmap"
	"github.com/hanpama/fedreq/internal/reqvalue"
)

// Locked serializes access to one Index so that mapping workers can insert
// concurrently. Member order follows the order in which Insert acquired the
// lock; callers that need input order should use Partial and Merge instead.
type Locked struct {
	mu sync.Mutex
	ix *Index
}

func NewLocked(key reqmap.Key, opts ...IndexOption) *Locked {
	return &Locked{ix: NewIndex(key, opts...)}
}

func (l *Locked) Insert(id ObjectID, v reqvalue.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ix.Insert(id, v)
}

func (l *Locked) Flush() ([]Group, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ix.Flush()
}

func (l *Locked) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ix.State()
}
