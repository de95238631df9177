// Package reqid tags a context with the id of the execution pass it belongs
// to, so events emitted while building and dispatching several fetch slots
// of one pass can be correlated.
package reqid

import (
	"context"
	"math/rand/v2"
)

type key struct{}

// NewContext returns a copy of parent carrying a new random pass id, and
// the id itself. A parent that already carries an id is returned unchanged.
func NewContext(parent context.Context) (context.Context, int64) {
	if id, ok := FromContext(parent); ok {
		return parent, id
	}
	id := rand.Int64()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the pass id from ctx.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}
