// Package dedup groups the objects of one result batch by equivalent
// requirement value so that one downstream fetch is issued per distinct
// value.
//
// An Index covers exactly one fetch slot (reqmap.Key) and one pass over one
// batch; it is built, flushed once and discarded. Groups come out in the
// order their value was first seen and members keep insertion order.
//
// For parallel builds each worker fills a Partial over its shard and the
// partials are folded with Merge, which orders groups and members by global
// batch position so the outcome does not depend on sharding. Locked is the
// simpler alternative when a single mutex around Insert is good enough.
package dedup
