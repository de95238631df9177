package reqvalue

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Variant seeds keep structurally different values apart even when their
// children hash alike, e.g. null, [] and {}.
const (
	seedNull   uint64 = 0x9e3779b97f4a7c15
	seedScalar uint64 = 0xc2b2ae3d27d4eb4f
	seedList   uint64 = 0x165667b19e3779f9
	seedObject uint64 = 0x27d4eb2f165667c5
)

// Hash returns a structural digest of v consistent with Equal: equal values
// always hash alike. Lists and objects fold their children in order, so
// permutations hash differently. Object field names do not contribute.
func Hash(v Value) uint64 {
	if v.n == nil {
		return seedNull
	}
	switch v.n.kind {
	case KindScalar:
		return hashScalar(v.n)
	case KindList:
		return fold(seedList, v.n.elems)
	case KindObject:
		return fold(seedObject, v.n.elems)
	}
	return seedNull
}

func hashScalar(n *node) uint64 {
	seed := mix(seedScalar, uint64(n.scalar))
	switch n.scalar {
	case ScalarInt:
		return mix(seed, uint64(n.i))
	case ScalarFloat:
		return mix(seed, math.Float64bits(n.f))
	case ScalarString, ScalarEnum:
		return mix(seed, xxhash.Sum64String(n.s))
	case ScalarBoolean:
		if n.b {
			return mix(seed, 1)
		}
		return mix(seed, 0)
	}
	return seed
}

func fold(seed uint64, elems []Value) uint64 {
	h := mix(seed, uint64(len(elems)))
	for _, e := range elems {
		h = mix(h, Hash(e))
	}
	return h
}

// mix combines the running state with the next child digest. It is not
// commutative, which is what makes the fold order-sensitive.
func mix(h, c uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], h)
	binary.LittleEndian.PutUint64(buf[8:], c)
	return xxhash.Sum64(buf[:])
}
