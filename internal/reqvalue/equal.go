package reqvalue

import "math"

// Equal reports whether a and b are equivalent requirement values.
//
// Comparison is positional: list elements and object field values are
// compared pairwise in order and object field names are never inspected.
// Scalars are equal only when both literal kind and value match exactly;
// floats compare by bit pattern. Objects of different arity are unequal;
// use EqualStrict to surface that case as a fault.
func Equal(a, b Value) bool {
	eq, _ := equal(a, b, false)
	return eq
}

// EqualStrict is Equal but returns an *InvalidShapeError when two aligned
// objects have different field counts.
func EqualStrict(a, b Value) (bool, error) {
	return equal(a, b, true)
}

func equal(a, b Value, strict bool) (bool, error) {
	if a.n == b.n {
		return true, nil
	}
	if a.Kind() != b.Kind() {
		return false, nil
	}
	switch a.n.kind {
	case KindScalar:
		return scalarEqual(a.n, b.n), nil
	case KindList:
		if len(a.n.elems) != len(b.n.elems) {
			return false, nil
		}
		return elemsEqual(a.n.elems, b.n.elems, strict)
	case KindObject:
		if len(a.n.elems) != len(b.n.elems) {
			if strict {
				return false, &InvalidShapeError{Expected: len(a.n.elems), Actual: len(b.n.elems)}
			}
			return false, nil
		}
		return elemsEqual(a.n.elems, b.n.elems, strict)
	}
	return false, nil
}

func elemsEqual(as, bs []Value, strict bool) (bool, error) {
	for i := range as {
		eq, err := equal(as[i], bs[i], strict)
		if err != nil {
			return false, prependPath(err, i)
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

func scalarEqual(a, b *node) bool {
	if a.scalar != b.scalar {
		return false
	}
	switch a.scalar {
	case ScalarInt:
		return a.i == b.i
	case ScalarFloat:
		return math.Float64bits(a.f) == math.Float64bits(b.f)
	case ScalarString, ScalarEnum:
		return a.s == b.s
	case ScalarBoolean:
		return a.b == b.b
	}
	return false
}

func prependPath(err error, i int) error {
	se, ok := err.(*InvalidShapeError)
	if !ok {
		return err
	}
	se.Path = append([]int{i}, se.Path...)
	return se
}

// CheckArity verifies that v, when it is an object, has the given number of
// fields. Non-object values always pass.
func CheckArity(v Value, arity int) error {
	if v.Kind() != KindObject || len(v.n.elems) == arity {
		return nil
	}
	return &InvalidShapeError{Expected: arity, Actual: len(v.n.elems)}
}
