package dedup

import (
	"slices"

	"github.com/hanpama/fedreq/internal/reqvalue"
)

// shape is the object layout learned for one position of a slot's
// requirement values. arity is -1 until an object is seen there. fields
// holds the layout below each object field, elem the layout shared by all
// elements of a list at this position.
type shape struct {
	arity  int
	fields []*shape
	elem   *shape
}

func newShape(arity int) *shape { return &shape{arity: arity} }

// observe checks v against the layout, learning the parts of it that were
// not known yet. Any object whose arity differs from the one already fixed
// at its position is an *reqvalue.InvalidShapeError.
func (s *shape) observe(v reqvalue.Value) error {
	return s.walk(v, nil)
}

func (s *shape) walk(v reqvalue.Value, path []int) error {
	switch v.Kind() {
	case reqvalue.KindObject:
		n := v.Len()
		if s.arity < 0 {
			s.arity = n
		} else if n != s.arity {
			return &reqvalue.InvalidShapeError{Path: slices.Clone(path), Expected: s.arity, Actual: n}
		}
		if s.fields == nil {
			s.fields = make([]*shape, n)
		}
		for i := range n {
			if s.fields[i] == nil {
				s.fields[i] = newShape(-1)
			}
			if err := s.fields[i].walk(v.Index(i), append(path, i)); err != nil {
				return err
			}
		}
	case reqvalue.KindList:
		if v.Len() == 0 {
			return nil
		}
		if s.elem == nil {
			s.elem = newShape(-1)
		}
		for i := range v.Len() {
			if err := s.elem.walk(v.Index(i), append(path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeShapes combines the layouts learned by two shards into a new one.
// Neither input is modified.
func mergeShapes(a, b *shape) (*shape, error) {
	return mergeAt(a, b, nil)
}

func mergeAt(a, b *shape, path []int) (*shape, error) {
	if a == nil {
		return b.clone(), nil
	}
	if b == nil {
		return a.clone(), nil
	}
	out := &shape{arity: a.arity}
	switch {
	case a.arity < 0:
		out.arity = b.arity
	case b.arity >= 0 && b.arity != a.arity:
		return nil, &reqvalue.InvalidShapeError{Path: slices.Clone(path), Expected: a.arity, Actual: b.arity}
	}
	if n := max(len(a.fields), len(b.fields)); n > 0 {
		out.fields = make([]*shape, n)
		for i := range n {
			var fa, fb *shape
			if i < len(a.fields) {
				fa = a.fields[i]
			}
			if i < len(b.fields) {
				fb = b.fields[i]
			}
			f, err := mergeAt(fa, fb, append(path, i))
			if err != nil {
				return nil, err
			}
			out.fields[i] = f
		}
	}
	if a.elem != nil || b.elem != nil {
		e, err := mergeAt(a.elem, b.elem, path)
		if err != nil {
			return nil, err
		}
		out.elem = e
	}
	return out, nil
}

func (s *shape) clone() *shape {
	if s == nil {
		return nil
	}
	out := &shape{arity: s.arity, elem: s.elem.clone()}
	if s.fields != nil {
		out.fields = make([]*shape, len(s.fields))
		for i, f := range s.fields {
			out.fields[i] = f.clone()
		}
	}
	return out
}
