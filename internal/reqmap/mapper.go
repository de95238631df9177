package reqmap

import (
	"fmt"

	"github.com/hanpama/fedreq/internal/reqvalue"
)

// Key identifies a variable slot of a fetch node. Requirement values are
// only comparable with values produced under the same Key.
type Key struct {
	FetchNode string
	Slot      string
}

func (k Key) String() string { return k.FetchNode + "." + k.Slot }

// Layout is the field layout a mapper commits to for one Key. Every object
// value it produces for that Key has these fields in this order.
type Layout struct {
	Fields []string
}

func (l Layout) Arity() int { return len(l.Fields) }

// Mapper turns a resolved parent object into the requirement value for one
// fetch slot.
//
// Contract:
//   - Map is deterministic and side-effect free; it may be called from many
//     goroutines at once.
//   - For a Key with a declared Layout, every top-level object returned by
//     Map has exactly Layout.Arity() fields in Layout order.
//   - A nil or absent parent value maps to reqvalue.Null(), not an error.
//
// The engine does not re-derive field order. Wrap a Mapper with Checked to
// have arity violations surface as reqvalue.ErrInvalidValueShape.
type Mapper interface {
	// Layout returns the declared layout for key. ok is false when the mapper
	// does not declare one, in which case the first object seen fixes it.
	Layout(key Key) (layout Layout, ok bool)
	// Map derives the requirement value of object for key.
	Map(key Key, object any) (reqvalue.Value, error)
}

// MapperFunc adapts a plain function to Mapper. It declares no layout.
type MapperFunc func(key Key, object any) (reqvalue.Value, error)

func (f MapperFunc) Layout(Key) (Layout, bool) { return Layout{}, false }

func (f MapperFunc) Map(key Key, object any) (reqvalue.Value, error) { return f(key, object) }

type checked struct {
	Mapper
}

// Checked wraps m so that every value it maps is verified against the
// declared layout for its key.
func Checked(m Mapper) Mapper {
	if _, ok := m.(checked); ok {
		return m
	}
	return checked{m}
}

func (c checked) Map(key Key, object any) (reqvalue.Value, error) {
	v, err := c.Mapper.Map(key, object)
	if err != nil {
		return reqvalue.Value{}, err
	}
	if l, ok := c.Mapper.Layout(key); ok {
		if err := reqvalue.CheckArity(v, l.Arity()); err != nil {
			return reqvalue.Value{}, fmt.Errorf("reqmap: %s: %w", key, err)
		}
	}
	return v, nil
}
