package reqvalue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the variant tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindScalar:
		return "Scalar"
	case KindList:
		return "List"
	case KindObject:
		return "Object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ScalarKind is the literal kind carried by a scalar. Scalars of different
// kinds are never equal, even when their printed forms coincide.
type ScalarKind uint8

const (
	ScalarInt ScalarKind = iota + 1
	ScalarFloat
	ScalarString
	ScalarBoolean
	ScalarEnum
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarInt:
		return "Int"
	case ScalarFloat:
		return "Float"
	case ScalarString:
		return "String"
	case ScalarBoolean:
		return "Boolean"
	case ScalarEnum:
		return "Enum"
	default:
		return "ScalarKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable requirement value tree.
//
// The zero Value is Null. Values are built once through the constructors in
// this file and never mutated afterwards; copying a Value copies a reference
// to the same tree, which is what the identity shortcut in Equal relies on.
type Value struct {
	n *node
}

type node struct {
	kind   Kind
	scalar ScalarKind
	i      int64
	f      float64
	s      string
	b      bool
	elems  []Value
	// names are carried for rendering and request encoding; Equal and Hash
	// never read them.
	names []string
}

// Field is a named object field used at construction time.
type Field struct {
	Name  string
	Value Value
}

func Null() Value { return Value{} }

func Int(v int64) Value { return Value{&node{kind: KindScalar, scalar: ScalarInt, i: v}} }

func Float(v float64) Value { return Value{&node{kind: KindScalar, scalar: ScalarFloat, f: v}} }

func String(v string) Value { return Value{&node{kind: KindScalar, scalar: ScalarString, s: v}} }

func Bool(v bool) Value { return Value{&node{kind: KindScalar, scalar: ScalarBoolean, b: v}} }

func Enum(symbol string) Value {
	return Value{&node{kind: KindScalar, scalar: ScalarEnum, s: symbol}}
}

// List returns a list value holding a copy of elems.
func List(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{&node{kind: KindList, elems: cp}}
}

// Object returns an object value whose fields keep the given order.
func Object(fields ...Field) Value {
	n := &node{kind: KindObject, elems: make([]Value, len(fields)), names: make([]string, len(fields))}
	for i, f := range fields {
		n.elems[i] = f.Value
		n.names[i] = f.Name
	}
	return Value{n}
}

// Kind returns the variant tag of v.
func (v Value) Kind() Kind {
	if v.n == nil {
		return KindNull
	}
	return v.n.kind
}

func (v Value) IsNull() bool { return v.n == nil }

// ScalarKind returns the literal kind of a scalar, or 0 for other variants.
func (v Value) ScalarKind() ScalarKind {
	if v.Kind() != KindScalar {
		return 0
	}
	return v.n.scalar
}

// Len returns the number of list elements or object fields.
func (v Value) Len() int {
	if v.n == nil {
		return 0
	}
	return len(v.n.elems)
}

// Index returns the i-th list element or object field value.
func (v Value) Index(i int) Value { return v.n.elems[i] }

// FieldName returns the name of the i-th object field.
func (v Value) FieldName(i int) string {
	if v.Kind() != KindObject {
		return ""
	}
	return v.n.names[i]
}

func (v Value) IntValue() (int64, bool) {
	if v.ScalarKind() != ScalarInt {
		return 0, false
	}
	return v.n.i, true
}

func (v Value) FloatValue() (float64, bool) {
	if v.ScalarKind() != ScalarFloat {
		return 0, false
	}
	return v.n.f, true
}

// StringValue returns the text of a String or Enum scalar.
func (v Value) StringValue() (string, bool) {
	switch v.ScalarKind() {
	case ScalarString, ScalarEnum:
		return v.n.s, true
	}
	return "", false
}

func (v Value) BoolValue() (bool, bool) {
	if v.ScalarKind() != ScalarBoolean {
		return false, false
	}
	return v.n.b, true
}

// String renders v in GraphQL input literal syntax.
func (v Value) String() string {
	var sb strings.Builder
	v.render(&sb)
	return sb.String()
}

func (v Value) render(sb *strings.Builder) {
	switch v.Kind() {
	case KindNull:
		sb.WriteString("null")
	case KindScalar:
		switch v.n.scalar {
		case ScalarInt:
			sb.WriteString(strconv.FormatInt(v.n.i, 10))
		case ScalarFloat:
			sb.WriteString(formatFloat(v.n.f))
		case ScalarString:
			quoteString(sb, v.n.s)
		case ScalarBoolean:
			sb.WriteString(strconv.FormatBool(v.n.b))
		case ScalarEnum:
			sb.WriteString(v.n.s)
		}
	case KindList:
		sb.WriteByte('[')
		for i, e := range v.n.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.render(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, e := range v.n.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			name := v.n.names[i]
			if name == "" {
				name = "_" + strconv.Itoa(i)
			}
			sb.WriteString(name)
			sb.WriteString(": ")
			e.render(sb)
		}
		sb.WriteByte('}')
	}
}

// formatFloat keeps a decimal point or exponent so the literal re-parses as
// a Float rather than an Int.
func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// quoteString writes s as a GraphQL string literal. Control characters use
// \u escapes; GraphQL has no \x or \a forms.
func quoteString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(sb, `\u%04x`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}
