package protoreg

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/hanpama/fedreq/internal/reqmap"
)

// FieldSpec declares one positional field of a slot's request item.
//
// Type is a protobuf scalar kind name ("string", "int64", "double", ...).
// A FieldSpec with nested Fields and no Type declares a message field.
type FieldSpec struct {
	Name     string
	Type     string
	Repeated bool
	Fields   []FieldSpec
}

// SlotSpec declares the subgraph method serving one fetch slot. Request
// item fields appear in the order given, which is also the order of the
// slot's requirement values.
type SlotSpec struct {
	Key         reqmap.Key
	Service     string
	Fields      []FieldSpec
	Result      FieldSpec // Name is ignored; defaults to a string
	Batch       bool
	Description string
}

// Layout returns the positional layout of the slot's request item.
func (s SlotSpec) Layout() reqmap.Layout {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return reqmap.Layout{Fields: names}
}

// ParseSlotSpec parses one slot declaration:
//
//	<node>.<slot> <Service> [batch] name:type name:[type] name:{a:type,b:type} [-> type]
//
// The last dot of the first token separates the fetch node from the slot.
func ParseSlotSpec(line string) (SlotSpec, error) {
	toks := strings.Fields(line)
	if len(toks) < 2 {
		return SlotSpec{}, fmt.Errorf("protoreg: slot declaration needs a key and a service: %q", line)
	}
	dot := strings.LastIndexByte(toks[0], '.')
	if dot <= 0 || dot == len(toks[0])-1 {
		return SlotSpec{}, fmt.Errorf("protoreg: slot key %q is not <node>.<slot>", toks[0])
	}
	s := SlotSpec{
		Key:     reqmap.Key{FetchNode: toks[0][:dot], Slot: toks[0][dot+1:]},
		Service: toks[1],
		Result:  FieldSpec{Type: "string"},
	}
	rest := toks[2:]
	if len(rest) > 0 && rest[0] == "batch" {
		s.Batch = true
		rest = rest[1:]
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] == "->" {
			if i != len(rest)-2 {
				return SlotSpec{}, fmt.Errorf("protoreg: %s: expected exactly one result type after ->", s.Key)
			}
			res, err := parseType("data", rest[i+1])
			if err != nil {
				return SlotSpec{}, fmt.Errorf("protoreg: %s: %w", s.Key, err)
			}
			s.Result = res
			break
		}
		f, err := parseField(rest[i])
		if err != nil {
			return SlotSpec{}, fmt.Errorf("protoreg: %s: %w", s.Key, err)
		}
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}

// ParseSlotSpecs reads one declaration per line. Blank lines and lines
// starting with '#' are skipped.
func ParseSlotSpecs(r io.Reader) ([]SlotSpec, error) {
	var out []SlotSpec
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := ParseSlotSpec(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

func parseField(tok string) (FieldSpec, error) {
	name, typ, ok := strings.Cut(tok, ":")
	if !ok || name == "" || typ == "" {
		return FieldSpec{}, fmt.Errorf("field %q is not name:type", tok)
	}
	return parseType(name, typ)
}

func parseType(name, typ string) (FieldSpec, error) {
	f := FieldSpec{Name: name}
	if strings.HasPrefix(typ, "[") {
		if !strings.HasSuffix(typ, "]") {
			return FieldSpec{}, fmt.Errorf("field %s: unterminated list type %q", name, typ)
		}
		f.Repeated = true
		typ = typ[1 : len(typ)-1]
	}
	if !strings.HasPrefix(typ, "{") {
		f.Type = typ
		return f, nil
	}
	if !strings.HasSuffix(typ, "}") {
		return FieldSpec{}, fmt.Errorf("field %s: unterminated message type %q", name, typ)
	}
	for _, part := range splitTopLevel(typ[1 : len(typ)-1]) {
		sub, err := parseField(part)
		if err != nil {
			return FieldSpec{}, fmt.Errorf("field %s: %w", name, err)
		}
		f.Fields = append(f.Fields, sub)
	}
	if len(f.Fields) == 0 {
		return FieldSpec{}, fmt.Errorf("field %s: empty message type", name)
	}
	return f, nil
}

// splitTopLevel splits s on commas outside braces and brackets.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
