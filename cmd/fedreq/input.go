package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fedreq/internal/dedup"
	"github.com/hanpama/fedreq/internal/protoreg"
	"github.com/hanpama/fedreq/internal/reqmap"
	"github.com/hanpama/fedreq/internal/reqvalue"
)

const maxLine = 1 << 20

// readEntries reads `<objectID> <GraphQL literal>` lines. Blank lines and
// lines starting with '#' are skipped. Object ids must be unique: results
// are handed back per id.
func readEntries(r io.Reader) ([]dedup.Entry, error) {
	var out []dedup.Entry
	seen := map[dedup.ObjectID]int{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idText, lit, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("line %d: expected <objectID> <literal>", n)
		}
		id, err := strconv.ParseUint(idText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: object id: %w", n, err)
		}
		if first, dup := seen[dedup.ObjectID(id)]; dup {
			return nil, fmt.Errorf("line %d: duplicate object id %d (first on line %d)", n, id, first)
		}
		seen[dedup.ObjectID(id)] = n
		v, err := reqvalue.ParseLiteral(strings.TrimSpace(lit))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, dedup.Entry{ID: dedup.ObjectID(id), Object: v})
	}
	return out, sc.Err()
}

func readEntriesFile(path string) ([]dedup.Entry, error) {
	if path == "-" {
		return readEntries(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readEntries(f)
}

func loadRegistry(path, pkg string) (*protoreg.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	specs, err := protoreg.ParseSlotSpecs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return protoreg.Build(pkg, specs)
}

// literalMapper hands parsed literals through unchanged. With a registry,
// the slot's declared layout is enforced.
type literalMapper struct {
	reg *protoreg.Registry
}

func (m literalMapper) Layout(key reqmap.Key) (reqmap.Layout, bool) {
	if m.reg == nil {
		return reqmap.Layout{}, false
	}
	return m.reg.Layout(key)
}

func (m literalMapper) Map(_ reqmap.Key, object any) (reqvalue.Value, error) {
	v, ok := object.(reqvalue.Value)
	if !ok {
		return reqvalue.Null(), fmt.Errorf("unexpected object %T", object)
	}
	return v, nil
}

type groupLine struct {
	Canonical string           `json:"canonical"`
	Members   []dedup.ObjectID `json:"members"`
}

type resultLine struct {
	Object dedup.ObjectID `json:"object"`
	Value  any            `json:"value"`
	Error  string         `json:"error,omitempty"`
}

// jsonValue makes decoded subgraph data JSON-encodable.
func jsonValue(v any) (any, error) {
	switch x := v.(type) {
	case protoreflect.Message:
		b, err := protojson.Marshal(x.Interface())
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			j, err := jsonValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	}
	return v, nil
}
