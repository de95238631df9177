package protoreg

import (
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// allocateFieldNumbers gives every field a tag derived from its name, so
// adding or removing a field never renumbers the others.
func allocateFieldNumbers(fieldBuilders []*protobuilder.FieldBuilder) {
	fieldNames := make([]string, len(fieldBuilders))
	for i, fb := range fieldBuilders {
		fieldNames[i] = string(fb.Name())
	}
	fieldNumbers := getFnv32LP(fieldNames)
	for i, fb := range fieldBuilders {
		fb.SetNumber(protoreflect.FieldNumber(fieldNumbers[i]))
	}
}

const (
	maxTag           = 31767
	reservedTagStart = 19000
	reservedTagEnd   = 19999
)

// getFnv32LP assigns deterministic tag numbers:
//  1. candidate = (FNV32a(name) % 31767) + 1
//  2. candidates in the reserved 19000..19999 block jump to 20000
//  3. collisions probe linearly, wrapping to 1
//
// Names are processed in sorted order so collision resolution does not
// depend on declaration order.
func getFnv32LP(names []string) []int {
	if len(names) == 0 {
		return nil
	}
	idx := make([]int, len(names))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return names[idx[a]] < names[idx[b]] })

	out := make([]int, len(names))
	used := make(map[int]struct{}, len(names))
	for _, i := range idx {
		start := int(fnv32(names[i])%maxTag) + 1
		cand := start
		for probes := 0; ; probes++ {
			if probes > maxTag {
				panic("protoreg: exhausted tag space")
			}
			if cand >= reservedTagStart && cand <= reservedTagEnd {
				cand = reservedTagEnd + 1
			}
			if _, ok := used[cand]; !ok {
				used[cand] = struct{}{}
				out[i] = cand
				break
			}
			cand++
			if cand > maxTag {
				cand = 1
			}
		}
	}
	return out
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
