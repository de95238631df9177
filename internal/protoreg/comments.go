package protoreg

import (
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
)

// slotComment documents the method serving s: the slot key, the request
// layout, then the free-form description.
func slotComment(s SlotSpec) protobuilder.Comments {
	lines := []string{"Serves fetch slot " + s.Key.String() + "."}
	if len(s.Fields) > 0 {
		lines = append(lines, "Requirement layout: ("+strings.Join(s.Layout().Fields, ", ")+").")
	}
	if s.Description != "" {
		lines = append(lines, "")
		lines = append(lines, strings.Split(s.Description, "\n")...)
	}
	return comment(lines)
}

func comment(lines []string) protobuilder.Comments {
	if len(lines) == 0 {
		return protobuilder.Comments{}
	}
	// protoprint expects a leading space per line and a trailing newline.
	out := make([]string, len(lines))
	for i, line := range lines {
		if line != "" {
			out[i] = " " + line
		}
	}
	return protobuilder.Comments{LeadingComment: strings.Join(out, "\n") + "\n"}
}
