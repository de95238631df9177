package coordinator

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fedreq/internal/reqmap"
)

// Registry resolves the subgraph method that serves a fetch slot.
//
// A batch method takes `repeated Item batches = 1` and answers with
// `repeated ItemOut batches = 1`, where ItemOut carries the result in a
// `data` field. A single method takes one Item and answers with one ItemOut.
// Item fields are filled positionally from the canonical requirement value:
// object field i goes to the Item's i-th declared field.
type Registry interface {
	// GetBatchDescriptor returns the batch method for key, or nil.
	GetBatchDescriptor(key reqmap.Key) protoreflect.MethodDescriptor
	// GetSingleDescriptor returns the per-value method for key, or nil.
	GetSingleDescriptor(key reqmap.Key) protoreflect.MethodDescriptor
}
