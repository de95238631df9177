package protoreg

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fedreq/internal/coordinator"
	"github.com/hanpama/fedreq/internal/reqmap"
)

// Registry implements coordinator.Registry over descriptors built from slot
// declarations.
type Registry struct {
	files   []protoreflect.FileDescriptor
	keys    []reqmap.Key
	single  map[reqmap.Key]protoreflect.MethodDescriptor
	batch   map[reqmap.Key]protoreflect.MethodDescriptor
	layouts map[reqmap.Key]reqmap.Layout
}

// GetAllServiceFiles returns the built files, one per service.
func (r *Registry) GetAllServiceFiles() []protoreflect.FileDescriptor {
	return r.files
}

// Keys returns the declared slots in declaration order.
func (r *Registry) Keys() []reqmap.Key {
	return r.keys
}

// GetBatchDescriptor implements coordinator.Registry.
func (r *Registry) GetBatchDescriptor(key reqmap.Key) protoreflect.MethodDescriptor {
	return r.batch[key]
}

// GetSingleDescriptor implements coordinator.Registry.
func (r *Registry) GetSingleDescriptor(key reqmap.Key) protoreflect.MethodDescriptor {
	return r.single[key]
}

// Layout returns the declared requirement layout of key.
func (r *Registry) Layout(key reqmap.Key) (reqmap.Layout, bool) {
	l, ok := r.layouts[key]
	return l, ok
}

var _ coordinator.Registry = (*Registry)(nil)
