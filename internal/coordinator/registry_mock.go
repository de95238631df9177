package coordinator

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fedreq/internal/reqmap"
)

// MockRegistry is a test helper that returns method descriptors registered
// per fetch slot.
type MockRegistry struct {
	batch  map[reqmap.Key]protoreflect.MethodDescriptor
	single map[reqmap.Key]protoreflect.MethodDescriptor
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		batch:  map[reqmap.Key]protoreflect.MethodDescriptor{},
		single: map[reqmap.Key]protoreflect.MethodDescriptor{},
	}
}

func (m *MockRegistry) RegisterBatch(key reqmap.Key, md protoreflect.MethodDescriptor) *MockRegistry {
	m.batch[key] = md
	return m
}

func (m *MockRegistry) RegisterSingle(key reqmap.Key, md protoreflect.MethodDescriptor) *MockRegistry {
	m.single[key] = md
	return m
}

func (m *MockRegistry) GetBatchDescriptor(key reqmap.Key) protoreflect.MethodDescriptor {
	return m.batch[key]
}

func (m *MockRegistry) GetSingleDescriptor(key reqmap.Key) protoreflect.MethodDescriptor {
	return m.single[key]
}
