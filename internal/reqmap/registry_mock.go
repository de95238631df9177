package reqmap

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// MockRegistry is a test helper that lets tests register source field
// descriptors per (objectType, field) and requirement bindings per Key.
type MockRegistry struct {
	sourceFields map[[2]string]protoreflect.FieldDescriptor
	objectTypes  map[Key]string
	bindings     map[Key][]Binding
}

// NewMockRegistry creates an empty MockRegistry.
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		sourceFields: map[[2]string]protoreflect.FieldDescriptor{},
		objectTypes:  map[Key]string{},
		bindings:     map[Key][]Binding{},
	}
}

// RegisterSourceField maps (objectType, graphqlField) to a field descriptor.
func (m *MockRegistry) RegisterSourceField(objectType, graphqlField string, fd protoreflect.FieldDescriptor) *MockRegistry {
	m.sourceFields[[2]string{objectType, graphqlField}] = fd
	return m
}

// RegisterSourceMessage registers every field of md under objectType using
// the field's JSON name as the GraphQL field name.
func (m *MockRegistry) RegisterSourceMessage(objectType string, md protoreflect.MessageDescriptor) *MockRegistry {
	fds := md.Fields()
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		m.sourceFields[[2]string{objectType, fd.JSONName()}] = fd
	}
	return m
}

// RegisterBindings declares the requirement layout of key.
func (m *MockRegistry) RegisterBindings(key Key, objectType string, bindings ...Binding) *MockRegistry {
	m.objectTypes[key] = objectType
	m.bindings[key] = append([]Binding{}, bindings...)
	return m
}

// ---- SourceRegistry implementation ----

func (m *MockRegistry) GetSourceFieldDescriptor(objectType, graphqlField string) protoreflect.FieldDescriptor {
	return m.sourceFields[[2]string{objectType, graphqlField}]
}

func (m *MockRegistry) GetRequirementBindings(key Key) (string, []Binding) {
	return m.objectTypes[key], m.bindings[key]
}

var _ SourceRegistry = (*MockRegistry)(nil)
