package reqmap

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	"github.com/hanpama/fedreq/internal/reqvalue"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Binding copies one parent source field into one request variable field,
// e.g. @resolve(with: { authorId: "id" }) binds Request "authorId" to
// Source "id".
type Binding struct {
	Request string
	Source  string
}

// SourceRegistry describes how parent sources are laid out and which of
// their fields each fetch slot requires.
type SourceRegistry interface {
	// GetSourceFieldDescriptor returns the proto field backing a GraphQL field
	// of objectType, or nil if unknown.
	GetSourceFieldDescriptor(objectType, graphqlField string) protoreflect.FieldDescriptor
	// GetRequirementBindings returns the parent object type and the ordered
	// bindings for key. The order of bindings is the requirement layout.
	GetRequirementBindings(key Key) (objectType string, bindings []Binding)
}

// ProtoMapper derives requirement values from protoreflect.Message sources.
//
// Registry trust: a binding that names a source field the registry cannot
// describe is a configuration error and panics.
type ProtoMapper struct {
	reg SourceRegistry
}

var _ Mapper = (*ProtoMapper)(nil)

func NewProtoMapper(reg SourceRegistry) *ProtoMapper {
	return &ProtoMapper{reg: reg}
}

func (m *ProtoMapper) Layout(key Key) (Layout, bool) {
	_, bindings := m.reg.GetRequirementBindings(key)
	if bindings == nil {
		return Layout{}, false
	}
	fields := make([]string, len(bindings))
	for i, b := range bindings {
		fields[i] = b.Request
	}
	return Layout{Fields: fields}, true
}

// Map builds an object with one field per binding, in binding order. A nil
// source maps to Null.
func (m *ProtoMapper) Map(key Key, object any) (reqvalue.Value, error) {
	if object == nil {
		return reqvalue.Null(), nil
	}
	msg, ok := object.(protoreflect.Message)
	if !ok {
		return reqvalue.Value{}, fmt.Errorf("reqmap: %s: source must be protoreflect.Message, got %T", key, object)
	}
	if !msg.IsValid() {
		return reqvalue.Null(), nil
	}
	objectType, bindings := m.reg.GetRequirementBindings(key)
	fields := make([]reqvalue.Field, len(bindings))
	for i, b := range bindings {
		fd := m.reg.GetSourceFieldDescriptor(objectType, b.Source)
		if fd == nil {
			panic(fmt.Sprintf("reqmap: missing FieldDescriptor for %s.%s", objectType, b.Source))
		}
		v, err := fieldValue(msg, fd)
		if err != nil {
			return reqvalue.Value{}, fmt.Errorf("reqmap: %s: %s.%s: %w", key, objectType, b.Source, err)
		}
		fields[i] = reqvalue.Field{Name: b.Request, Value: v}
	}
	return reqvalue.Object(fields...), nil
}

// fieldValue reads fd from msg. Fields with explicit presence that are
// unset become Null; implicit-presence scalars read their default so that
// 0 and null stay distinct.
func fieldValue(msg protoreflect.Message, fd protoreflect.FieldDescriptor) (reqvalue.Value, error) {
	if fd.IsMap() {
		return reqvalue.Value{}, fmt.Errorf("map field %s has no stable order", fd.FullName())
	}
	if fd.HasPresence() && !msg.Has(fd) {
		return reqvalue.Null(), nil
	}
	v := msg.Get(fd)
	if fd.IsList() {
		lst := v.List()
		elems := make([]reqvalue.Value, lst.Len())
		for i := 0; i < lst.Len(); i++ {
			ev, err := singularValue(fd, lst.Get(i))
			if err != nil {
				return reqvalue.Value{}, err
			}
			elems[i] = ev
		}
		return reqvalue.List(elems...), nil
	}
	return singularValue(fd, v)
}

func singularValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) (reqvalue.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return reqvalue.Bool(v.Bool()), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return reqvalue.Int(v.Int()), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return reqvalue.Int(int64(v.Uint())), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		// Int is signed; larger values travel as their decimal string.
		if n := v.Uint(); n > math.MaxInt64 {
			return reqvalue.String(strconv.FormatUint(n, 10)), nil
		}
		return reqvalue.Int(int64(v.Uint())), nil
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return reqvalue.Float(v.Float()), nil
	case protoreflect.StringKind:
		return reqvalue.String(v.String()), nil
	case protoreflect.BytesKind:
		return reqvalue.String(base64.StdEncoding.EncodeToString(v.Bytes())), nil
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return reqvalue.Enum(string(ev.Name())), nil
		}
		return reqvalue.Int(int64(v.Enum())), nil
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return messageValue(v.Message())
	}
	return reqvalue.Value{}, fmt.Errorf("unsupported field kind %s", fd.Kind())
}

// messageValue maps a nested message to an object in descriptor field
// order, which is fixed per message type.
func messageValue(msg protoreflect.Message) (reqvalue.Value, error) {
	fds := msg.Descriptor().Fields()
	fields := make([]reqvalue.Field, fds.Len())
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		v, err := fieldValue(msg, fd)
		if err != nil {
			return reqvalue.Value{}, err
		}
		fields[i] = reqvalue.Field{Name: fd.JSONName(), Value: v}
	}
	return reqvalue.Object(fields...), nil
}
