package protoreg

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var scalars = map[string]protoreflect.Kind{
	protoreflect.BoolKind.String():     protoreflect.BoolKind,
	protoreflect.Int32Kind.String():    protoreflect.Int32Kind,
	protoreflect.Sint32Kind.String():   protoreflect.Sint32Kind,
	protoreflect.Uint32Kind.String():   protoreflect.Uint32Kind,
	protoreflect.Int64Kind.String():    protoreflect.Int64Kind,
	protoreflect.Sint64Kind.String():   protoreflect.Sint64Kind,
	protoreflect.Uint64Kind.String():   protoreflect.Uint64Kind,
	protoreflect.Sfixed32Kind.String(): protoreflect.Sfixed32Kind,
	protoreflect.Fixed32Kind.String():  protoreflect.Fixed32Kind,
	protoreflect.FloatKind.String():    protoreflect.FloatKind,
	protoreflect.Sfixed64Kind.String(): protoreflect.Sfixed64Kind,
	protoreflect.Fixed64Kind.String():  protoreflect.Fixed64Kind,
	protoreflect.DoubleKind.String():   protoreflect.DoubleKind,
	protoreflect.StringKind.String():   protoreflect.StringKind,
	protoreflect.BytesKind.String():    protoreflect.BytesKind,
}

// newField builds the field for f. Nested message types are created under
// the name parent+Field and added to file.
func (b *builder) newField(file *protobuilder.FileBuilder, parent protoreflect.Name, f FieldSpec) (*protobuilder.FieldBuilder, error) {
	var ft *protobuilder.FieldType
	scalar := false
	switch {
	case f.Type == "" && len(f.Fields) > 0:
		mb, err := b.newMessage(file, nameNested(parent, f.Name), f.Fields)
		if err != nil {
			return nil, err
		}
		ft = protobuilder.FieldTypeMessage(mb)
	case f.Type != "" && len(f.Fields) == 0:
		kind, ok := scalars[f.Type]
		if !ok {
			return nil, fmt.Errorf("protoreg: field %s: unknown type %q", f.Name, f.Type)
		}
		ft = protobuilder.FieldTypeScalar(kind)
		scalar = true
	default:
		return nil, fmt.Errorf("protoreg: field %s needs exactly one of a type or nested fields", f.Name)
	}
	fb := protobuilder.NewField(nameProtoField(f.Name), ft)
	switch {
	case f.Repeated:
		fb.SetRepeated()
	case scalar:
		// requirement fields are nullable; keep presence so null stays unset
		fb.SetOptional()
	}
	return fb, nil
}

// newMessage builds a message with one field per spec, in order.
func (b *builder) newMessage(file *protobuilder.FileBuilder, name protoreflect.Name, fields []FieldSpec) (*protobuilder.MessageBuilder, error) {
	mb := protobuilder.NewMessage(name)
	fbs := make([]*protobuilder.FieldBuilder, 0, len(fields))
	seen := make(map[protoreflect.Name]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("protoreg: message %s: field without a name", name)
		}
		fb, err := b.newField(file, name, f)
		if err != nil {
			return nil, err
		}
		if seen[fb.Name()] {
			return nil, fmt.Errorf("protoreg: message %s: duplicate field %s", name, fb.Name())
		}
		seen[fb.Name()] = true
		mb.AddField(fb)
		fbs = append(fbs, fb)
	}
	allocateFieldNumbers(fbs)
	file.AddMessage(mb)
	return mb, nil
}
