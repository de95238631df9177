package protoreg

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fedreq/internal/reqmap"
)

// Build synthesizes one proto file per service under package pkg, with a
// method per slot, and returns a Registry over the built descriptors.
func Build(pkg string, specs []SlotSpec) (*Registry, error) {
	b := &builder{
		pkg:           pkg,
		files:         make(map[string]*protobuilder.FileBuilder),
		services:      make(map[string]*protobuilder.ServiceBuilder),
		names:         make(map[protoreflect.Name]reqmap.Key),
		singleMethods: make(map[[2]string]reqmap.Key),
		batchMethods:  make(map[[2]string]reqmap.Key),
	}
	reg := &Registry{
		single:  map[reqmap.Key]protoreflect.MethodDescriptor{},
		batch:   map[reqmap.Key]protoreflect.MethodDescriptor{},
		layouts: map[reqmap.Key]reqmap.Layout{},
	}

	// Pass 1: validate and declare messages and methods
	for _, s := range specs {
		if s.Key.FetchNode == "" || s.Key.Slot == "" {
			return nil, fmt.Errorf("protoreg: slot key %q is incomplete", s.Key)
		}
		if s.Service == "" {
			return nil, fmt.Errorf("protoreg: %s: no service", s.Key)
		}
		if _, dup := reg.layouts[s.Key]; dup {
			return nil, fmt.Errorf("protoreg: %s declared twice", s.Key)
		}
		if err := b.addSlot(s); err != nil {
			return nil, fmt.Errorf("protoreg: %s: %w", s.Key, err)
		}
		reg.layouts[s.Key] = s.Layout()
		reg.keys = append(reg.keys, s.Key)
	}

	// Pass 2: build files in declaration order and index their methods
	for _, svc := range b.order {
		fd, err := b.files[svc].Build()
		if err != nil {
			return nil, fmt.Errorf("protoreg: service %s: %w", svc, err)
		}
		reg.files = append(reg.files, fd)

		services := fd.Services()
		for i := 0; i < services.Len(); i++ {
			sd := services.Get(i)
			methods := sd.Methods()
			for j := 0; j < methods.Len(); j++ {
				md := methods.Get(j)
				k := [2]string{string(sd.Name()), string(md.Name())}
				if key, ok := b.batchMethods[k]; ok {
					reg.batch[key] = md
				}
				if key, ok := b.singleMethods[k]; ok {
					reg.single[key] = md
				}
			}
		}
	}
	return reg, nil
}

type builder struct {
	pkg      string
	order    []string // services in first-declared order
	files    map[string]*protobuilder.FileBuilder
	services map[string]*protobuilder.ServiceBuilder
	names    map[protoreflect.Name]reqmap.Key

	// [serviceName, methodName] -> slot
	singleMethods map[[2]string]reqmap.Key
	batchMethods  map[[2]string]reqmap.Key
}

func (b *builder) file(service string) *protobuilder.FileBuilder {
	fb, ok := b.files[service]
	if !ok {
		fb = protobuilder.NewFile(fileName(b.pkg, service))
		fb.SetPackageName(protoreflect.FullName(b.pkg))
		fb.SetSyntax(protoreflect.Proto3)
		b.files[service] = fb
		b.order = append(b.order, service)
	}
	return fb
}
