package protoreg

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func (b *builder) getOrCreateService(s SlotSpec) *protobuilder.ServiceBuilder {
	sb, ok := b.services[s.Service]
	if !ok {
		sb = protobuilder.NewService(nameService(s.Service))
		b.services[s.Service] = sb
		b.file(s.Service).AddService(sb)
	}
	return sb
}

// addSlot declares the method serving s. A batch slot gets
//
//	rpc BatchFetchXByY(BatchFetchXByYRequest) returns (BatchFetchXByYResponse);
//
// whose messages wrap `repeated FetchXByYRequest batches = 1` and
// `repeated FetchXByYResponse batches = 1`; other slots get the single
// FetchXByY method.
func (b *builder) addSlot(s SlotSpec) error {
	single := nameSingleMethod(s.Key)
	// message names derive from the method name and share one package
	if other, dup := b.names[single]; dup {
		return fmt.Errorf("method name %s already used by %s", single, other)
	}
	b.names[single] = s.Key

	file := b.file(s.Service)
	serviceBuilder := b.getOrCreateService(s)
	requestMB, err := b.newMessage(file, nameRequest(single), s.Fields)
	if err != nil {
		return err
	}
	responseMB, err := b.createResponse(file, nameResponse(single), s.Result)
	if err != nil {
		return err
	}

	if s.Batch {
		batch := nameBatchMethod(s.Key)
		batchRequestMB := createBatchMessage(nameRequest(batch), requestMB)
		batchResponseMB := createBatchMessage(nameResponse(batch), responseMB)
		file.AddMessage(batchRequestMB)
		file.AddMessage(batchResponseMB)

		methodBuilder := protobuilder.NewMethod(
			batch,
			protobuilder.RpcTypeMessage(batchRequestMB, false),
			protobuilder.RpcTypeMessage(batchResponseMB, false),
		)
		methodBuilder.SetComments(slotComment(s))
		serviceBuilder.AddMethod(methodBuilder)
		b.batchMethods[[2]string{string(serviceBuilder.Name()), string(batch)}] = s.Key
		return nil
	}

	methodBuilder := protobuilder.NewMethod(
		single,
		protobuilder.RpcTypeMessage(requestMB, false),
		protobuilder.RpcTypeMessage(responseMB, false),
	)
	methodBuilder.SetComments(slotComment(s))
	serviceBuilder.AddMethod(methodBuilder)
	b.singleMethods[[2]string{string(serviceBuilder.Name()), string(single)}] = s.Key
	return nil
}

func (b *builder) createResponse(file *protobuilder.FileBuilder, name protoreflect.Name, result FieldSpec) (*protobuilder.MessageBuilder, error) {
	result.Name = "data"
	responseMB := protobuilder.NewMessage(name)
	fb, err := b.newField(file, name, result)
	if err != nil {
		return nil, err
	}
	fb.SetNumber(protoreflect.FieldNumber(1))
	responseMB.AddField(fb)
	file.AddMessage(responseMB)
	return responseMB, nil
}

func createBatchMessage(name protoreflect.Name, item *protobuilder.MessageBuilder) *protobuilder.MessageBuilder {
	mb := protobuilder.NewMessage(name)
	fb := protobuilder.NewField(nameProtoField("batches"), protobuilder.FieldTypeMessage(item))
	fb.SetNumber(protoreflect.FieldNumber(1))
	fb.SetRepeated()
	mb.AddField(fb)
	return mb
}
