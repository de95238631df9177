package coordinator

import (
	"context"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Transport sends one request to a subgraph.
// Implementations MUST be safe for concurrent use: DispatchAll calls Call
// from one goroutine per fetch slot.
//
// Provided implementations:
//   - internal/grpctp.Transport: pooled gRPC client
//   - MockTransport: canned responses with a call log, for tests
type Transport interface {
	Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error)
}
