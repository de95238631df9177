package coordinator

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// CallRecord captures a single Call invocation for assertions.
type CallRecord struct {
	Method protoreflect.MethodDescriptor
	// FullMethod is "/<service full name>/<method>".
	FullMethod string
	// Request is a deep-cloned snapshot of the input.
	Request proto.Message
}

// MockTransport implements Transport and returns pre-seeded responses in
// call order, recording every invocation.
type MockTransport struct {
	mu        sync.Mutex
	responses []protoreflect.Message
	errs      []error
	idx       int
	calls     []CallRecord
}

// NewMockTransport returns the provided responses in order for successive
// Call invocations.
func NewMockTransport(responses ...protoreflect.Message) *MockTransport {
	return &MockTransport{responses: append([]protoreflect.Message(nil), responses...)}
}

// NewMockTransportWithErrors seeds per-call errors alongside responses.
// For call i, a non-nil errs[i] is returned instead of responses[i].
func NewMockTransportWithErrors(responses []protoreflect.Message, errs []error) *MockTransport {
	return &MockTransport{
		responses: append([]protoreflect.Message(nil), responses...),
		errs:      append([]error(nil), errs...),
	}
}

func (m *MockTransport) Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reqClone proto.Message
	if request != nil {
		reqClone = proto.Clone(request.Interface())
	}
	full := ""
	if method != nil {
		full = fmt.Sprintf("/%s/%s", method.Parent().FullName(), method.Name())
	}
	m.calls = append(m.calls, CallRecord{Method: method, FullMethod: full, Request: reqClone})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.idx >= len(m.responses) && m.idx >= len(m.errs) {
		return nil, fmt.Errorf("mock transport: no more responses")
	}
	defer func() { m.idx++ }()
	if m.idx < len(m.errs) && m.errs[m.idx] != nil {
		return nil, m.errs[m.idx]
	}
	if m.idx < len(m.responses) {
		return m.responses[m.idx], nil
	}
	return nil, nil
}

// Calls returns a snapshot of recorded invocations.
func (m *MockTransport) Calls() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CallRecord(nil), m.calls...)
}
