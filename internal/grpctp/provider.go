package grpctp

import (
	"context"
	"maps"
	"slices"
)

// EndpointProvider returns the reachable endpoints (gRPC targets such as
// host:port) for a fully qualified service name, e.g.
// "fedreq.subgraphs.ReviewsService". Implementations must be safe for
// concurrent use and return at least one endpoint or an error.
type EndpointProvider interface {
	Endpoints(ctx context.Context, service string) ([]string, error)
}

// StaticEndpoints is a fixed service -> endpoints table.
type StaticEndpoints struct {
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	cp := make(map[string][]string, len(m))
	for k, v := range m {
		cp[k] = slices.Clone(v)
	}
	return &StaticEndpoints{data: cp}
}

func (s *StaticEndpoints) Endpoints(_ context.Context, service string) ([]string, error) {
	arr := s.data[service]
	if len(arr) == 0 {
		return nil, ErrNoEndpoints
	}
	return slices.Clone(arr), nil
}

// Services returns the configured service names, sorted.
func (s *StaticEndpoints) Services() []string {
	return slices.Sorted(maps.Keys(s.data))
}

// SingleEndpoint routes every service to one target.
type SingleEndpoint string

func (e SingleEndpoint) Endpoints(context.Context, string) ([]string, error) {
	if e == "" {
		return nil, ErrNoEndpoints
	}
	return []string{string(e)}, nil
}
