package grpctp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/fedreq/internal/coordinator"
	"github.com/hanpama/fedreq/internal/eventbus"
	"github.com/hanpama/fedreq/internal/events"
)

// MetadataService is the outgoing metadata key carrying the called service.
const MetadataService = "x-fedreq-service"

// Transport is a gRPC transport with per-endpoint connection pooling and
// deadline propagation. Endpoints come from an EndpointProvider and are
// picked round-robin per service.
type Transport struct {
	opts *Options

	mu     sync.RWMutex
	pools  map[string]*connPool // key: endpoint
	next   sync.Map             // service -> *atomic.Uint64
	calls  atomic.Uint64
	closed atomic.Bool
}

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Transport{
		opts:  o,
		pools: make(map[string]*connPool),
	}
}

var _ coordinator.Transport = (*Transport)(nil)

func (t *Transport) Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if t.opts.Provider == nil {
		return nil, ErrNoProvider
	}
	service := string(method.Parent().FullName())
	fullMethod := fmt.Sprintf("/%s/%s", service, method.Name())

	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, MetadataService, service)

	endpoints, err := t.opts.Provider.Endpoints(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("grpctp: %s: %w", service, err)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("grpctp: %s: %w", service, ErrNoEndpoints)
	}
	endpoint := endpoints[t.pick(service, len(endpoints))]

	cc, err := t.getConn(endpoint)
	if err != nil {
		return nil, fmt.Errorf("grpctp: dial %s: %w", endpoint, err)
	}
	defer t.returnConn(endpoint, cc)

	id := t.calls.Add(1)
	start := time.Now()
	eventbus.Publish(ctx, events.SubgraphCallStart{Call: id, Service: service, Method: string(method.Name()), Target: endpoint})
	resp, err := invoke(ctx, cc, fullMethod, request, method)
	eventbus.Publish(ctx, events.SubgraphCallFinish{
		Call:     id,
		Service:  service,
		Method:   string(method.Name()),
		Target:   endpoint,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	return resp, err
}

// Close releases every pooled connection. Calls after Close fail with
// ErrClosed.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pools {
		p.close()
	}
	t.pools = map[string]*connPool{}
	return nil
}

func (t *Transport) pick(service string, n int) int {
	v, _ := t.next.LoadOrStore(service, new(atomic.Uint64))
	return int((v.(*atomic.Uint64).Add(1) - 1) % uint64(n))
}

type connPool struct {
	endpoint string
	opts     *Options
	conns    chan *grpc.ClientConn
	closed   atomic.Bool
}

func newConnPool(endpoint string, opts *Options) *connPool {
	n := opts.MaxConnsPerEndpoint
	if n <= 0 {
		n = 2
	}
	return &connPool{
		endpoint: endpoint,
		opts:     opts,
		conns:    make(chan *grpc.ClientConn, n),
	}
}

func (p *connPool) get() (*grpc.ClientConn, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case cc := <-p.conns:
		return cc, nil
	default:
		return grpc.NewClient(p.endpoint, p.opts.DialOptions...)
	}
}

func (p *connPool) put(cc *grpc.ClientConn) {
	if p.closed.Load() {
		_ = cc.Close()
		return
	}
	select {
	case p.conns <- cc:
	default:
		_ = cc.Close()
	}
}

func (p *connPool) close() {
	if p.closed.Swap(true) {
		return
	}
	for {
		select {
		case cc := <-p.conns:
			_ = cc.Close()
		default:
			return
		}
	}
}

func (t *Transport) getConn(endpoint string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool == nil {
		t.mu.Lock()
		pool = t.pools[endpoint]
		if pool == nil {
			pool = newConnPool(endpoint, t.opts)
			t.pools[endpoint] = pool
		}
		t.mu.Unlock()
	}
	return pool.get()
}

func (t *Transport) returnConn(endpoint string, cc *grpc.ClientConn) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool != nil {
		pool.put(cc)
		return
	}
	_ = cc.Close()
}

func invoke(ctx context.Context, cc *grpc.ClientConn, fullMethod string, req protoreflect.Message, md protoreflect.MethodDescriptor) (protoreflect.Message, error) {
	resp := dynamicpb.NewMessage(md.Output())
	if err := cc.Invoke(ctx, fullMethod, req.Interface(), resp); err != nil {
		return nil, err
	}
	return resp, nil
}
