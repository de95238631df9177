package grpctp

import (
	"time"

	"google.golang.org/grpc"
)

// Options configures the gRPC transport.
//
// Defaults:
//   - MaxConnsPerEndpoint: 2
//   - RPCTimeout:          3s (used only if the incoming context has no deadline)
//   - DialOptions:         insecure credentials with default backoff
//
// Provider must be set (StaticEndpoints, SingleEndpoint or a custom
// implementation); without it every Call fails with ErrNoProvider.
type Options struct {
	Provider EndpointProvider

	MaxConnsPerEndpoint int
	RPCTimeout          time.Duration

	DialOptions []grpc.DialOption
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		MaxConnsPerEndpoint: 2,
		RPCTimeout:          3 * time.Second,
	}
}

func WithProvider(p EndpointProvider) Option { return func(o *Options) { o.Provider = p } }
func WithMaxConnsPerEndpoint(n int) Option   { return func(o *Options) { o.MaxConnsPerEndpoint = n } }
func WithRPCTimeout(d time.Duration) Option  { return func(o *Options) { o.RPCTimeout = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}
