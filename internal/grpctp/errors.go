package grpctp

import "errors"

var (
	// ErrNoEndpoints indicates the provider returned no endpoints for a service.
	ErrNoEndpoints = errors.New("grpctp: no endpoints available")
	// ErrClosed is returned by Call after Close.
	ErrClosed = errors.New("grpctp: transport closed")
	// ErrNoProvider is returned by Call when no EndpointProvider is configured.
	ErrNoProvider = errors.New("grpctp: provider not configured")
)
