package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// DispatchStart is emitted before the groups of one fetch slot are sent.
type DispatchStart struct {
	Key    string
	Groups int
}

// DispatchFinish is emitted once every group of the slot has a result.
type DispatchFinish struct {
	Key      string
	Groups   int
	Failed   int
	Duration time.Duration
}

// SubgraphCallStart is emitted before a gRPC call to a subgraph. Call
// pairs it with its SubgraphCallFinish.
type SubgraphCallStart struct {
	Call    uint64
	Service string
	Method  string
	Target  string
}

// SubgraphCallFinish is emitted after a gRPC call to a subgraph completes.
type SubgraphCallFinish struct {
	Call     uint64
	Service  string
	Method   string
	Target   string
	Code     codes.Code
	Err      error
	Duration time.Duration
}
