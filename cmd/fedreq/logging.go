package main

import (
	"context"
	"log/slog"

	"github.com/hanpama/fedreq/internal/eventbus"
	"github.com/hanpama/fedreq/internal/events"
)

// logEvents writes build, dispatch and subgraph call events to logger.
func logEvents(logger *slog.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.IndexStart) {
			logger.DebugContext(ctx, "building index", "slot", e.Key, "objects", e.Objects, "workers", e.Workers)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.IndexBuilt) {
			logger.InfoContext(ctx, "index built",
				"slot", e.Key,
				"objects", e.Objects,
				"groups", e.Groups,
				"duration", e.Duration,
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.IndexAborted) {
			logger.ErrorContext(ctx, "index aborted", "slot", e.Key, "objects", e.Objects, "err", e.Err)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.DispatchFinish) {
			lvl := slog.LevelInfo
			if e.Failed > 0 {
				lvl = slog.LevelWarn
			}
			logger.Log(ctx, lvl, "dispatch finished", "slot", e.Key, "groups", e.Groups, "failed", e.Failed, "duration", e.Duration)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.SubgraphCallFinish) {
			logger.DebugContext(ctx, "subgraph call",
				"service", e.Service,
				"method", e.Method,
				"target", e.Target,
				"code", e.Code.String(),
				"duration", e.Duration,
			)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
