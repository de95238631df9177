package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	grpccodes "google.golang.org/grpc/codes"

	"github.com/hanpama/fedreq/internal/eventbus"
	"github.com/hanpama/fedreq/internal/events"
	"github.com/hanpama/fedreq/internal/reqid"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(Subscribe(tp.Tracer("test")))
	return rec
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Name()
	}
	return out
}

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup("", "fedreq")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSubscribe_BuildSpansPerSlotAndPass(t *testing.T) {
	rec := setupRecorder(t)
	p1, _ := reqid.NewContext(context.Background())
	p2, _ := reqid.NewContext(context.Background())

	eventbus.Publish(p1, events.IndexStart{Key: "Product.reviews.representations", Objects: 3})
	eventbus.Publish(p2, events.IndexStart{Key: "Product.reviews.representations", Objects: 5})
	eventbus.Publish(p2, events.IndexAborted{Key: "Product.reviews.representations", Err: errors.New("shape")})
	eventbus.Publish(p1, events.IndexBuilt{Key: "Product.reviews.representations", Objects: 3, Groups: 2, Duration: time.Millisecond})

	ended := rec.Ended()
	require.Equal(t, []string{"dedup.build", "dedup.build"}, spanNames(ended))
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, codes.Unset, ended[1].Status().Code)
}

func TestSubscribe_DispatchAndCallSpans(t *testing.T) {
	rec := setupRecorder(t)
	ctx, _ := reqid.NewContext(context.Background())

	eventbus.Publish(ctx, events.DispatchStart{Key: "Product.reviews.representations", Groups: 2})
	eventbus.Publish(ctx, events.SubgraphCallStart{Call: 1, Service: "fedreq.subgraphs.ReviewsService", Method: "BatchFetch"})
	eventbus.Publish(ctx, events.SubgraphCallStart{Call: 2, Service: "fedreq.subgraphs.ReviewsService", Method: "BatchFetch"})
	eventbus.Publish(ctx, events.SubgraphCallFinish{Call: 2, Code: grpccodes.Unavailable, Err: errors.New("unavailable")})
	eventbus.Publish(ctx, events.SubgraphCallFinish{Call: 1, Code: grpccodes.OK})
	eventbus.Publish(ctx, events.DispatchFinish{Key: "Product.reviews.representations", Groups: 2, Failed: 1})

	ended := rec.Ended()
	require.Equal(t, []string{"grpc.client", "grpc.client", "dedup.dispatch"}, spanNames(ended))
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, codes.Unset, ended[1].Status().Code)
	require.Equal(t, codes.Error, ended[2].Status().Code)
}

func TestSubscribe_FinishWithoutStartIsIgnored(t *testing.T) {
	rec := setupRecorder(t)
	eventbus.Publish(context.Background(), events.IndexBuilt{Key: "x.y"})
	eventbus.Publish(context.Background(), events.SubgraphCallFinish{Call: 9})
	require.Empty(t, rec.Ended())
}
