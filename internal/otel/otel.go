package otel

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/fedreq/internal/eventbus"
	"github.com/hanpama/fedreq/internal/events"
	"github.com/hanpama/fedreq/internal/reqid"
)

// Setup exports traces over OTLP/gRPC to endpoint and attaches eventbus
// subscribers that turn build, dispatch and subgraph call events into spans.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Subscribe(tp.Tracer("fedreq"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscribe registers span-producing handlers with the global event bus
// using tracer, and returns a function removing them.
func Subscribe(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

// slotSpan identifies the span of one fetch slot within one pass.
type slotSpan struct {
	pass int64
	key  string
}

type subscriber struct {
	tracer    trace.Tracer
	builds    sync.Map // slotSpan -> trace.Span
	dispatch  sync.Map // slotSpan -> trace.Span
	callSpans sync.Map // call id -> trace.Span
}

func slotOf(ctx context.Context, key string) slotSpan {
	rid, _ := reqid.FromContext(ctx)
	return slotSpan{pass: rid, key: key}
}

func endSpan(m *sync.Map, k any, err error, attrs ...attribute.KeyValue) {
	v, ok := m.LoadAndDelete(k)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.IndexStart) {
			_, span := s.tracer.Start(ctx, "dedup.build")
			span.SetAttributes(
				attribute.String("fedreq.slot", e.Key),
				attribute.Int("fedreq.objects", e.Objects),
				attribute.Int("fedreq.workers", e.Workers),
			)
			s.builds.Store(slotOf(ctx, e.Key), span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.IndexBuilt) {
			endSpan(&s.builds, slotOf(ctx, e.Key), nil, attribute.Int("fedreq.groups", e.Groups))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.IndexAborted) {
			endSpan(&s.builds, slotOf(ctx, e.Key), e.Err)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.DispatchStart) {
			_, span := s.tracer.Start(ctx, "dedup.dispatch")
			span.SetAttributes(
				attribute.String("fedreq.slot", e.Key),
				attribute.Int("fedreq.groups", e.Groups),
			)
			s.dispatch.Store(slotOf(ctx, e.Key), span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.DispatchFinish) {
			var err error
			if e.Failed > 0 {
				err = errors.New("some groups failed")
			}
			endSpan(&s.dispatch, slotOf(ctx, e.Key), err, attribute.Int("fedreq.failed_groups", e.Failed))
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.SubgraphCallStart) {
			_, span := s.tracer.Start(ctx, "grpc.client", trace.WithSpanKind(trace.SpanKindClient))
			span.SetAttributes(
				semconv.RPCSystemGRPC,
				semconv.RPCServiceKey.String(e.Service),
				semconv.RPCMethodKey.String(e.Method),
				attribute.String("net.peer.name", e.Target),
			)
			s.callSpans.Store(e.Call, span)
		}),
		eventbus.Subscribe(func(_ context.Context, e events.SubgraphCallFinish) {
			endSpan(&s.callSpans, e.Call, e.Err, semconv.RPCGRPCStatusCodeKey.Int(int(e.Code)))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
