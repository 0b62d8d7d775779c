// Package telemetry exports process traces as OpenTelemetry spans.
package telemetry

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	process "github.com/goliatone/go-process"
)

const instrumentationName = "github.com/goliatone/go-process/telemetry"

// Attribute keys set on process spans.
const (
	AttrTraceID      = attribute.Key("process.trace_id")
	AttrInvocationID = attribute.Key("process.invocation_id")
	AttrDepth        = attribute.Key("process.depth")
	AttrDescription  = attribute.Key("process.description")
	AttrOutcomeKind  = attribute.Key("process.outcome.kind")
	AttrOutcomeType  = attribute.Key("process.outcome.type")
	AttrOutcomeKeys  = attribute.Key("process.outcome.keys")
	AttrStep         = attribute.Key("process.step")
)

// SpanListener replays every finished trace as a tree of spans, one span
// per invocation with one event per recorded outcome. Spans carry the
// recorded timestamps, so they are emitted after the fact.
type SpanListener struct {
	tracer trace.Tracer
}

var _ process.Listener = (*SpanListener)(nil)

// NewSpanListener uses tp, or the global provider when tp is nil.
func NewSpanListener(tp trace.TracerProvider) *SpanListener {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &SpanListener{tracer: tp.Tracer(instrumentationName)}
}

func (l *SpanListener) OnFinish(ctx context.Context, t process.Trace) {
	l.export(ctx, t, nil)
}

func (l *SpanListener) OnInterruption(ctx context.Context, err error, t process.Trace) {
	l.export(ctx, t, err)
}

func (l *SpanListener) export(ctx context.Context, t process.Trace, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	root := t.Root()
	if _, ok := t.Record(root.ID); !ok {
		return
	}
	l.span(ctx, t, root, err)
}

func (l *SpanListener) span(parent context.Context, t process.Trace, r process.InvocationRecord, err error) {
	ctx, span := l.tracer.Start(parent, r.Name,
		trace.WithTimestamp(r.StartedAt),
		trace.WithAttributes(
			AttrTraceID.String(t.ID),
			AttrInvocationID.Int(r.ID),
			AttrDepth.Int(r.Depth),
		),
	)
	if r.Description != "" {
		span.SetAttributes(AttrDescription.String(r.Description))
	}

	var last process.Outcome
	for _, e := range t.EntriesFor(r.ID) {
		last = e.Outcome
		attrs := []attribute.KeyValue{
			AttrOutcomeKind.String(e.Outcome.Kind().String()),
			AttrOutcomeType.String(e.Outcome.Type()),
			AttrOutcomeKeys.StringSlice(e.Outcome.Value().Keys()),
		}
		if e.Step != "" {
			attrs = append(attrs, AttrStep.String(e.Step))
		}
		span.AddEvent(e.Outcome.String(), trace.WithTimestamp(e.At), trace.WithAttributes(attrs...))
	}

	for _, child := range t.Children(r.ID) {
		l.span(ctx, t, child, nil)
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case last.IsTerminal():
		span.SetAttributes(AttrOutcomeKind.String(last.Kind().String()), AttrOutcomeType.String(last.Type()))
		span.SetStatus(codes.Ok, "")
	}

	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	span.End(trace.WithTimestamp(end))
}

// NewStdoutProvider builds a tracer provider printing spans to w, for
// development and the demo command. Call Shutdown to flush.
func NewStdoutProvider(serviceName string, w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	), nil
}
