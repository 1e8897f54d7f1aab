package client

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this instrumentation library to OpenTelemetry.
const tracerName = "github.com/fluxbase/flux-go"

// startSpan opens a span for one client operation. With no tracer provider
// installed the global tracer is a no-op, so this costs nothing unless the
// application opted in.
func startSpan(ctx context.Context, op, udfPath string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "flux."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("flux.operation", op),
			attribute.String("flux.udf_path", udfPath),
		),
	)
}

// endSpan closes the span, recording err as its status when set.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
