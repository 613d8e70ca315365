package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LogFields returns trace_id and span_id fields for the span in ctx, or none.
// Spans the sampler dropped are marked so their ids are not searched for.
func LogFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	fields := []zap.Field{
		zap.Stringer("trace_id", sc.TraceID()),
		zap.Stringer("span_id", sc.SpanID()),
	}
	if !sc.IsSampled() {
		fields = append(fields, zap.Bool("trace_sampled", false))
	}
	return fields
}
