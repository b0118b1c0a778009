package httpapi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const handlerSpanPrefix = "httpapi.Handler."

var apiTracer = otel.Tracer("raceweek-stats/internal/interfaces/httpapi")

// startSpan opens a child span for handler entry points. Middleware and
// helpers reuse the request span, and unsampled routes such as /healthz and
// /metrics have no parent to attach to.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() || !shouldCreateHTTPAPISpan(name) {
		return ctx, unendedSpan{Span: parent}
	}
	return apiTracer.Start(ctx, name)
}

func shouldCreateHTTPAPISpan(name string) bool {
	return strings.HasPrefix(name, handlerSpanPrefix) && len(name) > len(handlerSpanPrefix)
}

// markSpanError flags the innermost span of ctx with the mapped response.
func markSpanError(ctx context.Context, err error, mapped mappedError) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("error.reason", mapped.Reason),
		attribute.Int("http.response.status_code", mapped.HTTPStatus),
	)
	if mapped.HTTPStatus >= 500 {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// unendedSpan hands the parent span to callers that did not get their own.
// Attributes land on the parent, End is ignored so the parent outlives them.
type unendedSpan struct {
	trace.Span
}

func (unendedSpan) End(...trace.SpanEndOption) {}
