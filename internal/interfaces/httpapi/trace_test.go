package httpapi

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestShouldCreateHTTPAPISpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "handler span", in: "httpapi.Handler.RunSyncWeeklyStatsJob", want: true},
		{name: "bare prefix", in: "httpapi.Handler.", want: false},
		{name: "middleware span", in: "httpapi.RequireInternalJobToken", want: false},
		{name: "panic recovery", in: "httpapi.recoverPanic", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shouldCreateHTTPAPISpan(tt.in); got != tt.want {
				t.Fatalf("shouldCreateHTTPAPISpan(%q)=%v want=%v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStartSpan_WithoutParentKeepsContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	got, span := startSpan(ctx, "httpapi.Handler.ListSeriesStats")
	if got != ctx {
		t.Fatalf("expected context to pass through untouched")
	}
	if span.SpanContext().IsValid() || span.IsRecording() {
		t.Fatalf("expected a non-recording span without a parent")
	}
	span.End()
	markSpanError(ctx, errors.New("boom"), mapError(errors.New("boom")))
}

func TestStartSpan_HelperNameKeepsParentOpen(t *testing.T) {
	t.Parallel()

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	got, span := startSpan(ctx, "httpapi.RequireInternalJobToken")
	if got != ctx {
		t.Fatalf("helper spans must reuse the request context")
	}
	if span.SpanContext().SpanID() != sc.SpanID() {
		t.Fatalf("expected parent span id %s, got %s", sc.SpanID(), span.SpanContext().SpanID())
	}
	span.End()
}
