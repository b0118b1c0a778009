package usecase

import (
	"context"

	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var usecaseTracer = otel.Tracer("raceweek-stats/internal/usecase")

// startUsecaseSpan opens a child span only under a live parent, so
// scheduler ticks and CLI runs without tracing stay span-free.
func startUsecaseSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return usecaseTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func windowAttributes(window season.Window) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("season.year", window.Year),
		attribute.Int("season.quarter", window.Quarter),
		attribute.Int("season.race_week", window.RaceWeek),
	}
}

// recordSyncOutcome copies the run summary onto span.
func recordSyncOutcome(span trace.Span, result SyncResult) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(windowAttributes(result.Window)...)
	span.SetAttributes(
		attribute.String("sync.mode", string(result.Mode)),
		attribute.Bool("sync.skipped", result.Skipped),
		attribute.Int("sync.rows_upserted", result.RowsUpserted),
		attribute.Int("sync.series_failed", len(result.SeriesFailed)),
	)
	if result.Success {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetStatus(codes.Error, result.Error)
}
