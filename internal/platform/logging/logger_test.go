package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return FromZap(zap.New(core)), logs
}

func TestLogger_WritesFieldsAndTraceIDs(t *testing.T) {
	logger, logs := newObservedLogger(LevelDebug)

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.With("component", "sync").InfoContext(ctx, "weekly stats sync finished",
		"window", "2025Q3-W4",
		"rows_upserted", 12,
		"error", errors.New("boom"),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "sync" {
		t.Fatalf("expected base field, got %v", fields)
	}
	if fields["window"] != "2025Q3-W4" || fields["rows_upserted"] != int64(12) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fields["trace_id"] != traceID.String() || fields["span_id"] != spanID.String() {
		t.Fatalf("expected trace ids in fields, got %v", fields)
	}
	if fields["error"] != "boom" {
		t.Fatalf("expected error field, got %v", fields["error"])
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	logger, logs := newObservedLogger(LevelWarn)

	logger.Info("dropped")
	logger.Warn("kept")

	if logs.Len() != 1 || logs.All()[0].Message != "kept" {
		t.Fatalf("expected only warn entry, got %v", logs.All())
	}
}

func TestLogger_MirrorReceivesBaseAndArgs(t *testing.T) {
	logger, _ := newObservedLogger(LevelDebug)

	var (
		mu   sync.Mutex
		msgs []string
		args []any
	)
	SetMirror(func(_ context.Context, _ Level, msg string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, msg)
		args = a
	})
	t.Cleanup(func() { SetMirror(nil) })

	logger.With("service", "raceweek-stats").InfoContext(context.Background(), "mirrored", "series_id", int64(5))
	logger.Info("not mirrored without context")

	mu.Lock()
	defer mu.Unlock()
	if len(msgs) != 1 || msgs[0] != "mirrored" {
		t.Fatalf("expected one mirrored record, got %v", msgs)
	}
	if len(args) != 4 || args[0] != "service" || args[2] != "series_id" {
		t.Fatalf("unexpected mirrored args %v", args)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for raw, want := range tests {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q)=%v want=%v", raw, got, want)
		}
	}
}

func TestNilLoggerFallsBackToDefault(t *testing.T) {
	var logger *Logger
	logger.Info("does not panic")
	if logger.Zap() == nil {
		t.Fatalf("expected nop zap logger")
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync nil logger: %v", err)
	}
}

func TestLogger_RedactsSensitiveKeysAndTypesValues(t *testing.T) {
	logger, logs := newObservedLogger(LevelDebug)

	logger.Info("access token refreshed",
		"account_id", "admin-1",
		"access_token", "secret-access",
		"Refresh_Token", "secret-refresh",
		"expires_in", 90*time.Second,
		"series_ids", []int64{7, 9},
		"skipped", true,
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["access_token"] != RedactedValue || fields["Refresh_Token"] != RedactedValue {
		t.Fatalf("expected redacted credentials, got %+v", fields)
	}
	if fields["account_id"] != "admin-1" || fields["skipped"] != true {
		t.Fatalf("unexpected plain fields %+v", fields)
	}
	if fields["expires_in"] != 90*time.Second {
		t.Fatalf("expected duration field, got %#v", fields["expires_in"])
	}
}

func TestNewJSONWriter_WritesToGivenWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelInfo, "raceweek-stats-sync")
	logger.Debug("hidden")
	logger.Info("weekly stats sync finished", "window", stringer("2025Q3-W4"))
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %s", out)
	}
	for _, want := range []string{`"service":"raceweek-stats-sync"`, `"window":"2025Q3-W4"`, `"level":"INFO"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

type stringer string

func (s stringer) String() string { return string(s) }
