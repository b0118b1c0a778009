package jobqueue

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"github.com/riskibarqy/raceweek-stats/internal/platform/resilience"
)

func TestQStashPublisher_EnqueueSetsUpstashHeaders(t *testing.T) {
	t.Parallel()

	var gotPath, gotDelay, gotDedup, gotForward, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDelay = r.Header.Get("Upstash-Delay")
		gotDedup = r.Header.Get("Upstash-Deduplication-Id")
		gotForward = r.Header.Get("Upstash-Forward-X-Internal-Job-Token")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	publisher := NewQStashPublisher(QStashPublisherConfig{
		BaseURL:          server.URL,
		Token:            "qstash-token",
		TargetBaseURL:    "https://stats.example.com/",
		InternalJobToken: "job-secret",
	}, logging.NewNop())

	err := publisher.Enqueue(context.Background(), "/v1/internal/jobs/sync-weekly-stats", map[string]any{"dispatch_id": "d-1"}, 90*time.Minute, "sync-weekly-stats-2025Q3-W2-20250918T140000Z")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if gotPath != "/v2/publish/https://stats.example.com/v1/internal/jobs/sync-weekly-stats" {
		t.Fatalf("unexpected publish path %q", gotPath)
	}
	if gotDelay != "5400s" {
		t.Fatalf("unexpected delay header %q", gotDelay)
	}
	if gotDedup != "sync-weekly-stats-2025Q3-W2-20250918T140000Z" {
		t.Fatalf("unexpected dedup header %q", gotDedup)
	}
	if gotForward != "job-secret" {
		t.Fatalf("expected forwarded job token, got %q", gotForward)
	}
	if !strings.Contains(gotBody, `"dispatch_id":"d-1"`) {
		t.Fatalf("unexpected body %s", gotBody)
	}
}

func TestQStashPublisher_OpensBreakerOnTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	publisher := NewQStashPublisher(QStashPublisherConfig{
		BaseURL:       server.URL,
		TargetBaseURL: "https://stats.example.com",
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	}, logging.NewNop())

	for i := 0; i < 2; i++ {
		if err := publisher.Enqueue(context.Background(), "/jobs", nil, 0, ""); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}

	err := publisher.Enqueue(context.Background(), "/jobs", nil, 0, "")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected breaker to short-circuit third call, got %d upstream calls", calls)
	}
}

func TestQStashPublisher_PermanentFailureKeepsBreakerClosed(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid destination"}`))
	}))
	defer server.Close()

	publisher := NewQStashPublisher(QStashPublisherConfig{
		BaseURL:       server.URL,
		TargetBaseURL: "https://stats.example.com",
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	}, logging.NewNop())

	for i := 0; i < 3; i++ {
		err := publisher.Enqueue(context.Background(), "/jobs", nil, 0, "")
		var publishErr *PublishError
		if !errors.As(err, &publishErr) {
			t.Fatalf("expected PublishError, got %v", err)
		}
		if publishErr.Transient || publishErr.StatusCode != http.StatusBadRequest {
			t.Fatalf("unexpected publish error %+v", publishErr)
		}
		if !strings.Contains(publishErr.Body, "invalid destination") {
			t.Fatalf("expected upstream body in error, got %q", publishErr.Body)
		}
	}
	if calls != 3 {
		t.Fatalf("expected every call to reach upstream, got %d", calls)
	}
}

func TestQStashPublisher_RejectsBadConfigBeforeCalling(t *testing.T) {
	t.Parallel()

	publisher := NewQStashPublisher(QStashPublisherConfig{
		BaseURL:       "https://qstash.example.com",
		TargetBaseURL: "stats.example.com",
	}, logging.NewNop())

	if err := publisher.Enqueue(context.Background(), "/jobs", nil, 0, ""); err == nil || !strings.Contains(err.Error(), "QSTASH_TARGET_BASE_URL") {
		t.Fatalf("expected target url error, got %v", err)
	}
	if err := publisher.Enqueue(context.Background(), " / ", nil, 0, ""); err == nil {
		t.Fatalf("expected empty job path to fail")
	}
}

func TestPublishRequestSummary_MasksCredentials(t *testing.T) {
	t.Parallel()

	publisher := NewQStashPublisher(QStashPublisherConfig{
		BaseURL:          "https://qstash.example.com",
		Token:            "qstash-secret",
		TargetBaseURL:    "https://stats.example.com",
		Retries:          3,
		InternalJobToken: "job-secret",
	}, logging.NewNop())

	req, err := publisher.newPublishRequest("v1/internal/jobs/sync-weekly-stats/", map[string]any{"force": true}, 2*time.Minute, "d-1")
	if err != nil {
		t.Fatalf("new publish request: %v", err)
	}
	if req.jobPath != "/v1/internal/jobs/sync-weekly-stats" {
		t.Fatalf("unexpected job path %q", req.jobPath)
	}

	summary := req.summary()
	if strings.Contains(summary, "qstash-secret") || strings.Contains(summary, "job-secret") {
		t.Fatalf("summary leaks credentials: %s", summary)
	}
	for _, want := range []string{"delay=120s", "retries=3", "deduplication-id=d-1", "job_token=***", `body={"force":true}`} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q: %s", want, summary)
		}
	}
}

func TestValidateHTTPBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := validateHTTPBaseURL("ftp://example.com"); err == nil {
		t.Fatalf("expected unsupported scheme to fail")
	}
	if _, err := validateHTTPBaseURL(""); err == nil {
		t.Fatalf("expected empty url to fail")
	}
	got, err := validateHTTPBaseURL("https://example.com/")
	if err != nil || got != "https://example.com" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestFormatDelay(t *testing.T) {
	t.Parallel()

	if got := formatDelay(-time.Second); got != "0s" {
		t.Fatalf("unexpected negative delay %q", got)
	}
	if got := formatDelay(1500 * time.Millisecond); got != "2s" {
		t.Fatalf("unexpected rounded delay %q", got)
	}
}
