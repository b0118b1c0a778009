package jobqueue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/raceweek-stats/internal/metrics"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"github.com/riskibarqy/raceweek-stats/internal/platform/resilience"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPublishTimeout = 10 * time.Second
	maxLoggedBodyBytes    = 2048
	maxErrorBodyBytes     = 4096
)

type QStashPublisherConfig struct {
	BaseURL          string
	Token            string
	TargetBaseURL    string
	Retries          int
	InternalJobToken string
	Timeout          time.Duration
	CircuitBreaker   resilience.CircuitBreakerConfig
}

// PublishError is a non-2xx answer from the publish API. Transient errors
// count against the circuit breaker.
type PublishError struct {
	StatusCode int
	Body       string
	Transient  bool
}

func (e *PublishError) Error() string {
	if e.StatusCode == 0 {
		return "qstash publish transport failure: " + e.Body
	}
	return fmt.Sprintf("qstash publish status=%d body=%s", e.StatusCode, e.Body)
}

// QStashPublisher delivers delayed sync dispatches back to this service
// through the QStash publish API. QStash calls the target URL once the
// delay has elapsed, forwarding the internal job token header.
type QStashPublisher struct {
	client           *http.Client
	baseURL          string
	token            string
	targetBaseURL    string
	retries          int
	internalJobToken string
	logger           *logging.Logger
	breaker          *resilience.CircuitBreaker
}

func NewQStashPublisher(cfg QStashPublisherConfig, logger *logging.Logger) *QStashPublisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPublishTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}

	breaker := resilience.NewCircuitBreaker(cfg.CircuitBreaker)
	breaker.OnStateChange(func(_, to resilience.CircuitState) {
		metrics.CircuitBreakerState.WithLabelValues(metrics.BreakerQStash).Set(metrics.BreakerStateValue(string(to)))
	})

	return &QStashPublisher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:          strings.TrimSpace(cfg.BaseURL),
		token:            strings.TrimSpace(cfg.Token),
		targetBaseURL:    strings.TrimSpace(cfg.TargetBaseURL),
		retries:          cfg.Retries,
		internalJobToken: strings.TrimSpace(cfg.InternalJobToken),
		logger:           logger,
		breaker:          breaker,
	}
}

// publishRequest is one resolved call to the publish API.
type publishRequest struct {
	publishURL string
	targetURL  string
	jobPath    string
	body       []byte
	header     http.Header
}

// Enqueue schedules a POST of payload to path after delay. A non-empty
// deduplicationID lets QStash drop repeats of the same dispatch.
func (p *QStashPublisher) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	if err := p.breaker.Allow(); err != nil {
		counts := p.breaker.Counts()
		p.logger.WarnContext(ctx, "qstash publish rejected by circuit breaker",
			"state", string(counts.State),
			"opened_at", counts.OpenedAt,
			"rejected_total", counts.Rejected,
		)
		return fmt.Errorf("qstash is temporarily unavailable: %w", err)
	}

	req, err := p.newPublishRequest(path, payload, delay, deduplicationID)
	if err != nil {
		return err
	}

	summary := req.summary()
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("qstash.target_url", req.targetURL),
			attribute.String("qstash.job_path", req.jobPath),
			attribute.String("qstash.delay", req.header.Get("Upstash-Delay")),
			attribute.String("qstash.deduplication_id", req.header.Get("Upstash-Deduplication-Id")),
		)
	}
	p.logger.DebugContext(ctx, "qstash publish request", "request", summary)

	err = p.send(ctx, req)
	p.recordCircuitResult(err)
	if err != nil {
		return crerr.Wrapf(err, "publish job path=%s", req.jobPath)
	}

	p.logger.InfoContext(ctx, "qstash job published",
		"path", req.jobPath,
		"delay", req.header.Get("Upstash-Delay"),
		"deduplication_id", deduplicationID,
	)
	return nil
}

func (p *QStashPublisher) newPublishRequest(path string, payload any, delay time.Duration, deduplicationID string) (publishRequest, error) {
	jobPath := "/" + strings.Trim(strings.TrimSpace(path), "/")
	if jobPath == "/" {
		return publishRequest{}, crerr.New("job path is required")
	}

	baseURL, err := validateHTTPBaseURL(p.baseURL)
	if err != nil {
		return publishRequest{}, crerr.Wrap(err, "invalid QSTASH_BASE_URL")
	}
	targetBaseURL, err := validateHTTPBaseURL(p.targetBaseURL)
	if err != nil {
		return publishRequest{}, crerr.Wrap(err, "invalid QSTASH_TARGET_BASE_URL")
	}

	if payload == nil {
		payload = map[string]any{}
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return publishRequest{}, crerr.Wrap(err, "marshal job payload")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.token)
	header.Set("Content-Type", "application/json")
	header.Set("Upstash-Method", http.MethodPost)
	if p.retries > 0 {
		header.Set("Upstash-Retries", strconv.Itoa(p.retries))
	}
	if delay > 0 {
		header.Set("Upstash-Delay", formatDelay(delay))
	}
	if id := strings.TrimSpace(deduplicationID); id != "" {
		header.Set("Upstash-Deduplication-Id", id)
	}
	if p.internalJobToken != "" {
		header.Set("Upstash-Forward-X-Internal-Job-Token", p.internalJobToken)
	}

	targetURL := targetBaseURL + jobPath
	return publishRequest{
		publishURL: baseURL + "/v2/publish/" + targetURL,
		targetURL:  targetURL,
		jobPath:    jobPath,
		body:       body,
		header:     header,
	}, nil
}

func (p *QStashPublisher) send(ctx context.Context, req publishRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.publishURL, bytes.NewReader(req.body))
	if err != nil {
		return crerr.Wrap(err, "create qstash request")
	}
	httpReq.Header = req.header.Clone()

	started := time.Now()
	resp, err := p.client.Do(httpReq)
	metrics.UpstreamRequestDuration.WithLabelValues(metrics.OpEnqueueJob).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(metrics.OpEnqueueJob, "error").Inc()
		return &PublishError{Body: err.Error(), Transient: true}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.OpEnqueueJob, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &PublishError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
		Transient:  isRetryableStatus(resp.StatusCode),
	}
}

// summary renders the request for logs with credentials masked.
func (r publishRequest) summary() string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString("POST ")
	_, _ = buf.WriteString(r.publishURL)
	for _, name := range []string{"Upstash-Delay", "Upstash-Retries", "Upstash-Deduplication-Id"} {
		if value := r.header.Get(name); value != "" {
			_, _ = buf.WriteString(" ")
			_, _ = buf.WriteString(strings.ToLower(strings.TrimPrefix(name, "Upstash-")))
			_, _ = buf.WriteString("=")
			_, _ = buf.WriteString(value)
		}
	}
	if r.header.Get("Upstash-Forward-X-Internal-Job-Token") != "" {
		_, _ = buf.WriteString(" job_token=***")
	}
	_, _ = buf.WriteString(" body=")
	if len(r.body) > maxLoggedBodyBytes {
		_, _ = buf.Write(r.body[:maxLoggedBodyBytes])
		_, _ = buf.WriteString("...(truncated)")
	} else {
		_, _ = buf.Write(r.body)
	}
	return buf.String()
}

// formatDelay renders whole seconds, the unit Upstash-Delay accepts.
func formatDelay(delay time.Duration) string {
	seconds := int64(delay.Round(time.Second) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return strconv.FormatInt(seconds, 10) + "s"
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimRight(strings.TrimSpace(raw), "/")
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return candidate, nil
}

func (p *QStashPublisher) recordCircuitResult(err error) {
	var publishErr *PublishError
	if errors.As(err, &publishErr) && publishErr.Transient {
		p.breaker.RecordFailure()
		return
	}
	p.breaker.RecordSuccess()
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}
