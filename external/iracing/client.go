package iracing

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/metrics"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"github.com/riskibarqy/raceweek-stats/internal/platform/resilience"
	"github.com/riskibarqy/raceweek-stats/internal/usecase"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL          = "https://members-ng.iracing.com"
	defaultTimeout          = 10 * time.Second
	defaultChunkConcurrency = 4
	searchSeriesPath        = "/data/results/search_series"
	maxManifestBytes        = 2 << 20
	maxChunkBytes           = 32 << 20
	maxBodyPreview          = 240
)

var errIRacingTransient = crerr.New("iracing transient failure")

type ClientConfig struct {
	HTTPClient       *http.Client
	ChunkClient      *fasthttp.Client
	BaseURL          string
	Timeout          time.Duration
	ChunkConcurrency int
	RateLimitRPS     float64
	RateLimitBurst   int
	Logger           *logging.Logger
	CircuitBreaker   resilience.CircuitBreakerConfig
}

// Client talks to the results data API. Search and manifest calls go
// through net/http with the bearer token; chunk files are public and are
// pulled with fasthttp.
type Client struct {
	httpClient       *http.Client
	chunkClient      *fasthttp.Client
	baseURL          string
	timeout          time.Duration
	chunkConcurrency int
	limiter          *rate.Limiter
	logger           *logging.Logger
	breaker          *resilience.CircuitBreaker
	validate         *validator.Validate
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	chunkClient := cfg.ChunkClient
	if chunkClient == nil {
		chunkClient = &fasthttp.Client{
			Name:                     "raceweek-stats",
			ReadTimeout:              timeout,
			WriteTimeout:             timeout,
			MaxResponseBodySize:      maxChunkBytes,
			NoDefaultUserAgentHeader: true,
		}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	concurrency := cfg.ChunkConcurrency
	if concurrency <= 0 {
		concurrency = defaultChunkConcurrency
	}

	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	breaker := resilience.NewCircuitBreaker(cfg.CircuitBreaker)
	breaker.OnStateChange(func(_, to resilience.CircuitState) {
		metrics.CircuitBreakerState.WithLabelValues(metrics.BreakerIRacing).Set(metrics.BreakerStateValue(string(to)))
	})

	return &Client{
		httpClient:       httpClient,
		chunkClient:      chunkClient,
		baseURL:          baseURL,
		timeout:          timeout,
		chunkConcurrency: concurrency,
		limiter:          rate.NewLimiter(limit, burst),
		logger:           logger,
		breaker:          breaker,
		validate:         newRecordValidator(),
	}
}

// FetchSeriesResults runs one results search and returns every split listed
// by its chunk manifest. Any missing chunk or invalid row fails the call.
func (c *Client) FetchSeriesResults(ctx context.Context, accessToken string, params racestats.SearchParams) ([]racestats.RawSessionRecord, error) {
	query := encodeSearchParams(params)
	manifest, err := c.fetchManifest(ctx, accessToken, query)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(manifest.ChunkFileNames))
	for _, name := range manifest.ChunkFileNames {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, crerr.Wrapf(usecase.ErrEmptyManifest, "search_series %s", query)
	}
	metrics.ChunkFilesPerFetch.Observe(float64(len(names)))

	bodies, err := c.downloadChunks(ctx, manifest.BaseDownloadURL, names)
	if err != nil {
		c.logger.WarnContext(ctx, "chunk download incomplete", "query", query, "error", err)
		return nil, err
	}

	records, err := c.decodeChunks(names, bodies)
	if err != nil {
		c.logger.WarnContext(ctx, "chunk payload rejected",
			"query", query,
			"error", err,
			"payload", previewChunks(names, bodies, 2048),
		)
		return nil, err
	}

	c.logger.DebugContext(ctx, "series results fetched",
		"query", query,
		"chunks", len(names),
		"records", len(records),
	)
	return records, nil
}

func (c *Client) fetchManifest(ctx context.Context, accessToken, query string) (*chunkInfo, error) {
	fullURL := c.baseURL + searchSeriesPath
	if query != "" {
		fullURL += "?" + query
	}

	var raw []byte
	err := c.breaker.Execute(func() error {
		var callErr error
		raw, callErr = c.get(ctx, metrics.OpSearchSeries, fullURL, accessToken)
		return callErr
	}, isCircuitFailure)
	if err != nil {
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			counts := c.breaker.Counts()
			c.logger.WarnContext(ctx, "iracing circuit breaker rejected request",
				"state", string(counts.State),
				"rejected_total", counts.Rejected,
			)
			return nil, crerr.Wrap(usecase.ErrUpstream, "results API is temporarily unavailable")
		}
		return nil, err
	}

	var envelope searchEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, crerr.WithDetail(crerr.Wrapf(usecase.ErrUpstream, "decode search_series manifest: %v", err), abbreviateBody(raw))
	}
	if info := envelope.chunkInfo(); info != nil {
		return info, nil
	}

	link := strings.TrimSpace(envelope.Link)
	if link == "" {
		return nil, crerr.WithDetail(crerr.Wrap(usecase.ErrUpstream, "search_series response has no chunk_info"), abbreviateBody(raw))
	}

	// The link target is a pre-signed object and must not receive the bearer token.
	raw, err = c.get(ctx, metrics.OpManifestLink, link, "")
	if err != nil {
		return nil, err
	}
	envelope = searchEnvelope{}
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, crerr.WithDetail(crerr.Wrapf(usecase.ErrUpstream, "decode linked manifest: %v", err), abbreviateBody(raw))
	}
	if info := envelope.chunkInfo(); info != nil {
		return info, nil
	}
	return nil, crerr.WithDetail(crerr.Wrap(usecase.ErrUpstream, "linked manifest has no chunk_info"), abbreviateBody(raw))
}

func (c *Client) get(ctx context.Context, operation, fullURL, accessToken string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, crerr.Wrapf(usecase.ErrUpstream, "%s rate limiter: %v", operation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, crerr.Wrapf(err, "build %s request", operation)
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%w: %w: %s send request: %v", usecase.ErrUpstream, errIRacingTransient, operation, redactURLError(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	metrics.UpstreamRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	// One byte past the limit tells an oversized body apart from one that fits exactly.
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("%w: %w: %s read body: %v", usecase.ErrUpstream, errIRacingTransient, operation, readErr)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(raw) > maxManifestBytes {
			return nil, crerr.Wrapf(usecase.ErrUpstream, "%s response exceeds %d bytes", operation, maxManifestBytes)
		}
		return raw, nil
	}
	return nil, classifyStatus(operation, resp.StatusCode, resp.Header.Get("WWW-Authenticate"), raw)
}

// classifyStatus maps a non-2xx answer onto the upstream error taxonomy.
func classifyStatus(operation string, status int, authenticate string, body []byte) error {
	text := abbreviateBody(body)
	switch {
	case status == http.StatusUnauthorized:
		if strings.Contains(strings.ToLower(authenticate+" "+string(body)), "expired") {
			return crerr.WithDetail(crerr.Wrapf(usecase.ErrTokenExpired, "%s status=%d", operation, status), text)
		}
		return crerr.WithDetail(crerr.Wrapf(usecase.ErrUnauthorized, "%s status=%d", operation, status), text)
	case status == http.StatusTooManyRequests:
		return crerr.WithDetail(crerr.Wrapf(usecase.ErrRateLimited, "%s status=%d", operation, status), text)
	case isRetryableStatus(status):
		return fmt.Errorf("%w: %w: %s status=%d body=%s", usecase.ErrUpstream, errIRacingTransient, operation, status, text)
	default:
		return fmt.Errorf("%w: %s status=%d body=%s", usecase.ErrUpstream, operation, status, text)
	}
}

// encodeSearchParams emits only whitelisted, non-zero keys, sorted by name.
func encodeSearchParams(params racestats.SearchParams) string {
	values := url.Values{}
	if params.SeasonYear > 0 {
		values.Set("season_year", strconv.Itoa(params.SeasonYear))
	}
	if params.SeasonQuarter > 0 {
		values.Set("season_quarter", strconv.Itoa(params.SeasonQuarter))
	}
	if params.RaceWeekNum != nil && *params.RaceWeekNum >= 0 {
		values.Set("race_week_num", strconv.Itoa(*params.RaceWeekNum))
	}
	if params.SeriesID > 0 {
		values.Set("series_id", strconv.FormatInt(params.SeriesID, 10))
	}
	if len(params.EventTypes) > 0 {
		types := make([]int, 0, len(params.EventTypes))
		seen := make(map[int]struct{}, len(params.EventTypes))
		for _, item := range params.EventTypes {
			if _, ok := seen[item]; ok || item <= 0 {
				continue
			}
			seen[item] = struct{}{}
			types = append(types, item)
		}
		sort.Ints(types)
		parts := make([]string, 0, len(types))
		for _, item := range types {
			parts = append(parts, strconv.Itoa(item))
		}
		if len(parts) > 0 {
			values.Set("event_types", strings.Join(parts, ","))
		}
	}
	if params.OfficialOnly {
		values.Set("official_only", "true")
	}
	if !params.StartRangeBegin.IsZero() {
		values.Set("start_range_begin", params.StartRangeBegin.UTC().Format(time.RFC3339))
	}
	if !params.StartRangeEnd.IsZero() {
		values.Set("start_range_end", params.StartRangeEnd.UTC().Format(time.RFC3339))
	}
	if params.CustID > 0 {
		values.Set("cust_id", strconv.FormatInt(params.CustID, 10))
	}
	return values.Encode()
}

func isCircuitFailure(err error) bool {
	return err != nil && stderrors.Is(err, errIRacingTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

// redactURLError drops the query string from url errors so signed links
// do not end up in logs.
func redactURLError(err error) string {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		if parsed, parseErr := url.Parse(urlErr.URL); parseErr == nil {
			parsed.RawQuery = ""
			return fmt.Sprintf("%s %q: %v", urlErr.Op, parsed.String(), urlErr.Err)
		}
	}
	return err.Error()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= maxBodyPreview {
		return text
	}
	cut := maxBodyPreview
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
