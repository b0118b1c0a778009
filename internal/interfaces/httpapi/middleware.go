package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/metrics"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Headers QStash sets on every delivery of a scheduled dispatch.
const (
	qstashMessageIDHeader = "Upstash-Message-Id"
	qstashRetriedHeader   = "Upstash-Retried"
)

var untracedPaths = map[string]struct{}{
	"/healthz": {},
	"/health":  {},
	"/livez":   {},
	"/readyz":  {},
	"/metrics": {},
}

// responseRecorder captures the status and body size a handler produced.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	wrote  bool
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	if rec, ok := w.(*responseRecorder); ok {
		return rec
	}
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseRecorder) WriteHeader(code int) {
	if rw.wrote {
		return
	}
	rw.status = code
	rw.wrote = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	if !rw.wrote {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// RequestLogging logs one line per request. Server errors log at warn and
// QStash deliveries carry their message id and retry count.
func RequestLogging(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := newResponseRecorder(w)
		next.ServeHTTP(rec, r)

		if !shouldTraceRequest(r.URL.Path) {
			return
		}
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(started).Milliseconds(),
		}
		if messageID := r.Header.Get(qstashMessageIDHeader); messageID != "" {
			args = append(args, "qstash_message_id", messageID, "qstash_retried", r.Header.Get(qstashRetriedHeader))
		}

		if rec.status >= http.StatusInternalServerError {
			logger.WarnContext(r.Context(), "http request", args...)
			return
		}
		logger.InfoContext(r.Context(), "http request", args...)
	})
}

// Instrument records request count and latency under a fixed route label.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := newResponseRecorder(w)
		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, status).Observe(time.Since(started).Seconds())
	})
}

func RequestTracing(serviceName string, next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, serviceName+"-http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return shouldTraceRequest(r.URL.Path)
		}),
	)
}

func shouldTraceRequest(path string) bool {
	_, quiet := untracedPaths[strings.ToLower(strings.TrimSpace(path))]
	return !quiet
}
