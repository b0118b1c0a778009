package httpapi

import (
	"net/http"

	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
)

type RouterConfig struct {
	ServiceName        string
	InternalJobToken   string
	MetricsEnabled     bool
	CORSAllowedOrigins []string
}

func NewRouter(handler *Handler, logger *logging.Logger, cfg RouterConfig) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "raceweek-stats"
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler, cfg.MetricsEnabled)
	registerPublicRoutes(mux, handler)
	registerInternalJobRoutes(mux, handler, cfg.InternalJobToken)

	return RequestTracing(cfg.ServiceName, RequestLogging(logger, CORS(cfg.CORSAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.recoverPanic")
		defer span.End()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec, "path", r.URL.Path)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
