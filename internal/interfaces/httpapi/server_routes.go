package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	routeHealthz         = "/healthz"
	routeSeriesStats     = "/v1/series-stats"
	routeSyncWeeklyStats = "/v1/internal/jobs/sync-weekly-stats"
	routeBootstrap       = "/v1/internal/jobs/bootstrap"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metricsEnabled bool) {
	mux.HandleFunc("GET "+routeHealthz, handler.Healthz)
	if !metricsEnabled {
		return
	}

	mux.Handle("GET /metrics", promhttp.Handler())
}

func registerPublicRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("GET "+routeSeriesStats, Instrument(routeSeriesStats, http.HandlerFunc(handler.ListSeriesStats)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST "+routeSyncWeeklyStats, Instrument(routeSyncWeeklyStats,
		RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunSyncWeeklyStatsJob))))
	mux.Handle("POST "+routeBootstrap, Instrument(routeBootstrap,
		RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunBootstrapJob))))
}
