package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/config"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
)

var pprofRoutes = map[string]http.HandlerFunc{
	"/debug/pprof/":        pprof.Index,
	"/debug/pprof/cmdline": pprof.Cmdline,
	"/debug/pprof/profile": pprof.Profile,
	"/debug/pprof/symbol":  pprof.Symbol,
	"/debug/pprof/trace":   pprof.Trace,
}

func pprofHandler() http.Handler {
	mux := http.NewServeMux()
	for path, h := range pprofRoutes {
		mux.HandleFunc(path, h)
	}
	return mux
}

// startPprof binds PPROF_ADDR before returning so a taken port fails startup
// instead of being logged from a goroutine.
func startPprof(cfg config.Config, logger *logging.Logger) (stopFunc, error) {
	if !cfg.PprofEnabled {
		logger.Info("pprof disabled", "reason", "PPROF_ENABLED=false")
		return nil, nil
	}

	ln, err := net.Listen("tcp", cfg.PprofAddr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           pprofHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pprof server failed", "addr", ln.Addr().String(), "error", err)
		}
	}()
	logger.Info("pprof server listening", "addr", ln.Addr().String())

	return func(ctx context.Context) error {
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		logger.Info("pprof server stopped")
		return nil
	}, nil
}
