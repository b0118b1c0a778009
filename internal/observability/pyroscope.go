package observability

import (
	"context"

	"github.com/grafana/pyroscope-go"
	"github.com/riskibarqy/raceweek-stats/internal/config"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
)

// The sync path is network bound, so goroutine and mutex profiles matter
// more than heap growth.
var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockDuration,
}

func profileTags(cfg config.Config, component string) map[string]string {
	tags := map[string]string{
		"env":     cfg.AppEnv,
		"service": cfg.ServiceName,
		"version": cfg.ServiceVersion,
	}
	if component != "" {
		tags["component"] = component
	}
	return tags
}

func startPyroscope(cfg config.Config, component string, logger *logging.Logger) (stopFunc, error) {
	if !cfg.PyroscopeEnabled {
		logger.Info("pyroscope disabled", "reason", "PYROSCOPE_ENABLED=false")
		return nil, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.PyroscopeAppName,
		ServerAddress:   cfg.PyroscopeServerAddress,
		AuthToken:       cfg.PyroscopeAuthToken,
		UploadRate:      cfg.PyroscopeUploadRate,
		Tags:            profileTags(cfg, component),
		ProfileTypes:    profileTypes,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("pyroscope enabled",
		"server_address", cfg.PyroscopeServerAddress,
		"application", cfg.PyroscopeAppName,
		"component", component,
	)
	return func(context.Context) error { return profiler.Stop() }, nil
}
