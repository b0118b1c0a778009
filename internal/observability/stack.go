package observability

import (
	"context"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/raceweek-stats/internal/config"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
)

// Options selects which parts of the stack a process wants. Tracing is
// always attempted; it stays off unless UPTRACE_ENABLED is set.
type Options struct {
	// Component tags profiles, e.g. "api".
	Component string
	// Profiling starts pyroscope and the pprof listener.
	Profiling bool
}

type stopFunc func(context.Context) error

type component struct {
	name string
	stop stopFunc
}

// Stack holds whatever observability backends were started for a process.
type Stack struct {
	logger     *logging.Logger
	components []component
}

// Start brings up tracing, then profiling when requested. On error, anything
// already started is stopped before returning.
func Start(cfg config.Config, logger *logging.Logger, opts Options) (*Stack, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Stack{logger: logger}

	stopTracing, err := startUptrace(cfg, logger)
	if err != nil {
		return nil, crerr.Wrap(err, "start uptrace")
	}
	s.add("uptrace", stopTracing)

	if opts.Profiling {
		stopProfiler, err := startPyroscope(cfg, opts.Component, logger)
		if err != nil {
			_ = s.Shutdown(context.Background())
			return nil, crerr.Wrap(err, "start pyroscope")
		}
		s.add("pyroscope", stopProfiler)

		stopPprof, err := startPprof(cfg, logger)
		if err != nil {
			_ = s.Shutdown(context.Background())
			return nil, crerr.Wrap(err, "start pprof")
		}
		s.add("pprof", stopPprof)
	}
	return s, nil
}

func (s *Stack) add(name string, stop stopFunc) {
	if stop == nil {
		return
	}
	s.components = append(s.components, component{name: name, stop: stop})
}

// Shutdown stops components in reverse start order and reports every failure.
func (s *Stack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var combined error
	for i := len(s.components) - 1; i >= 0; i-- {
		c := s.components[i]
		if err := c.stop(ctx); err != nil {
			s.logger.WarnContext(ctx, "observability shutdown failed", "component", c.name, "error", err)
			combined = crerr.CombineErrors(combined, crerr.Wrapf(err, "stop %s", c.name))
		}
	}
	s.components = nil
	return combined
}

// Running lists started components in start order.
func (s *Stack) Running() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.components))
	for _, c := range s.components {
		names = append(names, c.name)
	}
	return names
}
