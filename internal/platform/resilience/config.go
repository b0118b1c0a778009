package resilience

import (
	"fmt"
	"time"
)

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 15 * time.Second
	defaultHalfOpenMaxReq   = 2
)

// CircuitBreakerConfig describes the breaker in front of one upstream
// dependency. Zero values fall back to package defaults.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func NormalizeCircuitBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.HalfOpenMaxReq < 1 {
		cfg.HalfOpenMaxReq = defaultHalfOpenMaxReq
	}
	return cfg
}

// Validate rejects settings that would never let the breaker close again.
func (cfg CircuitBreakerConfig) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.HalfOpenMaxReq > cfg.FailureThreshold*10 {
		return fmt.Errorf("half-open probes (%d) far exceed failure threshold (%d)", cfg.HalfOpenMaxReq, cfg.FailureThreshold)
	}
	if cfg.OpenTimeout > time.Hour {
		return fmt.Errorf("open timeout %s is longer than one hour", cfg.OpenTimeout)
	}
	return nil
}

// LogFields renders the effective settings as logger key/value pairs.
func (cfg CircuitBreakerConfig) LogFields(dependency string) []any {
	if !cfg.Enabled {
		return []any{"dependency", dependency, "enabled", false}
	}
	cfg = NormalizeCircuitBreakerConfig(cfg)
	return []any{
		"dependency", dependency,
		"enabled", true,
		"failure_threshold", cfg.FailureThreshold,
		"open_timeout", cfg.OpenTimeout.String(),
		"half_open_max_req", cfg.HalfOpenMaxReq,
	}
}
