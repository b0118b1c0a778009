package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/raceweek-stats/external/iracing"
	"github.com/riskibarqy/raceweek-stats/external/jobqueue"
	"github.com/riskibarqy/raceweek-stats/internal/config"
	"github.com/riskibarqy/raceweek-stats/internal/domain/credential"
	"github.com/riskibarqy/raceweek-stats/internal/domain/jobscheduler"
	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	cacherepo "github.com/riskibarqy/raceweek-stats/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/raceweek-stats/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/raceweek-stats/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/raceweek-stats/internal/interfaces/httpapi"
	idgen "github.com/riskibarqy/raceweek-stats/internal/platform/id"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"github.com/riskibarqy/raceweek-stats/internal/platform/resilience"
	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

// Container holds the wired sync pipeline shared by the API and the one-shot runner.
type Container struct {
	Orchestrator *usecase.SyncOrchestrator
	Scheduler    *usecase.SyncScheduler
	StatsCache   *usecase.WeeklyStatsCache

	db *sqlx.DB
}

// Close releases the database handle, if any.
func (c *Container) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Build wires repositories, upstream clients and use cases from cfg. Without
// DB_URL everything runs on in-memory repositories.
func Build(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Container, error) {
	if logger == nil {
		logger = logging.Default()
	}

	iracingBreaker, qstashBreaker, err := circuitBreakerConfigs(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("circuit breaker configured", iracingBreaker.LogFields("iracing")...)
	if cfg.SyncScheduleEnabled {
		logger.Info("circuit breaker configured", qstashBreaker.LogFields("qstash")...)
	}

	var (
		db           *sqlx.DB
		credRepo     credential.Repository
		statsRepo    racestats.Repository
		dispatchRepo jobscheduler.Repository
	)
	if cfg.DBURL != "" {
		target := parseDBTarget(cfg.DBURL, cfg.DBApplicationName)
		db, err = openDB(ctx, target)
		if err != nil {
			return nil, err
		}
		credRepo = postgres.NewCredentialRepository(db)
		statsRepo = postgres.NewWeeklyStatsRepository(db)
		dispatchRepo = postgres.NewJobDispatchRepository(db)
		logger.Info("using postgres repositories", "db_name", target.Name, "db_host", target.Host)
	} else {
		credRepo = memory.NewCredentialRepository()
		statsRepo = memory.NewWeeklyStatsRepository()
		dispatchRepo = memory.NewJobDispatchRepository()
		logger.Warn("DB_URL empty, using in-memory repositories")
	}

	if cfg.StatsCacheEnabled {
		statsRepo = cacherepo.NewWeeklyStatsRepository(statsRepo, cfg.StatsCacheTTL)
	}

	authenticator := iracing.NewAuthenticator(iracing.AuthConfig{
		AuthBaseURL:      cfg.IRacingAuthBaseURL,
		ClientID:         cfg.IRacingClientID,
		ClientSecret:     cfg.IRacingClientSecret,
		MaskClientSecret: cfg.IRacingMaskClientSecret,
		Timeout:          cfg.IRacingTimeout,
		Logger:           logger,
	})
	resultsClient := iracing.NewClient(iracing.ClientConfig{
		BaseURL:          cfg.IRacingBaseURL,
		Timeout:          cfg.IRacingTimeout,
		ChunkConcurrency: cfg.IRacingChunkConcurrency,
		RateLimitRPS:     cfg.IRacingRateLimitRPS,
		RateLimitBurst:   cfg.IRacingRateLimitBurst,
		Logger:           logger,
		CircuitBreaker:   iracingBreaker,
	})

	tokenManager := usecase.NewAccessTokenManager(credRepo, authenticator, usecase.AccessTokenManagerConfig{
		AccountID:    cfg.IRacingAdminAccountID,
		SafetyMargin: cfg.TokenSafetyMargin,
	}, logger)

	statsCache := usecase.NewWeeklyStatsCache(statsRepo, idgen.NewPrefixedGenerator("sws"), usecase.WeeklyStatsCacheConfig{
		FreshnessWindow:            cfg.SyncFreshnessWindow,
		CurrentWeekFreshnessWindow: cfg.SyncCurrentWeekFreshness,
	}, logger)

	orchestrator := usecase.NewSyncOrchestrator(tokenManager, resultsClient, statsCache, usecase.SyncOrchestratorConfig{
		Calendar:             cfg.SeasonCalendar,
		EventTypes:           cfg.SyncEventTypes,
		SeriesIDs:            cfg.SyncSeriesIDs,
		SeriesConcurrency:    cfg.SyncSeriesConcurrency,
		IncludeSpecialEvents: cfg.SyncIncludeSpecialEvents,
	}, logger)

	var queue usecase.JobQueue = usecase.NewNoopJobQueue()
	if cfg.SyncScheduleEnabled {
		queue = jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
			CircuitBreaker:   qstashBreaker,
		}, logger)
	}
	scheduler := usecase.NewSyncScheduler(queue, dispatchRepo, usecase.SyncSchedulerConfig{
		Enabled:  cfg.SyncScheduleEnabled,
		Interval: cfg.SyncScheduleInterval,
		Calendar: cfg.SeasonCalendar,
	}, logger)

	return &Container{
		Orchestrator: orchestrator,
		Scheduler:    scheduler,
		StatsCache:   statsCache,
		db:           db,
	}, nil
}

// NewHTTPServer builds the API server around c.
func NewHTTPServer(cfg config.Config, c *Container, logger *logging.Logger) (*http.Server, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	handler := httpapi.NewHandler(c.Orchestrator, c.Scheduler, c.StatsCache, cfg.SeasonCalendar, logger)
	router := httpapi.NewRouter(handler, logger, httpapi.RouterConfig{
		ServiceName:        cfg.ServiceName,
		InternalJobToken:   cfg.InternalJobToken,
		MetricsEnabled:     cfg.MetricsEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}, nil
}

func circuitBreakerConfigs(cfg config.Config) (resilience.CircuitBreakerConfig, resilience.CircuitBreakerConfig, error) {
	iracingBreaker := resilience.CircuitBreakerConfig{
		Enabled:          cfg.IRacingCircuitEnabled,
		FailureThreshold: cfg.IRacingCircuitFailureCount,
		OpenTimeout:      cfg.IRacingCircuitOpenTimeout,
		HalfOpenMaxReq:   cfg.IRacingCircuitHalfOpenMaxReq,
	}
	if err := iracingBreaker.Validate(); err != nil {
		return resilience.CircuitBreakerConfig{}, resilience.CircuitBreakerConfig{}, fmt.Errorf("iracing circuit breaker: %w", err)
	}
	qstashBreaker := resilience.CircuitBreakerConfig{
		Enabled:          cfg.QStashCircuitEnabled,
		FailureThreshold: cfg.QStashCircuitFailureCount,
		OpenTimeout:      cfg.QStashCircuitOpenTimeout,
		HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
	}
	if err := qstashBreaker.Validate(); err != nil {
		return resilience.CircuitBreakerConfig{}, resilience.CircuitBreakerConfig{}, fmt.Errorf("qstash circuit breaker: %w", err)
	}
	return iracingBreaker, qstashBreaker, nil
}
