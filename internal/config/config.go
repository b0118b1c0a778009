package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level
	DBURL              string
	DBApplicationName  string
	InternalJobToken   string
	MetricsEnabled     bool
	CORSAllowedOrigins []string

	IRacingBaseURL               string
	IRacingAuthBaseURL           string
	IRacingClientID              string
	IRacingClientSecret          string
	IRacingMaskClientSecret      bool
	IRacingAdminAccountID        string
	IRacingTimeout               time.Duration
	IRacingChunkConcurrency      int
	IRacingRateLimitRPS          float64
	IRacingRateLimitBurst        int
	IRacingCircuitEnabled        bool
	IRacingCircuitFailureCount   int
	IRacingCircuitOpenTimeout    time.Duration
	IRacingCircuitHalfOpenMaxReq int
	TokenSafetyMargin            time.Duration
	SeasonCalendar               season.Calendar
	SyncFreshnessWindow          time.Duration
	SyncCurrentWeekFreshness     time.Duration
	SyncSeriesIDs                []int64
	SyncEventTypes               []int
	SyncSeriesConcurrency        int
	SyncIncludeSpecialEvents     bool
	SyncScheduleEnabled          bool
	SyncScheduleInterval         time.Duration
	StatsCacheEnabled            bool
	StatsCacheTTL                time.Duration

	QStashBaseURL               string
	QStashToken                 string
	QStashTargetBaseURL         string
	QStashRetries               int
	QStashCircuitEnabled        bool
	QStashCircuitFailureCount   int
	QStashCircuitOpenTimeout    time.Duration
	QStashCircuitHalfOpenMaxReq int

	UptraceEnabled         bool
	UptraceDSN             string
	UptraceLogsEnabled     bool
	PprofEnabled           bool
	PprofAddr              string
	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string
	PyroscopeUploadRate    time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:                 appEnv,
		ServiceName:            getEnv("APP_SERVICE_NAME", "raceweek-stats"),
		ServiceVersion:         getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:               getEnv("APP_HTTP_ADDR", ":8080"),
		LogLevel:               logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
		DBURL:                  strings.TrimSpace(getEnv("DB_URL", "")),
		DBApplicationName:      strings.TrimSpace(getEnv("DB_APPLICATION_NAME", "")),
		InternalJobToken:       strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		IRacingBaseURL:         strings.TrimRight(strings.TrimSpace(getEnv("IRACING_BASE_URL", "https://members-ng.iracing.com")), "/"),
		IRacingAuthBaseURL:     strings.TrimRight(strings.TrimSpace(getEnv("IRACING_AUTH_BASE_URL", "https://oauth.iracing.com")), "/"),
		IRacingClientID:        strings.TrimSpace(getEnv("IRACING_CLIENT_ID", "")),
		IRacingClientSecret:    strings.TrimSpace(getEnv("IRACING_CLIENT_SECRET", "")),
		IRacingAdminAccountID:  strings.TrimSpace(getEnv("IRACING_ADMIN_ACCOUNT_ID", "")),
		QStashBaseURL:          strings.TrimSpace(getEnv("QSTASH_BASE_URL", "https://qstash.upstash.io")),
		QStashToken:            strings.TrimSpace(getEnv("QSTASH_TOKEN", "")),
		QStashTargetBaseURL:    strings.TrimSpace(getEnv("QSTASH_TARGET_BASE_URL", "")),
		PprofAddr:              strings.TrimSpace(getEnv("PPROF_ADDR", ":6060")),
		PyroscopeServerAddress: strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", "")),
		PyroscopeAuthToken:     strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
	}

	if cfg.ReadTimeout, err = getEnvAsPositiveDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	// Sync runs are bounded by upstream timeouts, so the write timeout must outlast a full cycle.
	if cfg.WriteTimeout, err = getEnvAsPositiveDuration("APP_WRITE_TIMEOUT", "120s"); err != nil {
		return Config{}, err
	}
	if cfg.DBApplicationName == "" {
		cfg.DBApplicationName = cfg.ServiceName
	}
	if cfg.MetricsEnabled, err = getEnvAsBool("METRICS_ENABLED", true); err != nil {
		return Config{}, err
	}
	cfg.CORSAllowedOrigins = parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "*"))

	if cfg.IRacingMaskClientSecret, err = getEnvAsBool("IRACING_MASK_CLIENT_SECRET", true); err != nil {
		return Config{}, err
	}
	if cfg.IRacingTimeout, err = getEnvAsPositiveDuration("IRACING_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.IRacingChunkConcurrency, err = getEnvAsInt("IRACING_CHUNK_CONCURRENCY", 4); err != nil {
		return Config{}, fmt.Errorf("parse IRACING_CHUNK_CONCURRENCY: %w", err)
	}
	if cfg.IRacingChunkConcurrency < 1 {
		return Config{}, fmt.Errorf("IRACING_CHUNK_CONCURRENCY must be >= 1")
	}
	cfg.IRacingRateLimitRPS, err = strconv.ParseFloat(getEnv("IRACING_RATE_LIMIT_RPS", "4"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse IRACING_RATE_LIMIT_RPS: %w", err)
	}
	if cfg.IRacingRateLimitRPS < 0 {
		return Config{}, fmt.Errorf("IRACING_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.IRacingRateLimitBurst, err = getEnvAsInt("IRACING_RATE_LIMIT_BURST", 4); err != nil {
		return Config{}, fmt.Errorf("parse IRACING_RATE_LIMIT_BURST: %w", err)
	}
	if cfg.IRacingRateLimitBurst < 1 {
		return Config{}, fmt.Errorf("IRACING_RATE_LIMIT_BURST must be >= 1")
	}
	if cfg.IRacingCircuitEnabled, err = getEnvAsBool("IRACING_CIRCUIT_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.IRacingCircuitFailureCount, err = getEnvAsInt("IRACING_CIRCUIT_FAILURE_COUNT", 5); err != nil {
		return Config{}, fmt.Errorf("parse IRACING_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.IRacingCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("IRACING_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	if cfg.IRacingCircuitOpenTimeout, err = getEnvAsPositiveDuration("IRACING_CIRCUIT_OPEN_TIMEOUT", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.IRacingCircuitHalfOpenMaxReq, err = getEnvAsInt("IRACING_CIRCUIT_HALF_OPEN_MAX_REQ", 1); err != nil {
		return Config{}, fmt.Errorf("parse IRACING_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.IRacingCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("IRACING_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	if cfg.IRacingClientID == "" && cfg.IRacingClientSecret != "" {
		return Config{}, fmt.Errorf("IRACING_CLIENT_ID is required when IRACING_CLIENT_SECRET is set")
	}

	if cfg.TokenSafetyMargin, err = getEnvAsPositiveDuration("TOKEN_SAFETY_MARGIN", "10m"); err != nil {
		return Config{}, err
	}

	calendar := season.DefaultCalendar()
	if raw := strings.TrimSpace(getEnv("SEASON_ANCHORS", "")); raw != "" {
		anchors, err := season.ParseAnchors(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse SEASON_ANCHORS: %w", err)
		}
		calendar.Anchors = anchors
	}
	if calendar.MaxRaceWeek, err = getEnvAsInt("SEASON_MAX_RACE_WEEK", calendar.MaxRaceWeek); err != nil {
		return Config{}, fmt.Errorf("parse SEASON_MAX_RACE_WEEK: %w", err)
	}
	if err := calendar.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid season calendar: %w", err)
	}
	cfg.SeasonCalendar = calendar

	if cfg.SyncFreshnessWindow, err = getEnvAsPositiveDuration("SYNC_FRESHNESS_WINDOW", "168h"); err != nil {
		return Config{}, err
	}
	if cfg.SyncCurrentWeekFreshness, err = getEnvAsPositiveDuration("SYNC_CURRENT_WEEK_FRESHNESS_WINDOW", "1h"); err != nil {
		return Config{}, err
	}
	if cfg.SyncSeriesIDs, err = parseInt64List(getEnv("SYNC_SERIES_IDS", "")); err != nil {
		return Config{}, fmt.Errorf("parse SYNC_SERIES_IDS: %w", err)
	}
	eventTypes, err := parseInt64List(getEnv("SYNC_EVENT_TYPES", "5"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_EVENT_TYPES: %w", err)
	}
	for _, item := range eventTypes {
		cfg.SyncEventTypes = append(cfg.SyncEventTypes, int(item))
	}
	if cfg.SyncSeriesConcurrency, err = getEnvAsInt("SYNC_SERIES_CONCURRENCY", 8); err != nil {
		return Config{}, fmt.Errorf("parse SYNC_SERIES_CONCURRENCY: %w", err)
	}
	if cfg.SyncSeriesConcurrency < 1 {
		return Config{}, fmt.Errorf("SYNC_SERIES_CONCURRENCY must be >= 1")
	}
	if cfg.SyncIncludeSpecialEvents, err = getEnvAsBool("SYNC_INCLUDE_SPECIAL_EVENTS", false); err != nil {
		return Config{}, err
	}
	if cfg.SyncScheduleEnabled, err = getEnvAsBool("SYNC_SCHEDULE_ENABLED", false); err != nil {
		return Config{}, err
	}
	if cfg.SyncScheduleInterval, err = getEnvAsPositiveDuration("SYNC_SCHEDULE_INTERVAL", "1h"); err != nil {
		return Config{}, err
	}
	if cfg.StatsCacheEnabled, err = getEnvAsBool("STATS_CACHE_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.StatsCacheTTL, err = getEnvAsPositiveDuration("STATS_CACHE_TTL", "60s"); err != nil {
		return Config{}, err
	}

	if cfg.QStashRetries, err = getEnvAsInt("QSTASH_RETRIES", 0); err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_RETRIES: %w", err)
	}
	if cfg.QStashRetries < 0 {
		return Config{}, fmt.Errorf("QSTASH_RETRIES must be >= 0")
	}
	if cfg.QStashCircuitEnabled, err = getEnvAsBool("QSTASH_CIRCUIT_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.QStashCircuitFailureCount, err = getEnvAsInt("QSTASH_CIRCUIT_FAILURE_COUNT", 5); err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.QStashCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("QSTASH_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	if cfg.QStashCircuitOpenTimeout, err = getEnvAsPositiveDuration("QSTASH_CIRCUIT_OPEN_TIMEOUT", "15s"); err != nil {
		return Config{}, err
	}
	if cfg.QStashCircuitHalfOpenMaxReq, err = getEnvAsInt("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ", 2); err != nil {
		return Config{}, fmt.Errorf("parse QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.QStashCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	if cfg.SyncScheduleEnabled {
		if cfg.QStashToken == "" {
			return Config{}, fmt.Errorf("QSTASH_TOKEN is required when SYNC_SCHEDULE_ENABLED=true")
		}
		if cfg.QStashTargetBaseURL == "" {
			return Config{}, fmt.Errorf("QSTASH_TARGET_BASE_URL is required when SYNC_SCHEDULE_ENABLED=true")
		}
		if cfg.InternalJobToken == "" {
			return Config{}, fmt.Errorf("INTERNAL_JOB_TOKEN is required when SYNC_SCHEDULE_ENABLED=true")
		}
	}

	if cfg.UptraceEnabled, err = getEnvAsBool("UPTRACE_ENABLED", false); err != nil {
		return Config{}, err
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if cfg.UptraceLogsEnabled, err = getEnvAsBool("UPTRACE_LOGS_ENABLED", true); err != nil {
		return Config{}, err
	}

	if cfg.PprofEnabled, err = getEnvAsBool("PPROF_ENABLED", false); err != nil {
		return Config{}, err
	}
	if cfg.PprofEnabled && cfg.PprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	if cfg.PyroscopeEnabled, err = getEnvAsBool("PYROSCOPE_ENABLED", false); err != nil {
		return Config{}, err
	}
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if cfg.PyroscopeUploadRate, err = getEnvAsPositiveDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return Config{}, err
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func getEnvAsPositiveDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(strings.TrimSpace(getEnv(key, fallback)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInt64List(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}

		value, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", item, err)
		}
		if value <= 0 {
			return nil, fmt.Errorf("id must be > 0, got %d", value)
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out, nil
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
