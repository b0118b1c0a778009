package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	"github.com/riskibarqy/raceweek-stats/internal/platform/id"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
)

type SyncMode string

const (
	SyncModeCurrentWeek SyncMode = "current_week"
	SyncModeAllSeries   SyncMode = "all_series"
)

const (
	defaultFreshnessWindow            = 7 * 24 * time.Hour
	defaultCurrentWeekFreshnessWindow = time.Hour
)

type WeeklyStatsCacheConfig struct {
	FreshnessWindow            time.Duration
	CurrentWeekFreshnessWindow time.Duration
}

type WeeklyStatsCache struct {
	repo   racestats.Repository
	idGen  id.Generator
	cfg    WeeklyStatsCacheConfig
	logger *logging.Logger
	now    func() time.Time
}

func NewWeeklyStatsCache(repo racestats.Repository, idGen id.Generator, cfg WeeklyStatsCacheConfig, logger *logging.Logger) *WeeklyStatsCache {
	if idGen == nil {
		idGen = id.NewRandomGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = defaultFreshnessWindow
	}
	if cfg.CurrentWeekFreshnessWindow <= 0 {
		cfg.CurrentWeekFreshnessWindow = defaultCurrentWeekFreshnessWindow
	}

	return &WeeklyStatsCache{
		repo:   repo,
		idGen:  idGen,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (c *WeeklyStatsCache) freshnessWindow(mode SyncMode) time.Duration {
	if mode == SyncModeCurrentWeek {
		return c.cfg.CurrentWeekFreshnessWindow
	}
	return c.cfg.FreshnessWindow
}

// IsFresh reports whether the newest row of the window was written within
// the freshness window of mode. An empty window is never fresh.
func (c *WeeklyStatsCache) IsFresh(ctx context.Context, window season.Window, mode SyncMode) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WeeklyStatsCache.IsFresh", windowAttributes(window)...)
	defer span.End()

	latest, found, err := c.repo.LatestUpdatedAt(ctx, window)
	if err != nil {
		return false, fmt.Errorf("%w: read latest update for window=%s: %v", ErrDependencyUnavailable, window, err)
	}
	if !found {
		return false, nil
	}

	age := c.now().UTC().Sub(latest.UTC())
	fresh := age <= c.freshnessWindow(mode)
	c.logger.DebugContext(ctx, "weekly stats freshness checked",
		"window", window.String(),
		"mode", string(mode),
		"age", age.String(),
		"fresh", fresh,
	)
	return fresh, nil
}

// Upsert writes the batch in one transaction. Rows without an id get one
// here; existing rows keep theirs because the store matches on session_id.
func (c *WeeklyStatsCache) Upsert(ctx context.Context, stats []racestats.SeriesWeeklyStat) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.WeeklyStatsCache.Upsert")
	defer span.End()

	if len(stats) == 0 {
		return nil
	}

	batch := make([]racestats.SeriesWeeklyStat, len(stats))
	copy(batch, stats)
	for i := range batch {
		if strings.TrimSpace(batch[i].ID) != "" {
			continue
		}
		rowID, err := c.idGen.NewID()
		if err != nil {
			return fmt.Errorf("%w: generate row id: %v", ErrCacheWriteFailure, err)
		}
		batch[i].ID = rowID
	}

	if err := c.repo.UpsertBatch(ctx, batch); err != nil {
		return fmt.Errorf("%w: upsert %d weekly stat rows: %w", ErrCacheWriteFailure, len(batch), err)
	}
	return nil
}

func (c *WeeklyStatsCache) List(ctx context.Context, window season.Window) ([]racestats.SeriesWeeklyStat, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WeeklyStatsCache.List", windowAttributes(window)...)
	defer span.End()

	if window.Quarter < 1 || window.Quarter > 4 || window.RaceWeek < 0 || window.Year <= 0 {
		return nil, fmt.Errorf("%w: invalid season window %s", ErrInvalidInput, window)
	}

	items, err := c.repo.ListByWindow(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("list weekly stats window=%s: %w", window, err)
	}
	return items, nil
}
