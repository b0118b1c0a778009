package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/raceweek-stats/internal/domain/credential"
	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	"github.com/riskibarqy/raceweek-stats/internal/metrics"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
)

const defaultSeriesConcurrency = 8

// SeriesResultFetcher returns every split of a results search, or an error
// from the upstream taxonomy. Partial results are never returned.
type SeriesResultFetcher interface {
	FetchSeriesResults(ctx context.Context, accessToken string, params racestats.SearchParams) ([]racestats.RawSessionRecord, error)
}

type AccessTokenProvider interface {
	GetValidAccessToken(ctx context.Context) (credential.AccessToken, error)
}

type SyncOrchestratorConfig struct {
	Calendar             season.Calendar
	EventTypes           []int
	SeriesIDs            []int64
	SeriesConcurrency    int
	IncludeSpecialEvents bool
}

// SyncInput overrides configured defaults for one run. Nil window fields
// fall back to the current race week.
type SyncInput struct {
	Year       *int
	Quarter    *int
	RaceWeek   *int
	EventTypes []int
	SeriesIDs  []int64
	Force      bool
}

type SyncResult struct {
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	Mode         SyncMode      `json:"mode"`
	Window       season.Window `json:"window"`
	Skipped      bool          `json:"skipped"`
	SeriesSynced int           `json:"series_synced"`
	SeriesFailed []int64       `json:"series_failed,omitempty"`
	RowsUpserted int           `json:"rows_upserted"`

	cause error
}

// Cause returns the error behind a failed run, or nil.
func (r SyncResult) Cause() error {
	return r.cause
}

type SyncOrchestrator struct {
	tokens  AccessTokenProvider
	fetcher SeriesResultFetcher
	cache   *WeeklyStatsCache
	cfg     SyncOrchestratorConfig
	logger  *logging.Logger
	now     func() time.Time
}

func NewSyncOrchestrator(
	tokens AccessTokenProvider,
	fetcher SeriesResultFetcher,
	cache *WeeklyStatsCache,
	cfg SyncOrchestratorConfig,
	logger *logging.Logger,
) *SyncOrchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Calendar.Validate() != nil {
		cfg.Calendar = season.DefaultCalendar()
	}
	if cfg.SeriesConcurrency <= 0 {
		cfg.SeriesConcurrency = defaultSeriesConcurrency
	}

	return &SyncOrchestrator{
		tokens:  tokens,
		fetcher: fetcher,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one sync cycle. It never returns an error or panics; every
// failure is folded into the result.
func (o *SyncOrchestrator) Run(ctx context.Context, input SyncInput) (result SyncResult) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncOrchestrator.Run")
	defer span.End()

	started := time.Now()
	seriesIDs := input.SeriesIDs
	if len(seriesIDs) == 0 {
		seriesIDs = o.cfg.SeriesIDs
	}
	result.Mode = SyncModeCurrentWeek
	if len(seriesIDs) > 0 {
		result.Mode = SyncModeAllSeries
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "weekly stats sync panicked", "panic", fmt.Sprint(r))
			result = o.fail(result, fmt.Errorf("sync panicked: %v", r))
		}

		outcome := metrics.ResultSuccess
		switch {
		case !result.Success:
			outcome = metrics.ResultFailure
		case result.Skipped:
			outcome = metrics.ResultSkipped
		}
		metrics.SyncRunsTotal.WithLabelValues(string(result.Mode), outcome).Inc()
		metrics.SyncDuration.WithLabelValues(string(result.Mode), outcome).Observe(time.Since(started).Seconds())

		o.logger.InfoContext(ctx, "weekly stats sync finished",
			"mode", string(result.Mode),
			"window", result.Window.String(),
			"success", result.Success,
			"skipped", result.Skipped,
			"rows_upserted", result.RowsUpserted,
			"series_synced", result.SeriesSynced,
			"series_failed", len(result.SeriesFailed),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		recordSyncOutcome(span, result)
	}()

	window, err := o.resolveWindow(input)
	if err != nil {
		return o.fail(result, err)
	}
	result.Window = window

	if !input.Force {
		fresh, err := o.cache.IsFresh(ctx, window, result.Mode)
		if err != nil {
			return o.fail(result, err)
		}
		if fresh {
			result.Success = true
			result.Skipped = true
			return result
		}
	}

	token, err := o.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return o.fail(result, fmt.Errorf("acquire access token: %w", err))
	}

	eventTypes := input.EventTypes
	if len(eventTypes) == 0 {
		eventTypes = o.cfg.EventTypes
	}

	var records []racestats.RawSessionRecord
	if result.Mode == SyncModeAllSeries {
		var failed []int64
		records, result.SeriesSynced, failed, err = o.fetchAllSeries(ctx, token.AccessToken, window, seriesIDs, eventTypes)
		result.SeriesFailed = failed
		if err != nil {
			return o.fail(result, err)
		}
		if result.SeriesSynced == 0 && len(failed) > 0 {
			return o.fail(result, fmt.Errorf("%w: every series fetch failed for window=%s", ErrUpstream, window))
		}
	} else {
		records, err = o.fetchWindow(ctx, token.AccessToken, window, 0, eventTypes)
		if errors.Is(err, ErrEmptyManifest) {
			o.logger.InfoContext(ctx, "no results published for race week", "window", window.String())
			result.Success = true
			return result
		}
		if err != nil {
			return o.fail(result, fmt.Errorf("fetch results window=%s: %w", window, err))
		}
	}

	stats := AggregateForWeek(records, window, AggregateOptions{
		IncludeSpecialEvents: o.cfg.IncludeSpecialEvents,
		MaxRaceWeek:          o.cfg.Calendar.MaxRaceWeek,
	})
	if err := o.cache.Upsert(ctx, stats); err != nil {
		return o.fail(result, err)
	}

	metrics.RowsUpserted.Add(float64(len(stats)))
	result.RowsUpserted = len(stats)
	result.Success = true
	return result
}

func (o *SyncOrchestrator) fail(result SyncResult, err error) SyncResult {
	result.Success = false
	result.Skipped = false
	result.Error = err.Error()
	result.cause = err
	return result
}

func (o *SyncOrchestrator) resolveWindow(input SyncInput) (season.Window, error) {
	window := o.cfg.Calendar.CurrentWindow(o.now())
	if input.Year != nil {
		window.Year = *input.Year
	}
	if input.Quarter != nil {
		window.Quarter = *input.Quarter
	}
	if input.RaceWeek != nil {
		window.RaceWeek = *input.RaceWeek
	}

	if window.Year <= 0 {
		return season.Window{}, fmt.Errorf("%w: season_year must be > 0", ErrInvalidInput)
	}
	if window.Quarter < 1 || window.Quarter > 4 {
		return season.Window{}, fmt.Errorf("%w: season_quarter must be between 1 and 4", ErrInvalidInput)
	}
	if window.RaceWeek < 0 || window.RaceWeek > o.cfg.Calendar.MaxRaceWeek {
		return season.Window{}, fmt.Errorf("%w: race_week must be between 0 and %d", ErrInvalidInput, o.cfg.Calendar.MaxRaceWeek)
	}
	return window, nil
}

// searchWeeks lists the race weeks requested upstream for window. The final
// week of a quarter also pulls the special event week when it is enabled.
func (o *SyncOrchestrator) searchWeeks(window season.Window) []int {
	weeks := []int{window.RaceWeek}
	if o.cfg.IncludeSpecialEvents && window.RaceWeek == o.cfg.Calendar.MaxRaceWeek {
		weeks = append(weeks, window.RaceWeek+1)
	}
	return weeks
}

// fetchWindow runs one search per race week of window. A zero seriesID
// searches every series. ErrEmptyManifest is returned only when no week
// has results.
func (o *SyncOrchestrator) fetchWindow(
	ctx context.Context,
	accessToken string,
	window season.Window,
	seriesID int64,
	eventTypes []int,
) ([]racestats.RawSessionRecord, error) {
	weeks := o.searchWeeks(window)
	records := make([]racestats.RawSessionRecord, 0)
	empty := 0
	for _, week := range weeks {
		params := racestats.ForWindow(window)
		params.RaceWeekNum = &week
		params.SeriesID = seriesID
		params.EventTypes = eventTypes

		batch, err := o.fetcher.FetchSeriesResults(ctx, accessToken, params)
		if errors.Is(err, ErrEmptyManifest) {
			empty++
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	if empty == len(weeks) {
		return nil, ErrEmptyManifest
	}
	return records, nil
}

type seriesFetchOutcome struct {
	seriesID int64
	records  []racestats.RawSessionRecord
	err      error
}

// fetchAllSeries fans out one search per series. Series-scoped failures
// are skipped; token and rate-limit failures cancel the remaining work.
func (o *SyncOrchestrator) fetchAllSeries(
	ctx context.Context,
	accessToken string,
	window season.Window,
	seriesIDs []int64,
	eventTypes []int,
) ([]racestats.RawSessionRecord, int, []int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerCount := o.cfg.SeriesConcurrency
	if workerCount > len(seriesIDs) {
		workerCount = len(seriesIDs)
	}
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("create series worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make([]seriesFetchOutcome, len(seriesIDs))
	var abortOnce sync.Once
	var abortErr error

	var workers sync.WaitGroup
	for i, seriesID := range seriesIDs {
		i, seriesID := i, seriesID
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = seriesFetchOutcome{seriesID: seriesID, err: fmt.Errorf("fetch series=%d panicked: %v", seriesID, r)}
					abortOnce.Do(func() { abortErr = outcomes[i].err; cancel() })
				}
			}()

			records, err := o.fetchWindow(ctx, accessToken, window, seriesID, eventTypes)
			outcomes[i] = seriesFetchOutcome{seriesID: seriesID, records: records, err: err}
			if err != nil && !isTolerableSeriesError(err) {
				abortOnce.Do(func() {
					abortErr = fmt.Errorf("fetch series=%d: %w", seriesID, err)
					cancel()
				})
			}
		}); err != nil {
			workers.Done()
			abortOnce.Do(func() { abortErr = fmt.Errorf("submit series=%d to worker pool: %w", seriesID, err); cancel() })
			break
		}
	}
	workers.Wait()

	if abortErr != nil {
		metrics.SeriesFetchTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, 0, nil, abortErr
	}

	records := make([]racestats.RawSessionRecord, 0)
	synced := 0
	failed := make([]int64, 0)
	for _, outcome := range outcomes {
		switch {
		case outcome.err == nil:
			synced++
			records = append(records, outcome.records...)
			metrics.SeriesFetchTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		case errors.Is(outcome.err, ErrEmptyManifest):
			synced++
			metrics.SeriesFetchTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		default:
			failed = append(failed, outcome.seriesID)
			metrics.SeriesFetchTotal.WithLabelValues(metrics.ResultFailure).Inc()
			o.logger.WarnContext(ctx, "series fetch skipped",
				"series_id", outcome.seriesID,
				"window", window.String(),
				"error", outcome.err,
			)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })

	return records, synced, failed, nil
}

func isTolerableSeriesError(err error) bool {
	if IsCredentialError(err) || errors.Is(err, ErrRateLimited) {
		return false
	}
	return IsSeriesScopedError(err) || errors.Is(err, ErrEmptyManifest)
}
