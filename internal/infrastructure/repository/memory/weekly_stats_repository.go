package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
)

type WeeklyStatsRepository struct {
	mu        sync.RWMutex
	bySession map[int64]racestats.SeriesWeeklyStat
	now       func() time.Time
}

func NewWeeklyStatsRepository(seed ...racestats.SeriesWeeklyStat) *WeeklyStatsRepository {
	repo := &WeeklyStatsRepository{
		bySession: make(map[int64]racestats.SeriesWeeklyStat, len(seed)),
		now:       time.Now,
	}
	for _, item := range seed {
		repo.bySession[item.SessionID] = item
	}
	return repo
}

// SetClock overrides the timestamp source for created_at and updated_at.
func (r *WeeklyStatsRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *WeeklyStatsRepository) LatestUpdatedAt(_ context.Context, window season.Window) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest time.Time
	found := false
	for _, item := range r.bySession {
		if item.Window() != window {
			continue
		}
		if !found || item.UpdatedAt.After(latest) {
			latest = item.UpdatedAt
			found = true
		}
	}
	return latest, found, nil
}

func (r *WeeklyStatsRepository) UpsertBatch(_ context.Context, stats []racestats.SeriesWeeklyStat) error {
	for _, item := range stats {
		if item.SessionID <= 0 {
			return fmt.Errorf("upsert weekly stats: session_id must be > 0 for series_id=%d", item.SeriesID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	for _, item := range stats {
		if existing, ok := r.bySession[item.SessionID]; ok {
			existing.TotalSplits = item.TotalSplits
			existing.TotalRaceSessions = item.TotalRaceSessions
			existing.TotalDrivers = item.TotalDrivers
			existing.AverageEntrants = item.AverageEntrants
			existing.AverageSplits = item.AverageSplits
			existing.AverageStrengthOfField = item.AverageStrengthOfField
			existing.OfficialSession = item.OfficialSession
			existing.UpdatedAt = now
			r.bySession[item.SessionID] = existing
			continue
		}

		item.CreatedAt = now
		item.UpdatedAt = now
		r.bySession[item.SessionID] = item
	}
	return nil
}

func (r *WeeklyStatsRepository) ListByWindow(_ context.Context, window season.Window) ([]racestats.SeriesWeeklyStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]racestats.SeriesWeeklyStat, 0)
	for _, item := range r.bySession {
		if item.Window() == window {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDrivers != out[j].TotalDrivers {
			return out[i].TotalDrivers > out[j].TotalDrivers
		}
		return out[i].SeriesID < out[j].SeriesID
	})
	return out, nil
}
