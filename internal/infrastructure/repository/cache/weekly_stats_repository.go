package cache

import (
	"context"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	basecache "github.com/riskibarqy/raceweek-stats/internal/platform/cache"
)

// maxCachedWindows bounds the listing cache. Readers rarely look past the
// current and previous race weeks.
const maxCachedWindows = 64

// WeeklyStatsRepository caches window listings for the read endpoint.
// LatestUpdatedAt is never cached so the freshness gate always sees the store.
type WeeklyStatsRepository struct {
	next  racestats.Repository
	cache *basecache.Store[season.Window, []racestats.SeriesWeeklyStat]
}

func NewWeeklyStatsRepository(next racestats.Repository, ttl time.Duration) *WeeklyStatsRepository {
	return &WeeklyStatsRepository{
		next:  next,
		cache: basecache.NewStore[season.Window, []racestats.SeriesWeeklyStat](basecache.Options{
			TTL:        ttl,
			MaxEntries: maxCachedWindows,
		}),
	}
}

func (r *WeeklyStatsRepository) LatestUpdatedAt(ctx context.Context, window season.Window) (time.Time, bool, error) {
	return r.next.LatestUpdatedAt(ctx, window)
}

func (r *WeeklyStatsRepository) ListByWindow(ctx context.Context, window season.Window) ([]racestats.SeriesWeeklyStat, error) {
	items, err := r.cache.GetOrLoad(ctx, window, func(ctx context.Context) ([]racestats.SeriesWeeklyStat, error) {
		items, err := r.next.ListByWindow(ctx, window)
		if err != nil {
			return nil, err
		}
		return append([]racestats.SeriesWeeklyStat(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]racestats.SeriesWeeklyStat(nil), items...), nil
}

func (r *WeeklyStatsRepository) UpsertBatch(ctx context.Context, stats []racestats.SeriesWeeklyStat) error {
	if err := r.next.UpsertBatch(ctx, stats); err != nil {
		return err
	}

	seen := make(map[season.Window]struct{}, 1)
	for _, item := range stats {
		window := item.Window()
		if _, ok := seen[window]; ok {
			continue
		}
		seen[window] = struct{}{}
		r.cache.Delete(ctx, window)
	}
	return nil
}
