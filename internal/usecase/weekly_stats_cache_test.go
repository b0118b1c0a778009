package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	"github.com/riskibarqy/raceweek-stats/internal/infrastructure/repository/memory"
	racestatsmock "github.com/riskibarqy/raceweek-stats/internal/mocks/domain/racestats"
	"github.com/stretchr/testify/mock"
)

var testWindow = season.Window{Year: 2025, Quarter: 3, RaceWeek: 2}

func statForWindow(sessionID, seriesID int64, updatedAt time.Time) racestats.SeriesWeeklyStat {
	return racestats.SeriesWeeklyStat{
		ID:            "row-" + strconv.FormatInt(sessionID, 10),
		SessionID:     sessionID,
		SeriesID:      seriesID,
		SeasonYear:    testWindow.Year,
		SeasonQuarter: testWindow.Quarter,
		RaceWeek:      testWindow.RaceWeek,
		TotalSplits:   1,
		TotalDrivers:  20,
		CreatedAt:     updatedAt,
		UpdatedAt:     updatedAt,
	}
}

func newTestStatsCache(repo racestats.Repository, now time.Time) *WeeklyStatsCache {
	c := NewWeeklyStatsCache(repo, nil, WeeklyStatsCacheConfig{FreshnessWindow: 7 * 24 * time.Hour}, nil)
	c.now = func() time.Time { return now }
	return c
}

func TestWeeklyStatsCache_IsFresh(t *testing.T) {
	t.Parallel()

	now := fixedNow()
	cases := []struct {
		name string
		age  time.Duration
		mode SyncMode
		want bool
	}{
		{name: "six days all series", age: 6 * 24 * time.Hour, mode: SyncModeAllSeries, want: true},
		{name: "exactly seven days", age: 7 * 24 * time.Hour, mode: SyncModeAllSeries, want: true},
		{name: "eight days all series", age: 8 * 24 * time.Hour, mode: SyncModeAllSeries, want: false},
		{name: "thirty minutes current week", age: 30 * time.Minute, mode: SyncModeCurrentWeek, want: true},
		{name: "two hours current week", age: 2 * time.Hour, mode: SyncModeCurrentWeek, want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := memory.NewWeeklyStatsRepository(statForWindow(1, 5, now.Add(-tc.age)))
			fresh, err := newTestStatsCache(repo, now).IsFresh(context.Background(), testWindow, tc.mode)
			if err != nil {
				t.Fatalf("is fresh: %v", err)
			}
			if fresh != tc.want {
				t.Fatalf("expected fresh=%v, got %v", tc.want, fresh)
			}
		})
	}
}

func TestWeeklyStatsCache_EmptyWindowIsStale(t *testing.T) {
	t.Parallel()

	repo := memory.NewWeeklyStatsRepository(statForWindow(1, 5, fixedNow()))
	other := season.Window{Year: 2025, Quarter: 3, RaceWeek: 3}
	fresh, err := newTestStatsCache(repo, fixedNow()).IsFresh(context.Background(), other, SyncModeAllSeries)
	if err != nil {
		t.Fatalf("is fresh: %v", err)
	}
	if fresh {
		t.Fatalf("expected window without rows to be stale")
	}
}

func TestWeeklyStatsCache_UpsertPreservesCreatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	created := fixedNow().Add(-48 * time.Hour)
	repo := memory.NewWeeklyStatsRepository()
	repo.SetClock(func() time.Time { return created })

	cache := newTestStatsCache(repo, fixedNow())
	batch := Aggregate([]racestats.RawSessionRecord{sampleRecord(5, 1, 10, 20, 1500)})
	if err := cache.Upsert(ctx, batch); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	first, _ := repo.ListByWindow(ctx, testWindow)
	if len(first) != 1 || first[0].ID == "" {
		t.Fatalf("expected one row with generated id, got %+v", first)
	}

	repo.SetClock(fixedNow)
	batch = Aggregate([]racestats.RawSessionRecord{
		sampleRecord(5, 1, 10, 20, 1500),
		sampleRecord(5, 2, 11, 24, 1500),
	})
	if err := cache.Upsert(ctx, batch); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	second, _ := repo.ListByWindow(ctx, testWindow)
	if len(second) != 1 {
		t.Fatalf("expected repeated sync to update in place, got %d rows", len(second))
	}
	row := second[0]
	if !row.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %s preserved, got %s", created, row.CreatedAt)
	}
	if !row.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("expected updated_at bumped, got %s", row.UpdatedAt)
	}
	if row.ID != first[0].ID {
		t.Fatalf("expected id %q preserved, got %q", first[0].ID, row.ID)
	}
	if row.TotalDrivers != 44 || row.TotalRaceSessions != 2 {
		t.Fatalf("expected refreshed stats, got drivers=%d sessions=%d", row.TotalDrivers, row.TotalRaceSessions)
	}
}

func TestWeeklyStatsCache_UpsertFailureUsingMockery(t *testing.T) {
	t.Parallel()

	repo := racestatsmock.NewRepository(t)
	repo.
		On("UpsertBatch", mock.Anything, mock.MatchedBy(func(items []racestats.SeriesWeeklyStat) bool {
			return len(items) == 1 && items[0].ID != ""
		})).
		Return(errors.New("pq: could not serialize access")).
		Once()

	err := newTestStatsCache(repo, fixedNow()).Upsert(context.Background(), []racestats.SeriesWeeklyStat{statForWindow(1, 5, time.Time{})})
	if !errors.Is(err, ErrCacheWriteFailure) {
		t.Fatalf("expected ErrCacheWriteFailure, got %v", err)
	}
}

func TestWeeklyStatsCache_FreshnessReadFailureUsingMockery(t *testing.T) {
	t.Parallel()

	repo := racestatsmock.NewRepository(t)
	repo.
		On("LatestUpdatedAt", mock.Anything, testWindow).
		Return(time.Time{}, false, errors.New("connection refused")).
		Once()

	_, err := newTestStatsCache(repo, fixedNow()).IsFresh(context.Background(), testWindow, SyncModeAllSeries)
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestWeeklyStatsCache_ListRejectsInvalidWindow(t *testing.T) {
	t.Parallel()

	_, err := newTestStatsCache(memory.NewWeeklyStatsRepository(), fixedNow()).List(context.Background(), season.Window{Year: 2025, Quarter: 5})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
