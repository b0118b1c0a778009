package racestats

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
)

type Repository interface {
	// LatestUpdatedAt returns the newest updated_at among rows of the window.
	LatestUpdatedAt(ctx context.Context, window season.Window) (time.Time, bool, error)
	// UpsertBatch applies every row or none of them.
	UpsertBatch(ctx context.Context, stats []SeriesWeeklyStat) error
	ListByWindow(ctx context.Context, window season.Window) ([]SeriesWeeklyStat, error)
}

// ErrWriteConflict marks a batch rolled back by a serialization failure or a
// deadlock. Retrying the whole batch is safe.
var ErrWriteConflict = errors.New("weekly stats write conflict")
