package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	qb "github.com/riskibarqy/raceweek-stats/internal/platform/querybuilder"
)

// Only derived columns move on conflict. Identity columns and created_at keep
// the values of the first insert.
const upsertWeeklyStatSuffix = `ON CONFLICT (session_id)
DO UPDATE SET
    total_splits = EXCLUDED.total_splits,
    total_race_sessions = EXCLUDED.total_race_sessions,
    total_drivers = EXCLUDED.total_drivers,
    average_entrants = EXCLUDED.average_entrants,
    average_splits = EXCLUDED.average_splits,
    average_strength_of_field = EXCLUDED.average_strength_of_field,
    official_session = EXCLUDED.official_session,
    updated_at = NOW()`

// Postgres caps a statement at 65535 bind params and rejects ON CONFLICT
// touching one row twice, so batches stay small and session ids unique.
const upsertWeeklyStatBatchSize = 500

type WeeklyStatsRepository struct {
	db *sqlx.DB
}

func NewWeeklyStatsRepository(db *sqlx.DB) *WeeklyStatsRepository {
	return &WeeklyStatsRepository{db: db}
}

func (r *WeeklyStatsRepository) LatestUpdatedAt(ctx context.Context, window season.Window) (time.Time, bool, error) {
	query, args, err := buildLatestUpdatedAtQuery(window)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build latest weekly stat query: %w", err)
	}

	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, query, args...); err != nil {
		if isNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("select latest weekly stat window=%s: %w", window, err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time.UTC(), true, nil
}

func (r *WeeklyStatsRepository) UpsertBatch(ctx context.Context, stats []racestats.SeriesWeeklyStat) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert weekly stats: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	models := dedupeWeeklyStatModels(stats)
	for start := 0; start < len(models); start += upsertWeeklyStatBatchSize {
		end := min(start+upsertWeeklyStatBatchSize, len(models))
		query, args, err := qb.InsertModels(seriesWeeklyStatsTable, models[start:end], upsertWeeklyStatSuffix)
		if err != nil {
			return fmt.Errorf("build upsert weekly stats query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return wrapWeeklyStatWriteErr(fmt.Sprintf("upsert weekly stats rows=%d..%d", start, end), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapWeeklyStatWriteErr("commit upsert weekly stats tx", err)
	}
	return nil
}

func (r *WeeklyStatsRepository) ListByWindow(ctx context.Context, window season.Window) ([]racestats.SeriesWeeklyStat, error) {
	query, args, err := buildListByWindowQuery(window)
	if err != nil {
		return nil, fmt.Errorf("build list weekly stats query: %w", err)
	}

	var rows []weeklyStatTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select weekly stats window=%s: %w", window, err)
	}

	out := make([]racestats.SeriesWeeklyStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// dedupeWeeklyStatModels keeps the last stat per session id in first-seen order.
func dedupeWeeklyStatModels(stats []racestats.SeriesWeeklyStat) []weeklyStatInsertModel {
	index := make(map[int64]int, len(stats))
	out := make([]weeklyStatInsertModel, 0, len(stats))
	for _, item := range stats {
		model := newWeeklyStatInsertModel(item)
		if i, ok := index[item.SessionID]; ok {
			out[i] = model
			continue
		}
		index[item.SessionID] = len(out)
		out = append(out, model)
	}
	return out
}

func windowConditions(window season.Window) []qb.Condition {
	return []qb.Condition{
		qb.Eq("season_year", window.Year),
		qb.Eq("season_quarter", window.Quarter),
		qb.Eq("race_week", window.RaceWeek),
	}
}

func buildLatestUpdatedAtQuery(window season.Window) (string, []any, error) {
	return qb.Select("MAX(updated_at)").From(seriesWeeklyStatsTable).
		Where(windowConditions(window)...).
		ToSQL()
}

func buildListByWindowQuery(window season.Window) (string, []any, error) {
	return qb.Select("*").From(seriesWeeklyStatsTable).
		Where(windowConditions(window)...).
		OrderBy("total_drivers DESC", "series_id ASC").
		ToSQL()
}

func wrapWeeklyStatWriteErr(op string, err error) error {
	if code := txConflictCode(err); code != "" {
		return fmt.Errorf("%w: %s pq_code=%s: %w", racestats.ErrWriteConflict, op, code, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
