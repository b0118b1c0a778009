package postgres

import (
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
)

const seriesWeeklyStatsTable = "series_weekly_stats"

type weeklyStatInsertModel struct {
	ID                     string    `db:"id"`
	SessionID              int64     `db:"session_id"`
	SeriesID               int64     `db:"series_id"`
	SeasonID               int64     `db:"season_id"`
	SeriesName             string    `db:"series_name"`
	TrackName              string    `db:"track_name"`
	SeasonYear             int       `db:"season_year"`
	SeasonQuarter          int       `db:"season_quarter"`
	RaceWeek               int       `db:"race_week"`
	StartTime              time.Time `db:"start_time"`
	TotalSplits            int       `db:"total_splits"`
	TotalRaceSessions      int       `db:"total_race_sessions"`
	TotalDrivers           int       `db:"total_drivers"`
	AverageEntrants        float64   `db:"average_entrants"`
	AverageSplits          float64   `db:"average_splits"`
	AverageStrengthOfField int       `db:"average_strength_of_field"`
	OfficialSession        bool      `db:"official_session"`
}

type weeklyStatTableModel struct {
	weeklyStatInsertModel
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newWeeklyStatInsertModel(item racestats.SeriesWeeklyStat) weeklyStatInsertModel {
	return weeklyStatInsertModel{
		ID:                     item.ID,
		SessionID:              item.SessionID,
		SeriesID:               item.SeriesID,
		SeasonID:               item.SeasonID,
		SeriesName:             item.SeriesName,
		TrackName:              item.TrackName,
		SeasonYear:             item.SeasonYear,
		SeasonQuarter:          item.SeasonQuarter,
		RaceWeek:               item.RaceWeek,
		StartTime:              item.StartTime.UTC(),
		TotalSplits:            item.TotalSplits,
		TotalRaceSessions:      item.TotalRaceSessions,
		TotalDrivers:           item.TotalDrivers,
		AverageEntrants:        item.AverageEntrants,
		AverageSplits:          item.AverageSplits,
		AverageStrengthOfField: item.AverageStrengthOfField,
		OfficialSession:        item.OfficialSession,
	}
}

func (m weeklyStatTableModel) toDomain() racestats.SeriesWeeklyStat {
	return racestats.SeriesWeeklyStat{
		ID:                     m.ID,
		SessionID:              m.SessionID,
		SeriesID:               m.SeriesID,
		SeasonID:               m.SeasonID,
		SeriesName:             m.SeriesName,
		TrackName:              m.TrackName,
		SeasonYear:             m.SeasonYear,
		SeasonQuarter:          m.SeasonQuarter,
		RaceWeek:               m.RaceWeek,
		StartTime:              m.StartTime.UTC(),
		TotalSplits:            m.TotalSplits,
		TotalRaceSessions:      m.TotalRaceSessions,
		TotalDrivers:           m.TotalDrivers,
		AverageEntrants:        m.AverageEntrants,
		AverageSplits:          m.AverageSplits,
		AverageStrengthOfField: m.AverageStrengthOfField,
		OfficialSession:        m.OfficialSession,
		CreatedAt:              m.CreatedAt.UTC(),
		UpdatedAt:              m.UpdatedAt.UTC(),
	}
}
