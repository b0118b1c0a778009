package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

type syncWeeklyStatsRequest struct {
	SeasonYear    *int    `json:"season_year" validate:"omitempty,gte=2000,lte=2100"`
	SeasonQuarter *int    `json:"season_quarter" validate:"omitempty,gte=1,lte=4"`
	RaceWeek      *int    `json:"race_week" validate:"omitempty,gte=0"`
	EventTypes    []int   `json:"event_types" validate:"omitempty,dive,gt=0"`
	SeriesIDs     []int64 `json:"series_ids" validate:"omitempty,dive,gt=0"`
	Force         bool    `json:"force"`
	DispatchID    string  `json:"dispatch_id" validate:"omitempty,max=200"`
}

func (r syncWeeklyStatsRequest) toInput() usecase.SyncInput {
	return usecase.SyncInput{
		Year:       r.SeasonYear,
		Quarter:    r.SeasonQuarter,
		RaceWeek:   r.RaceWeek,
		EventTypes: r.EventTypes,
		SeriesIDs:  r.SeriesIDs,
		Force:      r.Force,
	}
}

type syncResultDTO struct {
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	Mode         string        `json:"mode"`
	Window       season.Window `json:"window"`
	Skipped      bool          `json:"skipped"`
	SeriesSynced int           `json:"series_synced"`
	SeriesFailed []int64       `json:"series_failed,omitempty"`
	RowsUpserted int           `json:"rows_upserted"`
}

func syncResultToDTO(result usecase.SyncResult) syncResultDTO {
	return syncResultDTO{
		Success:      result.Success,
		Error:        result.Error,
		Mode:         string(result.Mode),
		Window:       result.Window,
		Skipped:      result.Skipped,
		SeriesSynced: result.SeriesSynced,
		SeriesFailed: result.SeriesFailed,
		RowsUpserted: result.RowsUpserted,
	}
}

type scheduledTickDTO struct {
	DispatchID   string        `json:"dispatch_id"`
	JobPath      string        `json:"job_path"`
	DelaySeconds int64         `json:"delay_seconds"`
	Window       season.Window `json:"window"`
}

func scheduledTickToDTO(tick usecase.ScheduledTick) scheduledTickDTO {
	return scheduledTickDTO{
		DispatchID:   tick.DispatchID,
		JobPath:      tick.JobPath,
		DelaySeconds: int64(tick.Delay / time.Second),
		Window:       tick.Window,
	}
}

type seriesWeeklyStatDTO struct {
	SessionID              int64     `json:"session_id"`
	SeriesID               int64     `json:"series_id"`
	SeasonID               int64     `json:"season_id"`
	SeriesName             string    `json:"series_name"`
	TrackName              string    `json:"track_name"`
	SeasonYear             int       `json:"season_year"`
	SeasonQuarter          int       `json:"season_quarter"`
	RaceWeek               int       `json:"race_week"`
	StartTime              time.Time `json:"start_time"`
	TotalSplits            int       `json:"total_splits"`
	TotalRaceSessions      int       `json:"total_race_sessions"`
	TotalDrivers           int       `json:"total_drivers"`
	AverageEntrants        float64   `json:"average_entrants"`
	AverageSplits          float64   `json:"average_splits"`
	AverageStrengthOfField int       `json:"average_strength_of_field"`
	OfficialSession        bool      `json:"official_session"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func seriesWeeklyStatToDTO(stat racestats.SeriesWeeklyStat) seriesWeeklyStatDTO {
	return seriesWeeklyStatDTO{
		SessionID:              stat.SessionID,
		SeriesID:               stat.SeriesID,
		SeasonID:               stat.SeasonID,
		SeriesName:             stat.SeriesName,
		TrackName:              stat.TrackName,
		SeasonYear:             stat.SeasonYear,
		SeasonQuarter:          stat.SeasonQuarter,
		RaceWeek:               stat.RaceWeek,
		StartTime:              stat.StartTime,
		TotalSplits:            stat.TotalSplits,
		TotalRaceSessions:      stat.TotalRaceSessions,
		TotalDrivers:           stat.TotalDrivers,
		AverageEntrants:        stat.AverageEntrants,
		AverageSplits:          stat.AverageSplits,
		AverageStrengthOfField: stat.AverageStrengthOfField,
		OfficialSession:        stat.OfficialSession,
		UpdatedAt:              stat.UpdatedAt,
	}
}

// queryInt returns nil when the parameter is absent.
func queryInt(values url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s must be an integer", usecase.ErrInvalidInput, key)
	}
	return &value, nil
}

func queryBool(values url.Values, key string) (bool, bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%w: query %s must be a boolean", usecase.ErrInvalidInput, key)
	}
	return value, true, nil
}

// queryIntList accepts both repeated keys and comma separated values.
func queryIntList[T int | int64](values url.Values, key string) ([]T, error) {
	out := make([]T, 0)
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			value, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: query %s has invalid value %q", usecase.ErrInvalidInput, key, part)
			}
			out = append(out, T(value))
		}
	}
	return out, nil
}
