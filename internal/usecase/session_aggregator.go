package usecase

import (
	"math"

	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
)

// AggregateOptions controls which race weeks fold into a window. The
// special event runs in the week after MaxRaceWeek, between quarters.
type AggregateOptions struct {
	IncludeSpecialEvents bool
	MaxRaceWeek          int
}

func (o AggregateOptions) specialEvent(window season.Window, record racestats.RawSessionRecord) bool {
	return o.IncludeSpecialEvents &&
		window.RaceWeek == o.MaxRaceWeek &&
		record.RaceWeekNum == o.MaxRaceWeek+1
}

type seriesGroup struct {
	representative racestats.RawSessionRecord
	sessions       map[int64]struct{}
	splits         int
	drivers        int
	sofTotal       int
	official       bool
}

// Aggregate folds per-split records into one stat row per series. Groups
// keep the order in which their series first appears in records.
func Aggregate(records []racestats.RawSessionRecord) []racestats.SeriesWeeklyStat {
	if len(records) == 0 {
		return []racestats.SeriesWeeklyStat{}
	}

	order := make([]int64, 0)
	groups := make(map[int64]*seriesGroup)
	for _, record := range records {
		group, ok := groups[record.SeriesID]
		if !ok {
			group = &seriesGroup{
				representative: record,
				sessions:       make(map[int64]struct{}),
				official:       true,
			}
			groups[record.SeriesID] = group
			order = append(order, record.SeriesID)
		}

		group.splits++
		group.sessions[record.SessionID] = struct{}{}
		group.drivers += record.NumDrivers
		group.sofTotal += record.EventStrengthOfField
		group.official = group.official && record.OfficialSession
	}

	out := make([]racestats.SeriesWeeklyStat, 0, len(order))
	for _, seriesID := range order {
		group := groups[seriesID]
		if group.splits == 0 {
			continue
		}
		out = append(out, group.toStat())
	}
	return out
}

// AggregateForWeek keeps only records of the window's race week before
// aggregating, so a series that raced solely in other weeks yields no row.
func AggregateForWeek(records []racestats.RawSessionRecord, window season.Window, opts AggregateOptions) []racestats.SeriesWeeklyStat {
	filtered := make([]racestats.RawSessionRecord, 0, len(records))
	for _, record := range records {
		if record.RaceWeekNum == window.RaceWeek {
			filtered = append(filtered, record)
			continue
		}
		if opts.specialEvent(window, record) {
			filtered = append(filtered, record)
		}
	}

	// Special-event rows fold into the final week of the window.
	stats := Aggregate(filtered)
	for i := range stats {
		stats[i].RaceWeek = window.RaceWeek
	}
	return stats
}

func (g *seriesGroup) toStat() racestats.SeriesWeeklyStat {
	rep := g.representative
	raceSessions := len(g.sessions)

	return racestats.SeriesWeeklyStat{
		SessionID:              rep.SessionID,
		SeriesID:               rep.SeriesID,
		SeasonID:               rep.SeasonID,
		SeriesName:             rep.SeriesName,
		TrackName:              rep.TrackName,
		SeasonYear:             rep.SeasonYear,
		SeasonQuarter:          rep.SeasonQuarter,
		RaceWeek:               rep.RaceWeekNum,
		StartTime:              rep.StartTime,
		TotalSplits:            g.splits,
		TotalRaceSessions:      raceSessions,
		TotalDrivers:           g.drivers,
		AverageEntrants:        round1(safeDivide(float64(g.drivers), float64(raceSessions))),
		AverageSplits:          round1(safeDivide(float64(g.splits), float64(raceSessions))),
		AverageStrengthOfField: int(math.Round(safeDivide(float64(g.sofTotal), float64(g.splits)))),
		OfficialSession:        g.official,
	}
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	out := numerator / denominator
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
