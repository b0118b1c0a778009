package racestats

import (
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
)

// RawSessionRecord is one split of a race as returned by the results search.
type RawSessionRecord struct {
	SessionID            int64
	SubsessionID         int64
	SeriesID             int64
	SeasonID             int64
	SeriesName           string
	TrackName            string
	SeasonYear           int
	SeasonQuarter        int
	RaceWeekNum          int
	NumDrivers           int
	EventStrengthOfField int
	OfficialSession      bool
	StartTime            time.Time
}

// SeriesWeeklyStat is the cached aggregate of one series for one race week.
type SeriesWeeklyStat struct {
	ID                     string
	SessionID              int64
	SeriesID               int64
	SeasonID               int64
	SeriesName             string
	TrackName              string
	SeasonYear             int
	SeasonQuarter          int
	RaceWeek               int
	StartTime              time.Time
	TotalSplits            int
	TotalRaceSessions      int
	TotalDrivers           int
	AverageEntrants        float64
	AverageSplits          float64
	AverageStrengthOfField int
	OfficialSession        bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (s SeriesWeeklyStat) Window() season.Window {
	return season.Window{Year: s.SeasonYear, Quarter: s.SeasonQuarter, RaceWeek: s.RaceWeek}
}

// SearchParams is the whitelisted query for the results search endpoint.
// Zero values are omitted, RaceWeekNum is a pointer because week 0 is valid.
type SearchParams struct {
	SeasonYear      int
	SeasonQuarter   int
	RaceWeekNum     *int
	SeriesID        int64
	EventTypes      []int
	OfficialOnly    bool
	StartRangeBegin time.Time
	StartRangeEnd   time.Time
	CustID          int64
}

// ForWindow scopes params to a season window.
func ForWindow(w season.Window) SearchParams {
	week := w.RaceWeek
	return SearchParams{
		SeasonYear:    w.Year,
		SeasonQuarter: w.Quarter,
		RaceWeekNum:   &week,
	}
}
