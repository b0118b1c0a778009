package season

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	raceWeekLength     = 7 * 24 * time.Hour
	DefaultMaxRaceWeek = 11
)

// Window identifies one race week inside a quarterly season.
type Window struct {
	Year     int `json:"season_year"`
	Quarter  int `json:"season_quarter"`
	RaceWeek int `json:"race_week"`
}

func (w Window) String() string {
	return fmt.Sprintf("%dQ%d-W%d", w.Year, w.Quarter, w.RaceWeek)
}

// Anchor is the start of a quarter, evaluated in UTC for any calendar year.
type Anchor struct {
	Quarter int
	Month   time.Month
	Day     int
	Hour    int
}

func (a Anchor) At(year int) time.Time {
	return time.Date(year, a.Month, a.Day, a.Hour, 0, 0, 0, time.UTC)
}

type Calendar struct {
	Anchors     [4]Anchor
	MaxRaceWeek int
}

// DefaultCalendar matches the upstream weekly reset at 20:00 UTC.
func DefaultCalendar() Calendar {
	return Calendar{
		Anchors: [4]Anchor{
			{Quarter: 1, Month: time.March, Day: 12, Hour: 20},
			{Quarter: 2, Month: time.June, Day: 11, Hour: 20},
			{Quarter: 3, Month: time.September, Day: 3, Hour: 20},
			{Quarter: 4, Month: time.November, Day: 26, Hour: 20},
		},
		MaxRaceWeek: DefaultMaxRaceWeek,
	}
}

func (c Calendar) Validate() error {
	if c.MaxRaceWeek < 0 {
		return fmt.Errorf("max race week must be >= 0, got %d", c.MaxRaceWeek)
	}

	// 2001 is not a leap year, so Feb 29 anchors are rejected.
	const probeYear = 2001
	var prev time.Time
	for i, anchor := range c.Anchors {
		if anchor.Quarter != i+1 {
			return fmt.Errorf("anchor %d has quarter %d, expected %d", i, anchor.Quarter, i+1)
		}
		if anchor.Month < time.January || anchor.Month > time.December {
			return fmt.Errorf("quarter %d has invalid month %d", anchor.Quarter, anchor.Month)
		}
		if anchor.Hour < 0 || anchor.Hour > 23 {
			return fmt.Errorf("quarter %d has invalid hour %d", anchor.Quarter, anchor.Hour)
		}
		at := anchor.At(probeYear)
		if at.Month() != anchor.Month || at.Day() != anchor.Day {
			return fmt.Errorf("quarter %d has invalid day %02d-%02d", anchor.Quarter, anchor.Month, anchor.Day)
		}
		if i > 0 && !at.After(prev) {
			return fmt.Errorf("quarter %d must start after quarter %d", anchor.Quarter, anchor.Quarter-1)
		}
		prev = at
	}
	return nil
}

// QuarterStart returns the instant the given quarter of year begins.
func (c Calendar) QuarterStart(year, quarter int) (time.Time, error) {
	if quarter < 1 || quarter > 4 {
		return time.Time{}, fmt.Errorf("quarter must be 1..4, got %d", quarter)
	}
	return c.Anchors[quarter-1].At(year), nil
}

// CurrentWindow derives the race week containing now. It never fails.
func (c Calendar) CurrentWindow(now time.Time) Window {
	now = now.UTC()
	year := now.Year()

	start := time.Time{}
	quarter := 0
	for i := len(c.Anchors) - 1; i >= 0; i-- {
		at := c.Anchors[i].At(year)
		if !now.Before(at) {
			start = at
			quarter = c.Anchors[i].Quarter
			break
		}
	}
	if quarter == 0 {
		year--
		last := c.Anchors[len(c.Anchors)-1]
		start = last.At(year)
		quarter = last.Quarter
	}

	return Window{
		Year:     year,
		Quarter:  quarter,
		RaceWeek: c.clampWeek(int(now.Sub(start) / raceWeekLength)),
	}
}

// RaceWeekStart returns the instant a window's race week begins.
func (c Calendar) RaceWeekStart(w Window) (time.Time, error) {
	start, err := c.QuarterStart(w.Year, w.Quarter)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(c.clampWeek(w.RaceWeek)) * raceWeekLength), nil
}

func (c Calendar) clampWeek(week int) int {
	if week < 0 {
		return 0
	}
	if week > c.MaxRaceWeek {
		return c.MaxRaceWeek
	}
	return week
}

// ParseAnchors reads "1:03-12T20,2:06-11T20,3:09-03T20,4:11-26T20".
// The hour suffix is optional and defaults to 20.
func ParseAnchors(raw string) ([4]Anchor, error) {
	var out [4]Anchor
	parts := strings.Split(raw, ",")
	items := make([]Anchor, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}

		segments := strings.SplitN(item, ":", 2)
		if len(segments) != 2 {
			return out, fmt.Errorf("invalid anchor %q, expected quarter:MM-DD[THH]", item)
		}
		quarter, err := strconv.Atoi(strings.TrimSpace(segments[0]))
		if err != nil || quarter < 1 || quarter > 4 {
			return out, fmt.Errorf("invalid quarter in anchor %q", item)
		}

		datePart := strings.TrimSpace(segments[1])
		hour := 20
		if idx := strings.IndexAny(datePart, "Tt"); idx >= 0 {
			hour, err = strconv.Atoi(datePart[idx+1:])
			if err != nil {
				return out, fmt.Errorf("invalid hour in anchor %q: %w", item, err)
			}
			datePart = datePart[:idx]
		}
		monthDay := strings.SplitN(datePart, "-", 2)
		if len(monthDay) != 2 {
			return out, fmt.Errorf("invalid date in anchor %q", item)
		}
		month, err := strconv.Atoi(monthDay[0])
		if err != nil {
			return out, fmt.Errorf("invalid month in anchor %q: %w", item, err)
		}
		day, err := strconv.Atoi(monthDay[1])
		if err != nil {
			return out, fmt.Errorf("invalid day in anchor %q: %w", item, err)
		}

		items = append(items, Anchor{Quarter: quarter, Month: time.Month(month), Day: day, Hour: hour})
	}

	if len(items) != 4 {
		return out, fmt.Errorf("expected 4 anchors, got %d", len(items))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Quarter < items[j].Quarter })
	for i := range items {
		if items[i].Quarter != i+1 {
			return out, fmt.Errorf("missing anchor for quarter %d", i+1)
		}
		out[i] = items[i]
	}
	return out, nil
}
