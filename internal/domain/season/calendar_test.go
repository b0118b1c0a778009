package season

import (
	"testing"
	"time"
)

func TestCurrentWindow_AnchorBoundaries(t *testing.T) {
	t.Parallel()

	cal := DefaultCalendar()
	q2Start := time.Date(2025, time.June, 11, 20, 0, 0, 0, time.UTC)

	before := cal.CurrentWindow(q2Start.Add(-time.Second))
	if before.Year != 2025 || before.Quarter != 1 {
		t.Fatalf("expected 2025 Q1 one second before anchor, got %+v", before)
	}

	at := cal.CurrentWindow(q2Start)
	if at != (Window{Year: 2025, Quarter: 2, RaceWeek: 0}) {
		t.Fatalf("expected week 0 of 2025 Q2 at anchor, got %+v", at)
	}

	nextWeek := cal.CurrentWindow(q2Start.Add(7 * 24 * time.Hour))
	if nextWeek.RaceWeek != 1 {
		t.Fatalf("expected race week 1 after seven days, got %d", nextWeek.RaceWeek)
	}
}

func TestCurrentWindow_RollsBackToPreviousYear(t *testing.T) {
	t.Parallel()

	cal := DefaultCalendar()
	got := cal.CurrentWindow(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC))
	if got.Year != 2025 || got.Quarter != 4 {
		t.Fatalf("expected 2025 Q4, got %+v", got)
	}

	want := int(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC).Sub(time.Date(2025, time.November, 26, 20, 0, 0, 0, time.UTC)) / (7 * 24 * time.Hour))
	if got.RaceWeek != want {
		t.Fatalf("expected race week %d, got %d", want, got.RaceWeek)
	}
}

func TestCurrentWindow_ClampsMakeupWeek(t *testing.T) {
	t.Parallel()

	cal := DefaultCalendar()
	// Q1 2025 runs until Jun 11, a 13th week lands before the Q2 anchor.
	got := cal.CurrentWindow(time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	if got.Quarter != 1 {
		t.Fatalf("expected Q1, got %+v", got)
	}
	if got.RaceWeek != cal.MaxRaceWeek {
		t.Fatalf("expected race week clamped to %d, got %d", cal.MaxRaceWeek, got.RaceWeek)
	}
}

func TestCurrentWindow_Totality(t *testing.T) {
	t.Parallel()

	cal := DefaultCalendar()
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for at := start; at.Before(start.AddDate(3, 0, 0)); at = at.Add(13 * time.Hour) {
		got := cal.CurrentWindow(at)
		if got.Quarter < 1 || got.Quarter > 4 {
			t.Fatalf("quarter out of range at %s: %+v", at, got)
		}
		if got.RaceWeek < 0 || got.RaceWeek > cal.MaxRaceWeek {
			t.Fatalf("race week out of range at %s: %+v", at, got)
		}
		qs, err := cal.QuarterStart(got.Year, got.Quarter)
		if err != nil {
			t.Fatalf("quarter start: %v", err)
		}
		if at.Before(qs) {
			t.Fatalf("window %+v starts after %s", got, at)
		}
	}
}

func TestCurrentWindow_NonUTCInput(t *testing.T) {
	t.Parallel()

	cal := DefaultCalendar()
	jakarta := time.FixedZone("WIB", 7*3600)
	// 2025-06-12 02:59:59 WIB is 2025-06-11 19:59:59 UTC.
	got := cal.CurrentWindow(time.Date(2025, time.June, 12, 2, 59, 59, 0, jakarta))
	if got.Quarter != 1 {
		t.Fatalf("expected Q1 for instant before UTC anchor, got %+v", got)
	}
}

func TestParseAnchors(t *testing.T) {
	t.Parallel()

	anchors, err := ParseAnchors("2:06-10T18, 1:03-11, 4:11-25T20,3:09-02T20")
	if err != nil {
		t.Fatalf("parse anchors: %v", err)
	}
	if anchors[0] != (Anchor{Quarter: 1, Month: time.March, Day: 11, Hour: 20}) {
		t.Fatalf("unexpected q1 anchor: %+v", anchors[0])
	}
	if anchors[1].Hour != 18 || anchors[1].Day != 10 {
		t.Fatalf("unexpected q2 anchor: %+v", anchors[1])
	}

	cal := Calendar{Anchors: anchors, MaxRaceWeek: 11}
	if err := cal.Validate(); err != nil {
		t.Fatalf("validate parsed calendar: %v", err)
	}
}

func TestParseAnchors_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing quarter": "1:03-12,2:06-11,3:09-03",
		"duplicate":       "1:03-12,1:06-11,3:09-03,4:11-26",
		"bad month":       "1:xx-12,2:06-11,3:09-03,4:11-26",
		"no separator":    "1-03-12,2:06-11,3:09-03,4:11-26",
	}
	for name, raw := range cases {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseAnchors(raw); err == nil {
				t.Fatalf("expected error for %q", raw)
			}
		})
	}
}

func TestCalendarValidate_RejectsOutOfOrder(t *testing.T) {
	t.Parallel()

	cal := DefaultCalendar()
	cal.Anchors[1].Month = time.February
	if err := cal.Validate(); err == nil {
		t.Fatalf("expected out-of-order anchors to be rejected")
	}

	cal = DefaultCalendar()
	cal.Anchors[2].Day = 31
	if err := cal.Validate(); err == nil {
		t.Fatalf("expected Sep 31 to be rejected")
	}
}

func TestRaceWeekStart(t *testing.T) {
	t.Parallel()

	cal := DefaultCalendar()
	got, err := cal.RaceWeekStart(Window{Year: 2025, Quarter: 3, RaceWeek: 2})
	if err != nil {
		t.Fatalf("race week start: %v", err)
	}
	want := time.Date(2025, time.September, 17, 20, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
