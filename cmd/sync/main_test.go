package main

import "testing"

func TestParseFlags(t *testing.T) {
	input, err := parseFlags([]string{"-season-year=2025", "-season-quarter=3", "-race-week=0", "-series-ids=285, 34", "-event-types=5", "-force"})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if input.Year == nil || *input.Year != 2025 || input.Quarter == nil || *input.Quarter != 3 {
		t.Fatalf("unexpected window override %+v", input)
	}
	if input.RaceWeek == nil || *input.RaceWeek != 0 {
		t.Fatalf("expected race week 0 to be kept as an override")
	}
	if len(input.SeriesIDs) != 2 || input.SeriesIDs[1] != 34 {
		t.Fatalf("unexpected series ids %v", input.SeriesIDs)
	}
	if len(input.EventTypes) != 1 || input.EventTypes[0] != 5 || !input.Force {
		t.Fatalf("unexpected input %+v", input)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	input, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if input.Year != nil || input.Quarter != nil || input.RaceWeek != nil {
		t.Fatalf("expected no window override, got %+v", input)
	}
	if len(input.SeriesIDs) != 0 || input.Force {
		t.Fatalf("expected current-week mode, got %+v", input)
	}
}

func TestParseFlags_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"-series-ids=12,abc"},
		{"-series-ids=-3"},
		{"-event-types=x"},
		{"-unknown"},
	} {
		if _, err := parseFlags(args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestEmitExitCode(t *testing.T) {
	if code := emit(output{Success: true}); code != 0 {
		t.Fatalf("expected exit 0 on success, got %d", code)
	}
	if code := emit(output{Error: "no refresh token"}); code != 1 {
		t.Fatalf("expected exit 1 on failure, got %d", code)
	}
}
