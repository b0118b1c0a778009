package jobscheduler

import (
	"errors"
	"testing"

	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
)

func TestDispatchEvent_Validate(t *testing.T) {
	t.Parallel()

	if err := (DispatchEvent{DispatchID: "d-1", Status: StatusSent}).Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	if err := (DispatchEvent{DispatchID: " ", Status: StatusSent}).Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for blank id, got %v", err)
	}
	if err := (DispatchEvent{DispatchID: "d-1", Status: "queued"}).Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for unknown status, got %v", err)
	}
}

func TestDispatchEvent_WindowKey(t *testing.T) {
	t.Parallel()

	if got := (DispatchEvent{}).WindowKey(); got != "" {
		t.Fatalf("expected empty key for unresolved window, got %q", got)
	}
	event := DispatchEvent{Window: season.Window{Year: 2025, Quarter: 2, RaceWeek: 3}}
	if got := event.WindowKey(); got != "2025Q2-W3" {
		t.Fatalf("unexpected window key %q", got)
	}
}

func TestDispatchStatus_Terminal(t *testing.T) {
	t.Parallel()

	if StatusSent.Terminal() || !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
}
