package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/jobscheduler"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
)

func TestJobDispatchRepository_MergesLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewJobDispatchRepository()
	window := season.Window{Year: 2025, Quarter: 3, RaceWeek: 2}
	sentAt := time.Date(2025, time.September, 17, 20, 0, 0, 0, time.UTC)

	steps := []jobscheduler.DispatchEvent{
		{DispatchID: "d-1", Window: window, Status: jobscheduler.StatusSent, OccurredAt: sentAt},
		{DispatchID: "d-1", Status: jobscheduler.StatusFailed, ErrorMessage: "upstream 503", OccurredAt: sentAt.Add(time.Hour)},
		{DispatchID: "d-1", Status: jobscheduler.StatusCompleted, OccurredAt: sentAt.Add(2 * time.Hour)},
	}
	for _, event := range steps {
		if err := repo.UpsertEvent(ctx, event); err != nil {
			t.Fatalf("upsert %s: %v", event.Status, err)
		}
	}

	record, ok := repo.Get("d-1")
	if !ok {
		t.Fatalf("expected record")
	}
	if record.Window != window {
		t.Fatalf("window must survive events without one, got %+v", record.Window)
	}
	if record.Status != jobscheduler.StatusCompleted || !record.SentAt.Equal(sentAt) {
		t.Fatalf("unexpected record %+v", record)
	}
	if !record.FailedAt.IsZero() || record.LastError != "" {
		t.Fatalf("completion must clear the earlier failure, got %+v", record)
	}
}

func TestJobDispatchRepository_RejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	err := NewJobDispatchRepository().UpsertEvent(context.Background(), jobscheduler.DispatchEvent{Status: jobscheduler.StatusSent})
	if !errors.Is(err, jobscheduler.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}
