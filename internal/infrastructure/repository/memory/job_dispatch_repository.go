package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/jobscheduler"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
)

// DispatchRecord is the merged history of one dispatch.
type DispatchRecord struct {
	DispatchID  string
	Window      season.Window
	Status      jobscheduler.DispatchStatus
	SentAt      time.Time
	CompletedAt time.Time
	FailedAt    time.Time
	LastError   string
}

type JobDispatchRepository struct {
	mu      sync.RWMutex
	records map[string]DispatchRecord
}

func NewJobDispatchRepository() *JobDispatchRepository {
	return &JobDispatchRepository{records: make(map[string]DispatchRecord)}
}

func (r *JobDispatchRepository) UpsertEvent(_ context.Context, event jobscheduler.DispatchEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	id := strings.TrimSpace(event.DispatchID)
	at := event.OccurredAt.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	record := r.records[id]
	record.DispatchID = id
	record.Status = event.Status
	if event.Window.Quarter != 0 {
		record.Window = event.Window
	}
	switch event.Status {
	case jobscheduler.StatusSent:
		record.SentAt = at
	case jobscheduler.StatusCompleted:
		record.CompletedAt = at
		record.FailedAt = time.Time{}
		record.LastError = ""
	case jobscheduler.StatusFailed:
		record.FailedAt = at
		record.LastError = event.ErrorMessage
	}
	r.records[id] = record
	return nil
}

func (r *JobDispatchRepository) Get(dispatchID string) (DispatchRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[strings.TrimSpace(dispatchID)]
	return record, ok
}
