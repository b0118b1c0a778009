package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/raceweek-stats/internal/domain/jobscheduler"
	qb "github.com/riskibarqy/raceweek-stats/internal/platform/querybuilder"
)

// Each status owns its own timestamp and trace columns. A later event only
// overwrites the columns of its own status, so one row shows the whole
// sent -> completed|failed history of a tick.
const upsertDispatchEventSuffix = `ON CONFLICT (dispatch_id)
DO UPDATE SET
    job_name = EXCLUDED.job_name,
    job_path = EXCLUDED.job_path,
    window_key = CASE
        WHEN EXCLUDED.window_key = 'unknown' THEN job_dispatch_events.window_key
        ELSE EXCLUDED.window_key
    END,
    payload = EXCLUDED.payload,
    status = EXCLUDED.status,
    sent_at = COALESCE(EXCLUDED.sent_at, job_dispatch_events.sent_at),
    sent_trace_id = COALESCE(EXCLUDED.sent_trace_id, job_dispatch_events.sent_trace_id),
    sent_span_id = COALESCE(EXCLUDED.sent_span_id, job_dispatch_events.sent_span_id),
    completed_at = COALESCE(EXCLUDED.completed_at, job_dispatch_events.completed_at),
    completed_trace_id = COALESCE(EXCLUDED.completed_trace_id, job_dispatch_events.completed_trace_id),
    completed_span_id = COALESCE(EXCLUDED.completed_span_id, job_dispatch_events.completed_span_id),
    failed_at = CASE
        WHEN EXCLUDED.status = 'completed' THEN NULL
        ELSE COALESCE(EXCLUDED.failed_at, job_dispatch_events.failed_at)
    END,
    failed_trace_id = COALESCE(EXCLUDED.failed_trace_id, job_dispatch_events.failed_trace_id),
    failed_span_id = COALESCE(EXCLUDED.failed_span_id, job_dispatch_events.failed_span_id),
    last_error = EXCLUDED.last_error,
    updated_at = NOW()`

type JobDispatchRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewJobDispatchRepository(db *sqlx.DB) *JobDispatchRepository {
	return &JobDispatchRepository{db: db, now: time.Now}
}

func (r *JobDispatchRepository) UpsertEvent(ctx context.Context, event jobscheduler.DispatchEvent) error {
	query, args, err := buildUpsertDispatchEventQuery(event, r.now().UTC())
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert job dispatch dispatch_id=%s status=%s: %w", event.DispatchID, event.Status, err)
	}
	return nil
}

func buildUpsertDispatchEventQuery(event jobscheduler.DispatchEvent, now time.Time) (string, []any, error) {
	model, err := newJobDispatchInsertModel(event, now)
	if err != nil {
		return "", nil, err
	}
	query, args, err := qb.InsertModel(jobDispatchEventsTable, model, upsertDispatchEventSuffix)
	if err != nil {
		return "", nil, fmt.Errorf("build upsert job dispatch query: %w", err)
	}
	return query, args, nil
}

func newJobDispatchInsertModel(event jobscheduler.DispatchEvent, now time.Time) (jobDispatchInsertModel, error) {
	if err := event.Validate(); err != nil {
		return jobDispatchInsertModel{}, err
	}
	dispatchID := strings.TrimSpace(event.DispatchID)

	payloadJSON, err := marshalPayload(event.Payload)
	if err != nil {
		return jobDispatchInsertModel{}, fmt.Errorf("marshal job dispatch payload dispatch_id=%s: %w", dispatchID, err)
	}

	occurredAt := event.OccurredAt.UTC()
	if event.OccurredAt.IsZero() {
		occurredAt = now
	}

	model := jobDispatchInsertModel{
		DispatchID: dispatchID,
		JobName:    valueOr(event.JobName, "unknown"),
		JobPath:    valueOr(event.JobPath, "/unknown"),
		WindowKey:  valueOr(event.WindowKey(), "unknown"),
		Payload:    payloadJSON,
		Status:     string(event.Status),
	}

	model.stamp(event, occurredAt)
	return model, nil
}

func marshalPayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func valueOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
