package postgres

import (
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/jobscheduler"
)

const jobDispatchEventsTable = "job_dispatch_events"

// jobDispatchInsertModel mirrors job_dispatch_events. Only the column group
// of the event's status is non-nil; the conflict clause COALESCEs the rest.
type jobDispatchInsertModel struct {
	DispatchID string `db:"dispatch_id"`
	JobName    string `db:"job_name"`
	JobPath    string `db:"job_path"`
	WindowKey  string `db:"window_key"`
	Payload    string `db:"payload"`
	Status     string `db:"status"`

	SentAt      *time.Time `db:"sent_at"`
	SentTraceID *string    `db:"sent_trace_id"`
	SentSpanID  *string    `db:"sent_span_id"`

	CompletedAt      *time.Time `db:"completed_at"`
	CompletedTraceID *string    `db:"completed_trace_id"`
	CompletedSpanID  *string    `db:"completed_span_id"`

	FailedAt      *time.Time `db:"failed_at"`
	FailedTraceID *string    `db:"failed_trace_id"`
	FailedSpanID  *string    `db:"failed_span_id"`
	LastError     *string    `db:"last_error"`
}

// stamp fills the column group that belongs to event.Status.
func (m *jobDispatchInsertModel) stamp(event jobscheduler.DispatchEvent, at time.Time) {
	traceID := optionalString(event.TraceID)
	spanID := optionalString(event.SpanID)
	switch event.Status {
	case jobscheduler.StatusSent:
		m.SentAt, m.SentTraceID, m.SentSpanID = &at, traceID, spanID
	case jobscheduler.StatusCompleted:
		m.CompletedAt, m.CompletedTraceID, m.CompletedSpanID = &at, traceID, spanID
	case jobscheduler.StatusFailed:
		m.FailedAt, m.FailedTraceID, m.FailedSpanID = &at, traceID, spanID
		m.LastError = optionalString(event.ErrorMessage)
	}
}
