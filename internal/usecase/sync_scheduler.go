package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/jobscheduler"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"go.opentelemetry.io/otel/trace"
)

const (
	SyncWeeklyStatsJobName = "sync-weekly-stats"
	SyncWeeklyStatsJobPath = "/v1/internal/jobs/sync-weekly-stats"

	defaultSyncScheduleInterval = time.Hour
)

type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

type noopJobQueue struct{}

func (noopJobQueue) Enqueue(_ context.Context, _ string, _ any, _ time.Duration, _ string) error {
	return nil
}

func NewNoopJobQueue() JobQueue {
	return noopJobQueue{}
}

type SyncSchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
	Calendar season.Calendar
}

type ScheduledTick struct {
	DispatchID string        `json:"dispatch_id"`
	JobPath    string        `json:"job_path"`
	Delay      time.Duration `json:"delay_ns"`
	Window     season.Window `json:"window"`
}

// SyncScheduler chains sync runs through the external queue: every run
// enqueues the next tick and records what happened to the previous one.
type SyncScheduler struct {
	queue        JobQueue
	dispatchRepo jobscheduler.Repository
	cfg          SyncSchedulerConfig
	logger       *logging.Logger
	now          func() time.Time
}

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func NewSyncScheduler(queue JobQueue, dispatchRepo jobscheduler.Repository, cfg SyncSchedulerConfig, logger *logging.Logger) *SyncScheduler {
	if queue == nil {
		queue = NewNoopJobQueue()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSyncScheduleInterval
	}
	if cfg.Calendar.Validate() != nil {
		cfg.Calendar = season.DefaultCalendar()
	}

	return &SyncScheduler{
		queue:        queue,
		dispatchRepo: dispatchRepo,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *SyncScheduler) Enabled() bool {
	return s != nil && s.cfg.Enabled
}

// Bootstrap enqueues an immediate first tick for the current race week.
func (s *SyncScheduler) Bootstrap(ctx context.Context) (ScheduledTick, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncScheduler.Bootstrap")
	defer span.End()

	if !s.Enabled() {
		return ScheduledTick{}, fmt.Errorf("%w: sync schedule is disabled (SYNC_SCHEDULE_ENABLED=false)", ErrDependencyUnavailable)
	}

	now := s.now().UTC()
	return s.enqueue(ctx, s.cfg.Calendar.CurrentWindow(now), 0, now)
}

// AfterRun closes the incoming dispatch and, when scheduling is enabled,
// enqueues the next tick. A skipped or failed run still chains.
func (s *SyncScheduler) AfterRun(ctx context.Context, dispatchID string, result SyncResult) (ScheduledTick, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncScheduler.AfterRun")
	defer span.End()

	now := s.now().UTC()
	if dispatchID = strings.TrimSpace(dispatchID); dispatchID != "" {
		status := jobscheduler.StatusCompleted
		if !result.Success {
			status = jobscheduler.StatusFailed
		}
		s.recordDispatchEvent(ctx, jobscheduler.DispatchEvent{
			DispatchID:   dispatchID,
			JobName:      SyncWeeklyStatsJobName,
			JobPath:      SyncWeeklyStatsJobPath,
			Window:       result.Window,
			Status:       status,
			Payload:      syncResultPayload(result),
			ErrorMessage: result.Error,
			OccurredAt:   now,
		})
	}

	if !s.Enabled() {
		return ScheduledTick{}, nil
	}

	window := result.Window
	if window.Quarter == 0 {
		window = s.cfg.Calendar.CurrentWindow(now)
	}
	return s.enqueue(ctx, window, s.cfg.Interval, now)
}

func (s *SyncScheduler) enqueue(ctx context.Context, window season.Window, delay time.Duration, now time.Time) (ScheduledTick, error) {
	dedupID := dedupKey(SyncWeeklyStatsJobName, window.String(), now.Add(delay), s.cfg.Interval)
	payload := map[string]any{
		"dispatch_id": dedupID,
	}
	tick := ScheduledTick{
		DispatchID: dedupID,
		JobPath:    SyncWeeklyStatsJobPath,
		Delay:      delay,
		Window:     window,
	}

	if err := s.queue.Enqueue(ctx, SyncWeeklyStatsJobPath, payload, delay, dedupID); err != nil {
		s.recordDispatchEvent(ctx, jobscheduler.DispatchEvent{
			DispatchID:   dedupID,
			JobName:      SyncWeeklyStatsJobName,
			JobPath:      SyncWeeklyStatsJobPath,
			Window:       window,
			Status:       jobscheduler.StatusFailed,
			Payload:      payload,
			ErrorMessage: err.Error(),
			OccurredAt:   now,
		})
		return ScheduledTick{}, fmt.Errorf("enqueue %s window=%s: %w", SyncWeeklyStatsJobName, window, err)
	}

	s.recordDispatchEvent(ctx, jobscheduler.DispatchEvent{
		DispatchID: dedupID,
		JobName:    SyncWeeklyStatsJobName,
		JobPath:    SyncWeeklyStatsJobPath,
		Window:     window,
		Status:     jobscheduler.StatusSent,
		Payload:    payload,
		OccurredAt: now,
	})
	s.logger.InfoContext(ctx, "next weekly stats sync enqueued",
		"dispatch_id", dedupID,
		"delay", delay.String(),
		"window", window.String(),
	)
	return tick, nil
}

func syncResultPayload(result SyncResult) map[string]any {
	return map[string]any{
		"success":       result.Success,
		"skipped":       result.Skipped,
		"mode":          string(result.Mode),
		"rows_upserted": result.RowsUpserted,
		"series_synced": result.SeriesSynced,
		"series_failed": result.SeriesFailed,
	}
}

func dedupKey(prefix, key string, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	slot := at.UTC().Truncate(bucket).Format("20060102T150405Z")
	prefix = sanitizeDedupSegment(prefix)
	key = sanitizeDedupSegment(key)
	return prefix + "-" + key + "-" + slot
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}

func (s *SyncScheduler) recordDispatchEvent(ctx context.Context, event jobscheduler.DispatchEvent) {
	if s.dispatchRepo == nil || strings.TrimSpace(event.DispatchID) == "" {
		return
	}
	traceID, spanID := traceMetaFromContext(ctx)
	event.TraceID = traceID
	event.SpanID = spanID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if err := s.dispatchRepo.UpsertEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "record job dispatch event failed",
			"dispatch_id", event.DispatchID,
			"status", string(event.Status),
			"error", err,
		)
	}
}

func traceMetaFromContext(ctx context.Context) (string, string) {
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if !spanContext.IsValid() {
		return "", ""
	}
	return spanContext.TraceID().String(), spanContext.SpanID().String()
}
