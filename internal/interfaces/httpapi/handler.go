package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

type WeeklyStatsSyncer interface {
	Run(ctx context.Context, input usecase.SyncInput) usecase.SyncResult
}

type SyncTickScheduler interface {
	Bootstrap(ctx context.Context) (usecase.ScheduledTick, error)
	AfterRun(ctx context.Context, dispatchID string, result usecase.SyncResult) (usecase.ScheduledTick, error)
}

type WeeklyStatsReader interface {
	List(ctx context.Context, window season.Window) ([]racestats.SeriesWeeklyStat, error)
}

type Handler struct {
	syncer    WeeklyStatsSyncer
	scheduler SyncTickScheduler
	stats     WeeklyStatsReader
	calendar  season.Calendar
	logger    *logging.Logger
	validator *validator.Validate
	now       func() time.Time
}

func NewHandler(
	syncer WeeklyStatsSyncer,
	scheduler SyncTickScheduler,
	stats WeeklyStatsReader,
	calendar season.Calendar,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if calendar.Validate() != nil {
		calendar = season.DefaultCalendar()
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		syncer:    syncer,
		scheduler: scheduler,
		stats:     stats,
		calendar:  calendar,
		logger:    logger,
		validator: validate,
		now:       time.Now,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	err := h.validator.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problem := fe.Field() + " " + fe.Tag()
		if fe.Param() != "" {
			problem += "=" + fe.Param()
		}
		problems = append(problems, problem)
	}
	return fmt.Errorf("%w: %s", usecase.ErrInvalidInput, strings.Join(problems, ", "))
}
