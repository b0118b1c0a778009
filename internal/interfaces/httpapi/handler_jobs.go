package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

func (h *Handler) RunSyncWeeklyStatsJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSyncWeeklyStatsJob")
	defer span.End()

	if h.syncer == nil {
		writeError(ctx, w, fmt.Errorf("%w: weekly stats syncer is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeSyncWeeklyStatsRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := applySyncQueryOverrides(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result := h.syncer.Run(ctx, req.toInput())

	if h.scheduler != nil {
		if _, err := h.scheduler.AfterRun(ctx, req.DispatchID, result); err != nil {
			h.logger.WarnContext(ctx, "schedule next sync tick failed", "dispatch_id", req.DispatchID, "error", err)
		}
	}

	if result.Success {
		writeSuccess(ctx, w, http.StatusOK, syncResultToDTO(result))
		return
	}

	cause := result.Cause()
	if cause == nil {
		cause = fmt.Errorf("%w: %s", usecase.ErrUpstream, result.Error)
	}
	if !errors.Is(cause, usecase.ErrInvalidInput) {
		// Every failure of the run itself is reported as an upstream failure.
		cause = fmt.Errorf("%w: %v", usecase.ErrUpstream, cause)
	}
	h.logger.WarnContext(ctx, "sync weekly stats job failed",
		"dispatch_id", req.DispatchID,
		"window", result.Window.String(),
		"force", req.Force,
		"error", result.Error,
	)
	writeErrorWithData(ctx, w, cause, syncResultToDTO(result))
}

func (h *Handler) RunBootstrapJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunBootstrapJob")
	defer span.End()

	if h.scheduler == nil {
		writeError(ctx, w, fmt.Errorf("%w: sync scheduler is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	tick, err := h.scheduler.Bootstrap(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "run bootstrap job failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scheduledTickToDTO(tick))
}

func decodeSyncWeeklyStatsRequest(r *http.Request) (syncWeeklyStatsRequest, error) {
	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req syncWeeklyStatsRequest
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return syncWeeklyStatsRequest{}, nil
		}
		return syncWeeklyStatsRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}

// applySyncQueryOverrides lets query parameters win over the JSON body.
func applySyncQueryOverrides(r *http.Request, req *syncWeeklyStatsRequest) error {
	query := r.URL.Query()

	for key, target := range map[string]**int{
		"season_year":    &req.SeasonYear,
		"season_quarter": &req.SeasonQuarter,
		"race_week":      &req.RaceWeek,
	} {
		value, err := queryInt(query, key)
		if err != nil {
			return err
		}
		if value != nil {
			*target = value
		}
	}

	eventTypes, err := queryIntList[int](query, "event_types")
	if err != nil {
		return err
	}
	if len(eventTypes) > 0 {
		req.EventTypes = eventTypes
	}

	seriesIDs, err := queryIntList[int64](query, "series_ids")
	if err != nil {
		return err
	}
	if len(seriesIDs) > 0 {
		req.SeriesIDs = seriesIDs
	}

	force, present, err := queryBool(query, "force")
	if err != nil {
		return err
	}
	if present {
		req.Force = force
	}

	if dispatchID := query.Get("dispatch_id"); dispatchID != "" {
		req.DispatchID = dispatchID
	}
	return nil
}
