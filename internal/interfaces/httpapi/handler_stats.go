package httpapi

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

// ListSeriesStats serves the cached weekly rows, defaulting to the current race week.
func (h *Handler) ListSeriesStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSeriesStats")
	defer span.End()

	if h.stats == nil {
		writeError(ctx, w, fmt.Errorf("%w: weekly stats reader is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	window := h.calendar.CurrentWindow(h.now())
	query := r.URL.Query()

	year, err := queryInt(query, "season_year")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	quarter, err := queryInt(query, "season_quarter")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	week, err := queryInt(query, "race_week")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if year != nil {
		window.Year = *year
	}
	if quarter != nil {
		if *quarter < 1 || *quarter > 4 {
			writeError(ctx, w, fmt.Errorf("%w: season_quarter must be 1..4", usecase.ErrInvalidInput))
			return
		}
		window.Quarter = *quarter
	}
	if week != nil {
		if *week < 0 || *week > h.calendar.MaxRaceWeek {
			writeError(ctx, w, fmt.Errorf("%w: race_week must be 0..%d", usecase.ErrInvalidInput, h.calendar.MaxRaceWeek))
			return
		}
		window.RaceWeek = *week
	}

	stats, err := h.stats.List(ctx, window)
	if err != nil {
		h.logger.WarnContext(ctx, "list series stats failed", "window", window.String(), "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]seriesWeeklyStatDTO, 0, len(stats))
	for _, stat := range stats {
		items = append(items, seriesWeeklyStatToDTO(stat))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}
