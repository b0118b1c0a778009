package jobscheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/season"
)

var ErrInvalidEvent = errors.New("invalid dispatch event")

type DispatchStatus string

const (
	StatusSent      DispatchStatus = "sent"
	StatusCompleted DispatchStatus = "completed"
	StatusFailed    DispatchStatus = "failed"
)

func (s DispatchStatus) Valid() bool {
	switch s {
	case StatusSent, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further event is expected for the dispatch.
func (s DispatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DispatchEvent is one status change of a scheduled sync tick. Events
// sharing a DispatchID describe the same tick.
type DispatchEvent struct {
	DispatchID   string
	JobName      string
	JobPath      string
	Window       season.Window
	Status       DispatchStatus
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}

// WindowKey is empty when the run failed before a window was resolved.
func (e DispatchEvent) WindowKey() string {
	if e.Window.Quarter == 0 {
		return ""
	}
	return e.Window.String()
}

func (e DispatchEvent) Validate() error {
	if strings.TrimSpace(e.DispatchID) == "" {
		return fmt.Errorf("%w: dispatch id is required", ErrInvalidEvent)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidEvent, e.Status)
	}
	return nil
}
