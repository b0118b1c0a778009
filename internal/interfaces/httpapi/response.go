package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

const (
	googleAPIVersion  = "2.0"
	errorDomain       = "raceweek-stats"
	// The upstream rate window resets per minute.
	retryAfterSeconds = "60"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
}

var (
	internalMapped = mappedError{HTTPStatus: http.StatusInternalServerError, Reason: "internalError", Status: "INTERNAL"}
	upstreamMapped = mappedError{HTTPStatus: http.StatusBadGateway, Reason: "upstreamError", Status: "UNAVAILABLE"}
)

// errorRules is checked in order and the first match wins. Credential errors
// may carry an upstream cause, so they are matched before ErrUpstream.
var errorRules = []struct {
	match  func(error) bool
	mapped mappedError
}{
	{is(usecase.ErrInvalidInput), mappedError{HTTPStatus: http.StatusBadRequest, Reason: "invalidInput", Status: "INVALID_ARGUMENT"}},
	{is(usecase.ErrNotFound), mappedError{HTTPStatus: http.StatusNotFound, Reason: "notFound", Status: "NOT_FOUND"}},
	{is(usecase.ErrRateLimited), mappedError{HTTPStatus: http.StatusTooManyRequests, Reason: "rateLimitExceeded", Status: "RESOURCE_EXHAUSTED"}},
	{is(usecase.ErrUnauthorized), mappedError{HTTPStatus: http.StatusUnauthorized, Reason: "unauthorized", Status: "UNAUTHENTICATED"}},
	// The service's own upstream credential is broken; the caller did nothing wrong.
	{usecase.IsCredentialError, mappedError{HTTPStatus: http.StatusBadGateway, Reason: "upstreamCredential", Status: "UNAVAILABLE"}},
	{is(usecase.ErrDependencyUnavailable), mappedError{HTTPStatus: http.StatusServiceUnavailable, Reason: "dependencyUnavailable", Status: "UNAVAILABLE"}},
	{is(usecase.ErrEmptyManifest), upstreamMapped},
	{is(usecase.ErrPartialChunkFailure), upstreamMapped},
	{is(usecase.ErrSchemaMismatch), upstreamMapped},
	{is(usecase.ErrUpstream), upstreamMapped},
	{is(usecase.ErrCacheWriteFailure), mappedError{HTTPStatus: http.StatusInternalServerError, Reason: "cacheWriteFailure", Status: "INTERNAL"}},
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func mapError(err error) mappedError {
	for _, rule := range errorRules {
		if rule.match(err) {
			return rule.mapped
		}
	}
	return internalMapped
}

func newErrorEnvelope(mapped mappedError, message string, data any) googleResponseEnvelope {
	return googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: message,
			Status:  mapped.Status,
			Errors:  []googleErrorItem{{Domain: errorDomain, Reason: mapped.Reason, Message: message}},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(_ context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	writeErrorWithData(ctx, w, err, nil)
}

// writeErrorWithData keeps data next to the error body, so callers such as the
// sync job still see the run summary on failure.
func writeErrorWithData(ctx context.Context, w http.ResponseWriter, err error, data any) {
	mapped := mapError(err)
	markSpanError(ctx, err, mapped)
	if mapped.HTTPStatus == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, mapped.HTTPStatus, newErrorEnvelope(mapped, err.Error(), data))
}

// writeInternalError hides the cause; it is used after a recovered panic.
func writeInternalError(_ context.Context, w http.ResponseWriter) {
	writeJSON(w, internalMapped.HTTPStatus, newErrorEnvelope(internalMapped, "internal server error", nil))
}
