package httpapi

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

const internalJobTokenHeader = "X-Internal-Job-Token"

// RequireInternalJobToken guards the job routes. QStash forwards the token
// in the same header a manual caller would use. An unset token disables the
// routes rather than leaving them open.
func RequireInternalJobToken(token string, next http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(token))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.RequireInternalJobToken")
		defer span.End()

		if len(expected) == 0 {
			writeError(ctx, w, fmt.Errorf("%w: internal job token is not configured", usecase.ErrDependencyUnavailable))
			return
		}
		if !internalTokenMatches(r, expected) {
			writeError(ctx, w, fmt.Errorf("%w: invalid internal job token", usecase.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func internalTokenMatches(r *http.Request, expected []byte) bool {
	provided := strings.TrimSpace(r.Header.Get(internalJobTokenHeader))
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), expected) == 1
}
