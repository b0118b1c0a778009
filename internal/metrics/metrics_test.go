package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBreakerStateValue(t *testing.T) {
	cases := map[string]float64{"closed": 0, "half_open": 1, "open": 2, "": 0}
	for state, want := range cases {
		if got := BreakerStateValue(state); got != want {
			t.Fatalf("state %q: expected %v, got %v", state, want, got)
		}
	}
}

func TestTokenRefreshCounter(t *testing.T) {
	before := testutil.ToFloat64(TokenRefreshTotal.WithLabelValues(ResultSkipped))
	TokenRefreshTotal.WithLabelValues(ResultSkipped).Inc()
	if got := testutil.ToFloat64(TokenRefreshTotal.WithLabelValues(ResultSkipped)); got != before+1 {
		t.Fatalf("expected counter to advance by one, got %v -> %v", before, got)
	}
}
