package httpapi

import (
	"net/http"
	"strings"
)

// corsPolicy only needs to cover the read-only stats route, so it allows
// GET and preflight and nothing else.
type corsPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newCORSPolicy(allowedOrigins []string) corsPolicy {
	policy := corsPolicy{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		switch candidate := strings.TrimSpace(origin); candidate {
		case "":
		case "*":
			policy.any = true
		default:
			policy.origins[candidate] = struct{}{}
		}
	}
	return policy
}

func (p corsPolicy) apply(h http.Header, origin string) {
	if p.any {
		h.Set("Access-Control-Allow-Origin", "*")
	} else if _, ok := p.origins[origin]; ok {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	} else {
		return
	}
	h.Set("Access-Control-Allow-Methods", "GET,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type,Accept")
	h.Set("Access-Control-Max-Age", "600")
}

func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		policy.apply(w.Header(), origin)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
