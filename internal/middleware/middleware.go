// Package middleware provides HTTP middleware shared by the API.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/JakeFAU/storylint/internal/cors"
	"github.com/JakeFAU/storylint/internal/metrics"
	"github.com/JakeFAU/storylint/internal/policy/ratelimit"
)

// AMPCORS answers AMP CORS requests. A request that accepts JSON and carries
// __amp_source_origin is granted either its Origin header or, for
// same-origin requests (AMP-Same-Origin: true), serverOrigin. Other requests
// pass through untouched.
func AMPCORS(serverOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sourceOrigin := r.URL.Query().Get(cors.SourceOriginParam)
			if !acceptsJSON(r) || sourceOrigin == "" {
				next.ServeHTTP(w, r)
				return
			}
			var origin string
			switch {
			case r.Header.Get("Origin") != "":
				origin = r.Header.Get("Origin")
			case r.Header.Get("AMP-Same-Origin") == "true":
				origin = serverOrigin
			default:
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", "AMP-Access-Control-Allow-Source-Origin")
			h.Set("AMP-Access-Control-Allow-Source-Origin", sourceOrigin)
			next.ServeHTTP(w, r)
		})
	}
}

func acceptsJSON(r *http.Request) bool {
	accept := strings.ToLower(r.Header.Get("Accept"))
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "json") ||
		strings.Contains(accept, "*/*") ||
		strings.Contains(accept, "application/*")
}

// RateLimit rejects requests with 429 once the caller's bucket is empty.
// Callers are keyed by remote host.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientKey(r)) {
				metrics.ObserveRateLimited()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller by the host part of RemoteAddr.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
