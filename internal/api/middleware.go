package api

import (
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitMiddleware applies a global token-bucket limit to the API.
// Requests over the limit get 429 instead of queueing.
func rateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
