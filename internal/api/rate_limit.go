package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/boothflow/internal/ratelimit"
)

type RateLimiter interface {
	Take(ctx context.Context, subject string, cost int64) (ratelimit.Decision, error)
}

// withRateLimit throttles processing requests per visitor session, charging
// cost tokens per request. A failing limiter lets the request through.
func (s *Server) withRateLimit(cost int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.rateLimiter == nil {
			return next
		}
		return s.limit(next, cost)
	}
}

func (s *Server) limit(next http.Handler, cost int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := sessionFrom(r.Context())
		if subject == "" {
			subject = "anonymous"
		}
		subject = subject + ":" + r.URL.Path

		decision, err := s.rateLimiter.Take(r.Context(), subject, cost)
		if err != nil {
			s.logger.Warn("rate limiter check failed", "subject", subject, "err", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.metrics.rateLimitRejected.WithLabelValues(r.URL.Path).Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "rate limit exceeded",
		})
	})
}
