// Package ratelimit provides per-caller request rate limiting for the API.
//
// Limits use a sliding window over request timestamps rather than fixed
// buckets so a burst straddling a window boundary cannot double the allowed
// rate. The store is in-memory and per-process.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	dErrors "fracmarket/pkg/domain-errors"
	"fracmarket/pkg/platform/httputil"
	"fracmarket/pkg/requestcontext"
)

// SlidingWindow tracks request timestamps per key and admits a request only
// while fewer than limit requests landed inside the trailing window.
type SlidingWindow struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	entries map[string][]time.Time
}

// Result reports the admission decision and the state behind it.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// NewSlidingWindow builds a limiter admitting limit requests per window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		window:  window,
		limit:   limit,
		entries: make(map[string][]time.Time),
	}
}

// Allow records a request against key and reports whether it is admitted.
func (s *SlidingWindow) Allow(key string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stamps := trim(s.entries[key], now.Add(-s.window))

	if len(stamps) >= s.limit {
		s.entries[key] = stamps
		return Result{Allowed: false, Remaining: 0, ResetAt: stamps[0].Add(s.window)}
	}

	stamps = append(stamps, now)
	s.entries[key] = stamps
	return Result{
		Allowed:   true,
		Remaining: s.limit - len(stamps),
		ResetAt:   stamps[0].Add(s.window),
	}
}

// Reset clears the counter for a key.
func (s *SlidingWindow) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// trim drops timestamps at or before cutoff. Timestamps are appended in
// order, so the survivors are a suffix.
func trim(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}

// Middleware limits requests per caller account, falling back to the remote
// address for unauthenticated requests. Standard X-RateLimit headers are set
// on every response; rejected requests get 429 with Retry-After.
func Middleware(limiter *SlidingWindow, limit int, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestcontext.Caller(r.Context()).String()
			if key == "" {
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					key = host
				} else {
					key = r.RemoteAddr
				}
			}

			result := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := max(time.Until(result.ResetAt), time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				logger.WarnContext(r.Context(), "request rate limited",
					"request_id", requestcontext.RequestID(r.Context()),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "request rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
