// Package ratelimit throttles API traffic with sliding-window counters keyed
// by client IP or authenticated user. The memory store suits one instance; the
// Redis store is shared across replicas.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "instantverify/pkg/domain-errors"
	"instantverify/pkg/platform/httputil"
	"instantverify/pkg/requestcontext"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait, rounded up to whole seconds.
func (r *Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	return int((d + time.Second - 1) / time.Second)
}

// Store counts events per key within a trailing window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Limit is a budget of Requests per Window. A zero Requests disables it.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Middleware applies per-IP and per-user limits.
type Middleware struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, logger *slog.Logger) *Middleware {
	return &Middleware{store: store, logger: logger, now: time.Now}
}

// PerIP limits every request by client IP.
func (m *Middleware) PerIP(limit Limit) func(http.Handler) http.Handler {
	return m.limit("ip", limit, func(r *http.Request) string {
		return requestcontext.ClientIP(r.Context())
	})
}

// PerUser limits authenticated requests by user. It must run after RequireAuth.
func (m *Middleware) PerUser(limit Limit) func(http.Handler) http.Handler {
	return m.limit("user", limit, func(r *http.Request) string {
		userID := requestcontext.UserID(r.Context())
		if userID.IsNil() {
			return ""
		}
		return userID.String()
	})
}

func (m *Middleware) limit(scope string, limit Limit, keyOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil || limit.Requests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			result, err := m.store.Allow(ctx, scope+":"+key, limit.Requests, limit.Window)
			if err != nil {
				// Fail open on store errors.
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"request_id", requestcontext.RequestID(ctx),
					"scope", scope,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"scope", scope,
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(m.now())))
				httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "Too many requests. Please try again later."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
