package testutil

import (
	"context"
	"net/http"
	"time"

	id "instantverify/pkg/domain"
	"instantverify/pkg/requestcontext"
)

// WithUserID simulates what the auth middleware does for authenticated requests.
// Invalid IDs are silently ignored so tests can exercise the unauthenticated path.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), key, value))
}
