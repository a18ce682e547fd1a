package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "instantverify/pkg/domain"
	"instantverify/pkg/requestcontext"
	"instantverify/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis: connection refused")
}

func newMiddleware(store Store) *Middleware {
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	return req.WithContext(context.WithValue(req.Context(), requestcontext.ContextKeyClientIP, ip))
}

func TestPerIP(t *testing.T) {
	h := newMiddleware(NewInMemoryStore()).PerIP(Limit{Requests: 2, Window: time.Minute})(noContent)

	for range 2 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, requestFrom("203.0.113.7"))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too_many_requests","message":"Too many requests. Please try again later."}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("198.51.100.1"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestPerUser(t *testing.T) {
	h := newMiddleware(NewInMemoryStore()).PerUser(Limit{Requests: 1, Window: time.Minute})(noContent)
	userID := id.NewUserID()
	asUser := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/verify", nil)
		return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, asUser())
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, asUser())
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/verify", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code, "anonymous requests are not keyed")
}

func TestMiddleware_FailsOpen(t *testing.T) {
	h := newMiddleware(failingStore{}).PerIP(Limit{Requests: 1, Window: time.Minute})(noContent)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("203.0.113.7"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMiddleware_Disabled(t *testing.T) {
	var nilMiddleware *Middleware
	h := nilMiddleware.PerIP(Limit{Requests: 1, Window: time.Minute})(noContent)
	h2 := newMiddleware(failingStore{}).PerUser(Limit{})(noContent)

	for _, handler := range []http.Handler{h, h2} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, requestFrom("203.0.113.7"))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
}

func TestPerIP_WindowRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newMiddleware(NewInMemoryStore(WithClock(clock.Now)))
	m.now = clock.Now
	h := m.PerIP(Limit{Requests: 1, Window: time.Minute})(noContent)

	testutil.Given(t, "a client that spent its budget", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, requestFrom("203.0.113.7"))
		assert.Equal(t, http.StatusNoContent, rr.Code)

		testutil.When(t, "it retries within the window", func(t *testing.T) {
			clock.Advance(15 * time.Second)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, requestFrom("203.0.113.7"))

			testutil.Then(t, "it is told how long to wait", func(t *testing.T) {
				assert.Equal(t, http.StatusTooManyRequests, rr.Code)
				assert.Equal(t, "45", rr.Header().Get("Retry-After"))
			})
		})

		testutil.When(t, "the window has passed", func(t *testing.T) {
			clock.Advance(45 * time.Second)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, requestFrom("203.0.113.7"))

			testutil.Then(t, "the request goes through", func(t *testing.T) {
				assert.Equal(t, http.StatusNoContent, rr.Code)
			})
		})
	})
}
