package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instantverify/internal/providers"
)

func TestHTTPSender(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "key", time.Second)
	require.NoError(t, s.Send(context.Background(), "+919876543210", "code 123456"))
	assert.Equal(t, "+919876543210", got.To)
	assert.Equal(t, "code 123456", got.Message)
}

func TestHTTPSender_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewHTTPSender(srv.URL, "key", time.Second).Send(context.Background(), "+919876543210", "x")
	assert.Equal(t, providers.ErrorRateLimited, providers.GetCategory(err))
}

func TestMockSender(t *testing.T) {
	m := NewMockSender(nil)
	require.NoError(t, m.Send(context.Background(), "+911111111111", "first"))
	require.NoError(t, m.Send(context.Background(), "+919999999999", "other"))
	require.NoError(t, m.Send(context.Background(), "+911111111111", "second"))

	last, ok := m.Last("+911111111111")
	require.True(t, ok)
	assert.Equal(t, "second", last.Body)
	assert.Len(t, m.Messages(), 3)

	_, ok = m.Last("+910000000000")
	assert.False(t, ok)
}
