package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"instantverify/internal/access/handler/mocks"
	"instantverify/internal/access/models"
	id "instantverify/pkg/domain"
	"instantverify/pkg/testutil"
)

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandleListAccess(t *testing.T) {
	userID := id.NewUserID()
	ownerID := id.NewUserID()
	expires := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("returns active grants with owner details", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().ListActive(gomock.Any(), userID).Return([]*models.AccessGrant{{
			ID:          id.NewGrantID(),
			GrantedToID: userID,
			UserID:      ownerID,
			ExpiresAt:   expires,
			User:        models.GrantOwner{FirstName: "Ravi", LastName: "Kumar", Email: "ravi@example.com"},
		}}, nil)

		req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/api/user/access"), userID.String())
		rr := testutil.DoRequest(newRouter(svc), req)

		testutil.AssertStatusOK(t, rr)
		var body []map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, userID.String(), body[0]["grantedToId"])
		assert.Equal(t, ownerID.String(), body[0]["userId"])
		assert.Equal(t, "2026-05-01T00:00:00Z", body[0]["expiresAt"])
		assert.Equal(t, map[string]any{"firstName": "Ravi", "lastName": "Kumar", "email": "ravi@example.com"}, body[0]["user"])
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().ListActive(gomock.Any(), userID).Return([]*models.AccessGrant{}, nil)

		req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/api/user/access"), userID.String())
		rr := testutil.DoRequest(newRouter(svc), req)

		testutil.AssertStatusOK(t, rr)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("no session is 401", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)

		rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/api/user/access"))

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		assert.JSONEq(t, `{"error":"unauthorized","message":"Unauthorized"}`, rr.Body.String())
	})

	t.Run("storage failure is 500 with generic message", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().ListActive(gomock.Any(), userID).Return(nil, errors.New("connection refused"))

		req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/api/user/access"), userID.String())
		rr := testutil.DoRequest(newRouter(svc), req)

		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
		assert.JSONEq(t, `{"error":"internal_error","message":"Failed to fetch access grants"}`, rr.Body.String())
	})
}
