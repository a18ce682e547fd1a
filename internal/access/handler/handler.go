package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"instantverify/internal/access/models"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	"instantverify/pkg/platform/httputil"
	"instantverify/pkg/requestcontext"
)

// Service defines the interface for access grant operations.
type Service interface {
	ListActive(ctx context.Context, granteeID id.UserID) ([]*models.AccessGrant, error)
}

// Handler handles access-grant endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the authenticated access routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/user/access", h.HandleListAccess)
}

// HandleListAccess returns the grants other users have given the caller.
func (h *Handler) HandleListAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	if userID.IsNil() {
		h.logger.WarnContext(ctx, "access list requested without session",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
		return
	}

	grants, err := h.service.ListActive(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to fetch access grants",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "Failed to fetch access grants"))
		return
	}

	if grants == nil {
		grants = []*models.AccessGrant{}
	}
	httputil.WriteJSON(w, http.StatusOK, grants)
}
