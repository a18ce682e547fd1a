package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	accessmodels "instantverify/internal/access/models"
	usermodels "instantverify/internal/users/models"
	"instantverify/pkg/platform/httputil"
	"instantverify/pkg/requestcontext"
)

// AdminService defines the operator operations.
type AdminService interface {
	CreateUser(ctx context.Context, req usermodels.CreateUserRequest) (*usermodels.User, error)
	GrantAccess(ctx context.Context, req accessmodels.CreateGrantRequest) (*accessmodels.AccessGrant, error)
	AddCredits(ctx context.Context, req AddCreditsRequest) (*CreditsResponse, error)
}

type Handler struct {
	service AdminService
	logger  *slog.Logger
}

func New(service AdminService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers operator routes. The caller wraps r in RequireAdminToken.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/users", h.HandleCreateUser)
	r.Post("/admin/access-grants", h.HandleGrantAccess)
	r.Post("/admin/credits", h.HandleAddCredits)
}

func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[usermodels.CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.CreateUser(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create user", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) HandleGrantAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[accessmodels.CreateGrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	grant, err := h.service.GrantAccess(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to grant access", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Handler) HandleAddCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AddCreditsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	resp, err := h.service.AddCredits(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to add credits", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
