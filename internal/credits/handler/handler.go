package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	"instantverify/pkg/platform/httputil"
	"instantverify/pkg/pricing"
	"instantverify/pkg/requestcontext"
)

// Service defines the interface for credit operations.
type Service interface {
	Balance(ctx context.Context, userID id.UserID) (int, error)
	Quote() pricing.Quote
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the authenticated credit routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/credits", h.HandleBalance)
}

// RegisterPublic registers routes that need no session.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/api/pricing", h.HandlePricing)
}

type BalanceResponse struct {
	Credits int `json:"credits"`
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
		return
	}

	balance, err := h.service.Balance(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to fetch credits",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Credits: balance})
}

func (h *Handler) HandlePricing(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Quote())
}
