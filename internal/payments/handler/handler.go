package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"instantverify/internal/payments/models"
	"instantverify/internal/payments/service"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	"instantverify/pkg/platform/httputil"
	"instantverify/pkg/requestcontext"
)

// Service defines the interface for payment operations.
type Service interface {
	CreateOrder(ctx context.Context, userID id.UserID) (*models.Payment, error)
	Confirm(ctx context.Context, userID id.UserID, paymentID id.PaymentID, req models.ConfirmPaymentRequest) (*service.ConfirmResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the authenticated payment routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/payments", h.HandleCreate)
	r.Post("/api/payments/{id}/confirm", h.HandleConfirm)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
		return
	}

	p, err := h.service.CreateOrder(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create payment",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
		return
	}

	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid payment id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.ConfirmPaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Confirm(ctx, userID, paymentID, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "payment confirmation failed",
			"request_id", requestID,
			"payment_id", paymentID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
