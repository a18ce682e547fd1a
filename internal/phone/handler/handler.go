package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	"instantverify/pkg/platform/httputil"
	"instantverify/pkg/requestcontext"
)

// Service defines the interface for phone OTP operations.
type Service interface {
	SendOTP(ctx context.Context, userID id.UserID, phone string) error
	VerifyOTP(ctx context.Context, userID id.UserID, phone, code string) error
}

const (
	messageOTPSent       = "OTP sent successfully"
	messagePhoneVerified = "Phone number verified successfully"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the authenticated phone verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/phone/verify", h.HandleSendOTP)
	r.Post("/api/phone/verify-otp", h.HandleVerifyOTP)
}

type SendOTPRequest struct {
	Phone string `json:"phone"`
}

func (r *SendOTPRequest) Validate() error {
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	return nil
}

type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

func (r *VerifyOTPRequest) Validate() error {
	r.Phone = strings.TrimSpace(r.Phone)
	r.OTP = strings.TrimSpace(r.OTP)
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	if r.OTP == "" {
		return dErrors.New(dErrors.CodeValidation, "Invalid OTP")
	}
	return nil
}

type VerifyOTPResponse struct {
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
}

func (h *Handler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[SendOTPRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SendOTP(ctx, userID, req.Phone); err != nil {
		h.logger.WarnContext(ctx, "failed to send otp",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, messageOTPSent)
}

func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[VerifyOTPRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.VerifyOTP(ctx, userID, req.Phone, req.OTP); err != nil {
		h.logger.WarnContext(ctx, "otp verification failed",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyOTPResponse{
		Message:  messagePhoneVerified,
		Verified: true,
	})
}
