package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"instantverify/internal/verification/models"
	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	"instantverify/pkg/platform/httputil"
	"instantverify/pkg/requestcontext"
)

// HeaderIdempotencyKey lets clients retry a submission without paying twice.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// Service defines the interface for verification operations.
type Service interface {
	Submit(ctx context.Context, userID id.UserID, idempotencyKey string, req models.CreateVerificationRequest) (*models.Verification, error)
	Get(ctx context.Context, userID id.UserID, verificationID id.VerificationID) (*models.Verification, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the authenticated verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/verify", h.HandleSubmit)
	r.Get("/api/verify/{id}", h.HandleGet)
}

// RegisterPublic registers the catalogue route, which needs no session.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/api/verification-types", h.HandleTypes)
}

// HandleSubmit accepts a verification request and answers 201 with its id.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLength {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key is too long"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CreateVerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	v, err := h.service.Submit(ctx, userID, key, *req)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to submit verification",
				"request_id", requestID,
				"user_id", userID.String(),
				"error", err,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "Failed to submit verification request"))
			return
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.SubmitResponse{
		VerificationID: v.ID,
		Status:         v.Status,
	})
}

// HandleGet returns a verification report to its owner. Images are never included.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
		return
	}

	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid verification id"))
		return
	}

	v, err := h.service.Get(ctx, userID, verificationID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to fetch verification",
			"request_id", requestID,
			"verification_id", verificationID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

type tierResponse struct {
	Value   id.Tier     `json:"value"`
	Methods []id.Method `json:"methods"`
}

// TypesResponse is the catalogue the verification form is built from.
type TypesResponse struct {
	DefaultTier id.Tier            `json:"defaultTier"`
	Tiers       []tierResponse     `json:"tiers"`
	Purposes    []id.PurposeOption `json:"purposes"`
}

func (h *Handler) HandleTypes(w http.ResponseWriter, _ *http.Request) {
	resp := TypesResponse{
		DefaultTier: id.DefaultTier,
		Purposes:    id.Purposes,
	}
	for _, t := range id.Tiers {
		resp.Tiers = append(resp.Tiers, tierResponse{Value: t, Methods: id.MethodsForTier(t)})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
