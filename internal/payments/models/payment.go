package models

import (
	"strings"
	"time"

	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
)

type Status string

const (
	StatusCreated Status = "created"
	StatusPaid    Status = "paid"
)

// Payment buys exactly one verification credit.
type Payment struct {
	ID               id.PaymentID `json:"id"`
	UserID           id.UserID    `json:"userId"`
	Receipt          string       `json:"receipt"`
	AmountPaise      int64        `json:"amountPaise"`
	Currency         string       `json:"currency"`
	Status           Status       `json:"status"`
	GatewayOrderID   string       `json:"gatewayOrderId"`
	GatewayPaymentID string       `json:"gatewayPaymentId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	PaidAt           *time.Time   `json:"paidAt,omitempty"`
}

func (p *Payment) IsPaid() bool {
	return p.Status == StatusPaid
}

// ConfirmPaymentRequest carries what the checkout widget hands back.
type ConfirmPaymentRequest struct {
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

func (r *ConfirmPaymentRequest) Validate() error {
	r.GatewayPaymentID = strings.TrimSpace(r.GatewayPaymentID)
	r.Signature = strings.TrimSpace(r.Signature)
	if r.GatewayPaymentID == "" {
		return dErrors.New(dErrors.CodeValidation, "gatewayPaymentId is required")
	}
	if r.Signature == "" {
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	}
	return nil
}
