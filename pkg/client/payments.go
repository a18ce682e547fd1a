package client

import (
	"context"
	"net/http"
	"net/url"
)

// Payment is a checkout order for one credit.
type Payment struct {
	ID             string `json:"id"`
	Receipt        string `json:"receipt"`
	AmountPaise    int64  `json:"amountPaise"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	GatewayOrderID string `json:"gatewayOrderId"`
}

// ConfirmPaymentRequest carries what the gateway checkout returned.
type ConfirmPaymentRequest struct {
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

// PaymentFunc runs the checkout for one credit, typically by opening the
// gateway widget and calling ConfirmPayment with its result. A nil error
// means the credit was added.
type PaymentFunc func(ctx context.Context) error

// CreatePayment opens a gateway order for the current price.
func (c *Client) CreatePayment(ctx context.Context) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/api/payments", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ConfirmPayment settles an order and returns the new credit balance.
func (c *Client) ConfirmPayment(ctx context.Context, paymentID string, req ConfirmPaymentRequest) (int, error) {
	var out struct {
		Credits int `json:"credits"`
	}
	path := "/api/payments/" + url.PathEscape(paymentID) + "/confirm"
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return 0, err
	}
	return out.Credits, nil
}
