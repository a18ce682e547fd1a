// Package payment adapts the card/UPI payment gateway used to buy verification credits.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"instantverify/internal/providers"
)

const CurrencyINR = "INR"

type OrderRequest struct {
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

type Order struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

// Gateway creates orders and checks that a completed payment really belongs to one.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	VerifyPayment(orderID, paymentID, signature string) error
}

// Sign computes the checkout signature the gateway hands back to the browser:
// hex(HMAC-SHA256(orderID + "|" + paymentID, secret)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(providerID, secret, orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return providers.NewProviderError(providers.ErrorBadData, providerID, "missing payment confirmation fields", nil)
	}
	expected := Sign(secret, orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return providers.NewProviderError(providers.ErrorAuthentication, providerID, "payment signature mismatch", nil)
	}
	return nil
}

// HTTPGateway calls POST {base}/v1/orders with basic auth.
type HTTPGateway struct {
	client *providers.Client
	secret string
}

func NewHTTPGateway(baseURL, keyID, secret string, timeout time.Duration, opts ...providers.ClientOption) *HTTPGateway {
	opts = append([]providers.ClientOption{providers.WithBasicAuth(keyID, secret)}, opts...)
	return &HTTPGateway{
		client: providers.NewClient("payment", baseURL, timeout, opts...),
		secret: secret,
	}
}

func (g *HTTPGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var order Order
	if err := g.client.DoJSON(ctx, http.MethodPost, "/v1/orders", req, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, providers.NewProviderError(providers.ErrorBadData, g.client.ProviderID(), "order id missing", nil)
	}
	return &order, nil
}

func (g *HTTPGateway) VerifyPayment(orderID, paymentID, signature string) error {
	return verifySignature(g.client.ProviderID(), g.secret, orderID, paymentID, signature)
}

// MockGateway issues orders locally and verifies signatures with the same scheme,
// so tests can produce valid confirmations with Sign.
type MockGateway struct {
	secret string
	mu     sync.Mutex
	orders map[string]Order
}

func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{secret: secret, orders: make(map[string]Order)}
}

func (g *MockGateway) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	order := Order{
		ID:          "order_" + ksuid.New().String(),
		AmountPaise: req.AmountPaise,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
	}
	g.mu.Lock()
	g.orders[order.ID] = order
	g.mu.Unlock()
	return &order, nil
}

func (g *MockGateway) VerifyPayment(orderID, paymentID, signature string) error {
	g.mu.Lock()
	_, known := g.orders[orderID]
	g.mu.Unlock()
	if !known {
		return providers.NewProviderError(providers.ErrorNotFound, "mock-payment", "unknown order "+orderID, nil)
	}
	return verifySignature("mock-payment", g.secret, orderID, paymentID, signature)
}
