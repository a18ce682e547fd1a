package verification

import (
	"context"
	"net/http"
	"time"

	"instantverify/internal/providers"
)

type verifyResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
	CheckedAt string `json:"checked_at"`
}

// HTTPProvider calls POST {base}/v1/verifications.
type HTTPProvider struct {
	client *providers.Client
}

func NewHTTPProvider(id, baseURL, apiKey string, timeout time.Duration, opts ...providers.ClientOption) *HTTPProvider {
	opts = append([]providers.ClientOption{providers.WithBearerKey(apiKey)}, opts...)
	return &HTTPProvider{client: providers.NewClient(id, baseURL, timeout, opts...)}
}

func (p *HTTPProvider) ID() string {
	return p.client.ProviderID()
}

func (p *HTTPProvider) Verify(ctx context.Context, req Request) (*Result, error) {
	var resp verifyResponse
	if err := p.client.DoJSON(ctx, http.MethodPost, "/v1/verifications", req, &resp); err != nil {
		return nil, err
	}
	return parseVerifyResponse(p.ID(), resp)
}

func parseVerifyResponse(providerID string, resp verifyResponse) (*Result, error) {
	status := Status(resp.Status)
	if !status.IsValid() {
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, "unknown status "+resp.Status, nil)
	}
	if resp.Reference == "" {
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, "missing reference", nil)
	}
	checkedAt, err := time.Parse(time.RFC3339, resp.CheckedAt)
	if err != nil {
		checkedAt = time.Now().UTC()
	}
	return &Result{
		Status:    status,
		Reference: resp.Reference,
		Reason:    resp.Reason,
		CheckedAt: checkedAt,
	}, nil
}
