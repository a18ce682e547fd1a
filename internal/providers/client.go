// Package providers holds the shared plumbing for outbound calls to the
// verification, SMS and payment vendors: a JSON-over-HTTP client that
// normalizes failures into ProviderError and traces every call.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "instantverify/providers"
	maxResponseBody = 1 << 20
)

// Observer receives call timings and failures. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveProviderLatency(provider string, d time.Duration)
	IncrementProviderError(provider, category string)
}

type noopObserver struct{}

func (noopObserver) ObserveProviderLatency(string, time.Duration) {}
func (noopObserver) IncrementProviderError(string, string)        {}

// Client performs authenticated JSON requests against one provider.
type Client struct {
	providerID string
	baseURL    string
	http       *http.Client
	authorize  func(*http.Request)
	tracer     trace.Tracer
	observer   Observer
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client (used by tests with httptest servers).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

func WithObserver(o Observer) ClientOption {
	return func(cl *Client) {
		if o != nil {
			cl.observer = o
		}
	}
}

// WithBearerKey sends the API key as a bearer token.
func WithBearerKey(key string) ClientOption {
	return func(cl *Client) {
		cl.authorize = func(r *http.Request) {
			if key != "" {
				r.Header.Set("Authorization", "Bearer "+key)
			}
		}
	}
}

// WithBasicAuth sends key ID and secret as HTTP basic auth, as payment gateways expect.
func WithBasicAuth(keyID, secret string) ClientOption {
	return func(cl *Client) {
		cl.authorize = func(r *http.Request) { r.SetBasicAuth(keyID, secret) }
	}
}

func NewClient(providerID, baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		providerID: providerID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		authorize:  func(*http.Request) {},
		tracer:     otel.Tracer(tracerName),
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ProviderID() string {
	return c.providerID
}

// DoJSON sends in as the JSON body (nil for none) and decodes a 2xx response into out
// (nil to discard). Every failure is returned as a *ProviderError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, c.providerID+" "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.id", c.providerID),
			attribute.String("http.request.method", method),
		),
	)
	start := time.Now()
	defer func() {
		c.observer.ObserveProviderLatency(c.providerID, time.Since(start))
		if err != nil {
			category := GetCategory(err)
			c.observer.IncrementProviderError(c.providerID, string(category))
			span.RecordError(err)
			span.SetStatus(codes.Error, string(category))
		}
		span.End()
	}()

	var body io.Reader
	if in != nil {
		payload, mErr := json.Marshal(in)
		if mErr != nil {
			return NewProviderError(ErrorInternal, c.providerID, "encode request", mErr)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return NewProviderError(ErrorInternal, c.providerID, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return NewProviderError(categorizeTransport(err), c.providerID, "request failed", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return NewProviderError(categorizeTransport(err), c.providerID, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewProviderError(CategoryFromStatus(resp.StatusCode), c.providerID,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewProviderError(ErrorBadData, c.providerID, "decode response", err)
	}
	return nil
}
