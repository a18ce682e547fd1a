// Package client is the Go SDK for the InstantVerify HTTP API. Operations that
// drive the UI report outcomes as notices instead of returning errors, so a
// caller can bind them straight to buttons.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"instantverify/pkg/client/notice"
)

const (
	tracerName       = "instantverify/client"
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 1 << 20

	HeaderIdempotencyKey = "Idempotency-Key"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Client calls the API on behalf of one signed-in user.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	notices notice.Publisher
	logger  *slog.Logger
	tracer  trace.Tracer
	otp     otpState
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

func WithNotices(p notice.Publisher) Option {
	return func(cl *Client) {
		if p != nil {
			cl.notices = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		notices: notice.Discard,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credits returns the caller's prepaid verification balance.
func (c *Client) Credits(ctx context.Context) (int, error) {
	var out struct {
		Credits int `json:"credits"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/credits", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Credits, nil
}

// Quote is the price of one verification credit as shown at checkout.
type Quote struct {
	Original           string  `json:"original"`
	Discounted         string  `json:"discounted"`
	Tax                string  `json:"tax"`
	Final              string  `json:"final"`
	Amount             float64 `json:"amount"`
	DiscountPercentage float64 `json:"discount_percentage"`
}

func (c *Client) Pricing(ctx context.Context) (*Quote, error) {
	var q Quote
	if err := c.do(ctx, http.MethodGet, "/api/pricing", nil, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// do sends in as JSON (nil for none) and decodes a 2xx body into out (nil to discard).
func (c *Client) do(ctx context.Context, method, path string, header http.Header, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &envelope)
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
