package verification

import (
	"context"
	"strings"
	"time"
)

// MockProvider gives deterministic verdicts for local development:
// document numbers ending in "0000" fail, those ending in "9999" stay pending,
// everything else verifies.
type MockProvider struct {
	Latency time.Duration
	now     func() time.Time
}

func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now}
}

func (m *MockProvider) ID() string {
	return "mock-verification"
}

func (m *MockProvider) Verify(ctx context.Context, req Request) (*Result, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result := &Result{
		Status:    StatusVerified,
		Reference: "mock-" + req.VerificationID,
		CheckedAt: m.now().UTC(),
	}
	switch {
	case strings.HasSuffix(req.DocumentNumber, "0000"):
		result.Status = StatusFailed
		result.Reason = "document not found in registry"
	case strings.HasSuffix(req.DocumentNumber, "9999"):
		result.Status = StatusPending
		result.Reason = "registry check queued"
	}
	return result, nil
}
