// Package contract holds reusable conformance checks that every provider
// adapter, mock or real, must pass.
package contract

import (
	"context"
	"slices"
	"testing"
	"time"

	"instantverify/internal/providers"
)

// VerifyFunc runs one verification and reports status, reference and check time.
type VerifyFunc func(ctx context.Context, verificationID string) (status, reference string, checkedAt time.Time, err error)

// Suite checks the invariants callers rely on: a known status, a non-empty
// reference, a check time, and stable references for the same ID.
type Suite struct {
	Verify          VerifyFunc
	AllowedStatuses []string
}

func (s *Suite) Run(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	t.Run("returns a known status and reference", func(t *testing.T) {
		status, reference, checkedAt, err := s.Verify(ctx, "contract-1")
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if !slices.Contains(s.AllowedStatuses, status) {
			t.Errorf("status %q not in %v", status, s.AllowedStatuses)
		}
		if reference == "" {
			t.Error("reference not set")
		}
		if checkedAt.IsZero() {
			t.Error("checked_at not set")
		}
	})

	t.Run("reference is stable for the same verification", func(t *testing.T) {
		_, first, _, err := s.Verify(ctx, "contract-2")
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		_, second, _, err := s.Verify(ctx, "contract-2")
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if first != second {
			t.Errorf("reference changed between calls: %q vs %q", first, second)
		}
	})
}

// ErrorContractTest validates that provider errors follow the taxonomy
type ErrorContractTest struct {
	Name          string
	Call          func(ctx context.Context) error
	ExpectedError providers.ErrorCategory
	ExpectedRetry bool
}

func (ect *ErrorContractTest) Run(t *testing.T) {
	t.Helper()
	t.Run(ect.Name, func(t *testing.T) {
		err := ect.Call(context.Background())
		if err == nil {
			t.Fatal("expected error but got none")
		}

		if category := providers.GetCategory(err); category != ect.ExpectedError {
			t.Errorf("expected error category %s, got %s", ect.ExpectedError, category)
		}
		if retryable := providers.IsRetryable(err); retryable != ect.ExpectedRetry {
			t.Errorf("expected retryable=%v, got %v", ect.ExpectedRetry, retryable)
		}
	})
}
