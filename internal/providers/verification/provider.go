// Package verification adapts the external government-ID verification vendor.
package verification

import (
	"context"
	"time"
)

// Status is the vendor's verdict on a submission.
type Status string

const (
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusPending  Status = "pending"
)

func (s Status) IsValid() bool {
	return s == StatusVerified || s == StatusFailed || s == StatusPending
}

// Request is everything the vendor needs to check one person against one document.
// AadhaarNumber is empty for verification types without a national-ID check.
type Request struct {
	VerificationID   string `json:"verification_id"`
	VerificationType string `json:"verification_type"`
	Purpose          string `json:"purpose"`
	Country          string `json:"country"`
	AadhaarNumber    string `json:"aadhaar_number,omitempty"`
	DocumentNumber   string `json:"document_number"`
	PersonPhoto      string `json:"person_photo"`
	DocumentImage    string `json:"document_image"`
}

type Result struct {
	Status    Status
	Reference string
	Reason    string
	CheckedAt time.Time
}

// Provider is implemented by the HTTP adapter and the in-process mock.
type Provider interface {
	ID() string
	Verify(ctx context.Context, req Request) (*Result, error)
}
