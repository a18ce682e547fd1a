package models

import (
	"strings"
	"time"

	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Verification is one submitted identity check. The Aadhaar number itself is
// never stored; only its masked form is.
type Verification struct {
	ID                id.VerificationID   `json:"verificationId"`
	UserID            id.UserID           `json:"userId"`
	IdempotencyKey    string              `json:"-"`
	Purpose           id.Purpose          `json:"purpose"`
	Country           string              `json:"country"`
	VerificationType  id.VerificationType `json:"verificationType"`
	Tier              id.Tier             `json:"tier"`
	AadhaarMasked     string              `json:"aadhaarNumber,omitempty"`
	DocumentNumber    string              `json:"documentNumber"`
	PersonPhoto       string              `json:"-"`
	DocumentImage     string              `json:"-"`
	Status            Status              `json:"status"`
	ProviderReference string              `json:"providerReference,omitempty"`
	FailureReason     string              `json:"failureReason,omitempty"`
	Device            string              `json:"device,omitempty"`
	ClientIP          string              `json:"-"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// MaskAadhaar keeps the last four digits: "XXXX XXXX 1234".
func MaskAadhaar(n string) string {
	if len(n) < 4 {
		return ""
	}
	return "XXXX XXXX " + n[len(n)-4:]
}

// CreateVerificationRequest is the body of POST /api/verify.
type CreateVerificationRequest struct {
	Purpose          string `json:"purpose"`
	Country          string `json:"country"`
	VerificationType string `json:"verificationType"`
	AadhaarNumber    string `json:"aadhaarNumber,omitempty"`
	DocumentNumber   string `json:"documentNumber"`
	PersonPhoto      string `json:"personPhoto"`
	DocumentImage    string `json:"documentImage"`
}

// Validate normalizes the request in place. The Aadhaar number is required
// exactly when the verification type includes an Aadhaar check and is
// dropped otherwise.
func (r *CreateVerificationRequest) Validate() error {
	r.Purpose = strings.TrimSpace(r.Purpose)
	r.VerificationType = strings.TrimSpace(r.VerificationType)
	r.DocumentNumber = strings.ToUpper(strings.TrimSpace(r.DocumentNumber))
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	if r.Country == "" {
		r.Country = id.DefaultCountry
	}

	if r.PersonPhoto == "" || r.DocumentImage == "" {
		return dErrors.New(dErrors.CodeValidation, "Please provide both person photo and document image")
	}
	if _, err := id.ParsePurpose(r.Purpose); err != nil {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	vt, err := id.ParseVerificationType(r.VerificationType)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if r.Country != id.DefaultCountry {
		return dErrors.New(dErrors.CodeValidation, "country is not supported")
	}
	if r.DocumentNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "document number is required")
	}
	if vt.NeedsAadhaar() {
		n, err := id.ValidateAadhaarNumber(r.AadhaarNumber)
		if err != nil {
			return err
		}
		r.AadhaarNumber = n
	} else {
		r.AadhaarNumber = ""
	}
	return nil
}

// SubmitResponse is the 201 body of POST /api/verify.
type SubmitResponse struct {
	VerificationID id.VerificationID `json:"verificationId"`
	Status         Status            `json:"status"`
}
