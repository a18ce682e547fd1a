package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"instantverify/pkg/client/form"
	"instantverify/pkg/client/notice"
)

const (
	messageMissingImages = "Please provide both person photo and document image"
	messageSubmitFailed  = "Failed to submit verification request"
	messageSubmitted     = "Verification submitted successfully"
)

// ReportPath is where the UI navigates after a successful submission.
func ReportPath(verificationID string) string {
	return "/report/" + verificationID
}

// Report is the stored verification as shown on the report page. Images are
// never returned.
type Report struct {
	VerificationID    string    `json:"verificationId"`
	Purpose           string    `json:"purpose"`
	Country           string    `json:"country"`
	VerificationType  string    `json:"verificationType"`
	Tier              string    `json:"tier"`
	AadhaarNumber     string    `json:"aadhaarNumber,omitempty"`
	DocumentNumber    string    `json:"documentNumber"`
	Status            string    `json:"status"`
	ProviderReference string    `json:"providerReference,omitempty"`
	FailureReason     string    `json:"failureReason,omitempty"`
	Device            string    `json:"device,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Report fetches one of the caller's verifications.
func (c *Client) Report(ctx context.Context, verificationID string) (*Report, error) {
	var r Report
	if err := c.do(ctx, http.MethodGet, "/api/verify/"+url.PathEscape(verificationID), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type submitResponse struct {
	VerificationID string `json:"verificationId"`
	Status         string `json:"status"`
}

// Submit sends the form and returns the report path to navigate to. When the
// user has no credit, pay runs first and the submission is dispatched once it
// succeeds. Every failure is reported as a notice; ok is false and nothing
// else needs handling.
func (c *Client) Submit(ctx context.Context, f *form.Controller, pay PaymentFunc) (redirect string, ok bool) {
	if errs := f.Validate(); errs != nil {
		return "", false
	}
	if !f.HasImages() {
		c.fail(messageMissingImages)
		return "", false
	}
	if !f.BeginSubmit() {
		return "", false
	}
	defer f.EndSubmit()

	credits, err := c.Credits(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "credit check failed", "error", err)
		c.fail(messageSubmitFailed)
		return "", false
	}
	if credits < 1 {
		if pay == nil {
			return "", false
		}
		if err := pay(ctx); err != nil {
			c.logger.InfoContext(ctx, "payment not completed", "error", err)
			return "", false
		}
	}

	header := http.Header{}
	header.Set(HeaderIdempotencyKey, f.IdempotencyKey())
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/api/verify", header, f.Values(), &resp); err != nil || resp.VerificationID == "" {
		c.logger.WarnContext(ctx, "verification submission failed", "error", err)
		c.fail(messageSubmitFailed)
		return "", false
	}

	c.notices.Publish(notice.Notice{Title: "Success", Description: messageSubmitted})
	return ReportPath(resp.VerificationID), true
}

func (c *Client) fail(description string) {
	c.notices.Publish(notice.Notice{Title: "Error", Description: description, Variant: notice.VariantDestructive})
}
