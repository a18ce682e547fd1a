package client

import (
	"context"
	"net/http"
	"sync/atomic"

	"instantverify/pkg/client/notice"
)

// otpState tracks in-flight OTP calls. Send and verify have separate flags so
// a pending send does not disable the verify button.
type otpState struct {
	sending   atomic.Int32
	verifying atomic.Int32
}

// Sending reports whether a SendOTP call is in flight.
func (c *Client) Sending() bool {
	return c.otp.sending.Load() > 0
}

// Verifying reports whether a VerifyOTP call is in flight.
func (c *Client) Verifying() bool {
	return c.otp.verifying.Load() > 0
}

// SendOTP texts a code to phone and reports whether the server accepted it.
func (c *Client) SendOTP(ctx context.Context, phone string) bool {
	c.otp.sending.Add(1)
	defer c.otp.sending.Add(-1)

	body := struct {
		Phone string `json:"phone"`
	}{Phone: phone}
	if err := c.do(ctx, http.MethodPost, "/api/phone/verify", nil, body, nil); err != nil {
		c.logger.WarnContext(ctx, "send otp failed", "error", err)
		c.fail("Failed to send OTP. Please try again.")
		return false
	}
	c.notices.Publish(notice.Notice{
		Title:       "OTP Sent",
		Description: "Please check your phone for the verification code",
	})
	return true
}

// VerifyOTP checks code for phone. Any failure reads as an invalid code.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) bool {
	c.otp.verifying.Add(1)
	defer c.otp.verifying.Add(-1)

	body := struct {
		Phone string `json:"phone"`
		OTP   string `json:"otp"`
	}{Phone: phone, OTP: code}
	if err := c.do(ctx, http.MethodPost, "/api/phone/verify-otp", nil, body, nil); err != nil {
		c.logger.WarnContext(ctx, "verify otp failed", "error", err)
		c.fail("Invalid OTP. Please try again.")
		return false
	}
	c.notices.Publish(notice.Notice{Title: "Success", Description: "Phone number verified successfully"})
	return true
}
