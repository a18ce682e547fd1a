package audit

import (
	"context"
	"time"

	id "instantverify/pkg/domain"
)

// EventCategory classifies audit events so sinks can route and retain them
// differently.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory weight: identity
	// checks, payments, access to another person's report.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers abuse signals such as OTP throttling.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from services. It is transport-agnostic so sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    id.UserID     `json:"user_id"`
	Subject   string        `json:"subject,omitempty"`
	Action    string        `json:"action"`
	Purpose   string        `json:"purpose,omitempty"`
	Decision  string        `json:"decision,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventVerificationSubmitted AuditEvent = "verification_submitted"
	EventVerificationCompleted AuditEvent = "verification_completed"
	EventReportViewed          AuditEvent = "report_viewed"
	EventAccessGrantsListed    AuditEvent = "access_grants_listed"
	EventCreditConsumed        AuditEvent = "credit_consumed"
	EventPaymentCreated        AuditEvent = "payment_created"
	EventPaymentConfirmed      AuditEvent = "payment_confirmed"
	EventOTPSent               AuditEvent = "otp_sent"
	EventOTPThrottled          AuditEvent = "otp_throttled"
	EventOTPFailed             AuditEvent = "otp_failed"
	EventPhoneVerified         AuditEvent = "phone_verified"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationSubmitted: CategoryCompliance,
	EventVerificationCompleted: CategoryCompliance,
	EventReportViewed:          CategoryCompliance,
	EventCreditConsumed:        CategoryCompliance,
	EventPaymentConfirmed:      CategoryCompliance,
	EventPhoneVerified:         CategoryCompliance,

	EventOTPThrottled: CategorySecurity,
	EventOTPFailed:    CategorySecurity,

	EventAccessGrantsListed: CategoryOperations,
	EventPaymentCreated:     CategoryOperations,
	EventOTPSent:            CategoryOperations,
}

// Category returns the category for e; unknown events are operations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store is an append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by sinks that can be read back (the in-memory store).
type Lister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
