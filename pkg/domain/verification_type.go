package domain

import (
	"strings"

	dErrors "instantverify/pkg/domain-errors"
)

// Tier groups verification methods by assurance level.
type Tier string

const (
	TierAdvanced Tier = "advanced"
	TierMedium   Tier = "medium"
	TierBasic    Tier = "basic"
)

// DefaultTier is preselected for new verifications.
const DefaultTier = TierAdvanced

// Tiers lists tiers in display order.
var Tiers = []Tier{TierAdvanced, TierMedium, TierBasic}

func ParseTier(s string) (Tier, error) {
	for _, t := range Tiers {
		if string(t) == s {
			return t, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid verification tier")
}

// DocumentKind is the government document whose number is checked.
type DocumentKind string

const (
	DocumentAadhaar        DocumentKind = "aadhaar"
	DocumentDrivingLicense DocumentKind = "driving_license"
	DocumentVoterID        DocumentKind = "voter_id"
)

// VerificationType identifies a verification method offered to users.
type VerificationType string

const (
	TypeAadhaarOTP      VerificationType = "aadhaar_otp"
	TypeDLAadhaarOTP    VerificationType = "dl_aadhaar_otp"
	TypeVoterAadhaarOTP VerificationType = "voter_aadhaar_otp"
	TypeDrivingLicense  VerificationType = "driving_license"
	TypeVoterID         VerificationType = "voter_id"
)

// Method describes what a verification type checks. AadhaarOTP is the tag that
// decides whether an Aadhaar number must accompany the request.
type Method struct {
	Type       VerificationType `json:"value"`
	Label      string           `json:"label"`
	Tier       Tier             `json:"tier"`
	Document   DocumentKind     `json:"document"`
	AadhaarOTP bool             `json:"aadhaar_otp"`
}

var methods = []Method{
	{TypeAadhaarOTP, "Aadhaar ID + OTP", TierAdvanced, DocumentAadhaar, true},
	{TypeDLAadhaarOTP, "Driving License + Aadhaar + OTP", TierAdvanced, DocumentDrivingLicense, true},
	{TypeVoterAadhaarOTP, "Voter ID + Aadhaar + OTP", TierAdvanced, DocumentVoterID, true},
	{TypeDrivingLicense, "Driving License", TierMedium, DocumentDrivingLicense, false},
	{TypeVoterID, "Voter ID", TierBasic, DocumentVoterID, false},
}

// MethodsForTier returns the methods offered under a tier, in display order.
func MethodsForTier(t Tier) []Method {
	var out []Method
	for _, m := range methods {
		if m.Tier == t {
			out = append(out, m)
		}
	}
	return out
}

// AllMethods returns a copy of the method catalogue.
func AllMethods() []Method {
	return append([]Method(nil), methods...)
}

// ParseVerificationType returns CodeInvalidInput for empty or unknown types.
func ParseVerificationType(s string) (VerificationType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verification type is required")
	}
	t := VerificationType(s)
	if _, ok := t.Method(); !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid verification type")
	}
	return t, nil
}

// Method looks up the catalogue entry for t.
func (t VerificationType) Method() (Method, bool) {
	for _, m := range methods {
		if m.Type == t {
			return m, true
		}
	}
	return Method{}, false
}

// NeedsAadhaar reports whether an Aadhaar number is required. Unknown types
// never require one.
func (t VerificationType) NeedsAadhaar() bool {
	m, ok := t.Method()
	return ok && m.AadhaarOTP
}

func (t VerificationType) Tier() Tier {
	m, _ := t.Method()
	return m.Tier
}

func (t VerificationType) String() string {
	return string(t)
}

// ValidateAadhaarNumber accepts 12 digits, ignoring spaces between groups.
func ValidateAadhaarNumber(s string) (string, error) {
	n := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if n == "" {
		return "", dErrors.New(dErrors.CodeValidation, "Aadhaar number is required")
	}
	if len(n) != 12 {
		return "", dErrors.New(dErrors.CodeValidation, "Aadhaar number must be 12 digits")
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeValidation, "Aadhaar number must be 12 digits")
		}
	}
	return n, nil
}
