package domain

import dErrors "instantverify/pkg/domain-errors"

// Purpose records why a person is being verified.
// Construct via ParsePurpose at trust boundaries; direct casting bypasses validation.
type Purpose string

const (
	PurposeTenant      Purpose = "tenant"
	PurposeDomestic    Purpose = "domestic"
	PurposeDriver      Purpose = "driver"
	PurposeMatrimonial Purpose = "matrimonial"
	PurposeOther       Purpose = "other"
)

// PurposeOption pairs a purpose with its display label.
type PurposeOption struct {
	Value Purpose `json:"value"`
	Label string  `json:"label"`
}

// Purposes is the ordered list offered to users.
var Purposes = []PurposeOption{
	{PurposeTenant, "Tenant Verification"},
	{PurposeDomestic, "Domestic Help Verification"},
	{PurposeDriver, "Driver Verification"},
	{PurposeMatrimonial, "Matrimonial Verification"},
	{PurposeOther, "Other"},
}

// ParsePurpose returns CodeInvalidInput when the value is empty or unsupported.
func ParsePurpose(s string) (Purpose, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose is required")
	}
	p := Purpose(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid purpose")
	}
	return p, nil
}

func (p Purpose) IsValid() bool {
	for _, opt := range Purposes {
		if opt.Value == p {
			return true
		}
	}
	return false
}

func (p Purpose) String() string {
	return string(p)
}

// DefaultCountry is the only country currently supported.
const DefaultCountry = "IN"
