package domain

import (
	"strings"

	dErrors "instantverify/pkg/domain-errors"
)

// Phone is an Indian mobile number in E.164 form (+91 followed by 10 digits).
type Phone string

// ParsePhone accepts "+91XXXXXXXXXX", "91XXXXXXXXXX", "0XXXXXXXXXX" or a bare
// 10 digit number, with spaces and dashes ignored.
func ParsePhone(s string) (Phone, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-':
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid phone number")
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid phone number")
	}
	// Indian mobile numbers start with 6-9.
	if digits[0] < '6' {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid phone number")
	}
	return Phone("+91" + digits), nil
}

func (p Phone) String() string {
	return string(p)
}

// Masked hides all but the last four digits for logs.
func (p Phone) Masked() string {
	s := string(p)
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
