package models

import (
	"strings"
	"time"

	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
	"instantverify/pkg/email"
)

// User is an account holder. Sessions are issued elsewhere; this service only
// needs names and email for grant listings and the verified phone.
type User struct {
	ID              id.UserID  `json:"id"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	PhoneVerifiedAt *time.Time `json:"phoneVerifiedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// NewUser validates invariants and normalizes the email. Blank names are
// derived from the address.
func NewUser(userID id.UserID, firstName, lastName, addr string, now time.Time) (*User, error) {
	addr, ok := email.Normalize(addr)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is invalid")
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" && lastName == "" {
		firstName, lastName = email.NamesFromAddress(addr)
	}
	if len(firstName) > 100 || len(lastName) > 100 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name is too long")
	}
	return &User{
		ID:        userID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     addr,
		CreatedAt: now,
	}, nil
}

// CreateUserRequest is the operator payload for seeding accounts.
type CreateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return nil
}
