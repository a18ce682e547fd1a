package models

import (
	"time"

	id "instantverify/pkg/domain"
	dErrors "instantverify/pkg/domain-errors"
)

// GrantOwner is the subset of the granting user shown to the grantee.
type GrantOwner struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// AccessGrant lets GrantedToID view UserID's verification reports until ExpiresAt.
type AccessGrant struct {
	ID          id.GrantID `json:"id"`
	GrantedToID id.UserID  `json:"grantedToId"`
	UserID      id.UserID  `json:"userId"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	User        GrantOwner `json:"user"`
}

// IsActive is strict: a grant expiring exactly at now is no longer visible.
func (g *AccessGrant) IsActive(now time.Time) bool {
	return g.ExpiresAt.After(now)
}

// NewAccessGrant validates invariants for a grant issued at now for ttl.
func NewAccessGrant(grantID id.GrantID, ownerID, granteeID id.UserID, now time.Time, ttl time.Duration) (*AccessGrant, error) {
	if ownerID == granteeID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot grant access to yourself")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "grant duration must be positive")
	}
	return &AccessGrant{
		ID:          grantID,
		GrantedToID: granteeID,
		UserID:      ownerID,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}, nil
}

// CreateGrantRequest is the operator payload for issuing a grant.
type CreateGrantRequest struct {
	UserID      string `json:"userId"`
	GrantedToID string `json:"grantedToId"`
	TTLHours    int    `json:"ttlHours"`
}

func (r *CreateGrantRequest) Validate() error {
	if r.UserID == "" || r.GrantedToID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId and grantedToId are required")
	}
	if r.TTLHours <= 0 || r.TTLHours > 24*365 {
		return dErrors.New(dErrors.CodeValidation, "ttlHours must be between 1 and 8760")
	}
	return nil
}
