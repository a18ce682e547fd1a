package admin

import id "instantverify/pkg/domain"

// AddCreditsRequest tops up a user's balance outside the payment flow, for
// support refunds and seeding test accounts.
type AddCreditsRequest struct {
	UserID  string `json:"userId"`
	Credits int    `json:"credits"`
}

func (r *AddCreditsRequest) Validate() error {
	if r.UserID == "" {
		return errUserIDRequired
	}
	if r.Credits < 1 || r.Credits > 1000 {
		return errCreditsRange
	}
	return nil
}

// CreditsResponse is the balance after a top-up.
type CreditsResponse struct {
	UserID  id.UserID `json:"userId"`
	Credits int       `json:"credits"`
}
