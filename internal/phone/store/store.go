// Package store keeps pending phone OTP challenges and per-phone send counters.
//
// Challenges are stored under an opaque key chosen by the caller, so a
// challenge can be bound to the account that requested it. Send counters stay
// keyed by phone number.
package store

// Challenge is an outstanding OTP. Only the bcrypt hash of the code is kept.
type Challenge struct {
	Hash     []byte
	Attempts int
}
