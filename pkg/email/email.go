// Package email normalizes addresses and derives display names from them.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Normalize trims and lowercases addr and checks it is a bare address.
// Display-name forms such as "Asha <asha@example.com>" are rejected.
func Normalize(addr string) (string, bool) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", false
	}
	return addr, true
}

// NamesFromAddress guesses first and last names from the local part, so
// "asha.rao+kyc@example.com" yields ("Asha", "Rao"). Missing parts come back
// empty.
func NamesFromAddress(addr string) (first, last string) {
	local, _, _ := strings.Cut(addr, "@")
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || unicode.IsDigit(r)
	})
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return capitalize(parts[0]), ""
	default:
		return capitalize(parts[0]), capitalize(parts[len(parts)-1])
	}
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
