// Package device derives a short human-readable device label from the
// User-Agent so reports can show where a verification was submitted from.
package device

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyDeviceLabel struct{}

// Label summarizes a User-Agent as "Browser on OS (mobile)". Empty input yields "unknown".
func Label(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return "unknown"
	}
	parsed := useragent.New(ua)
	if parsed.Bot() {
		name, _ := parsed.Browser()
		if name == "" {
			return "bot"
		}
		return "bot: " + name
	}

	browser, _ := parsed.Browser()
	os := parsed.OSInfo().Name
	var b strings.Builder
	if browser == "" {
		browser = "unknown browser"
	}
	b.WriteString(browser)
	if os != "" {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	if parsed.Mobile() {
		b.WriteString(" (mobile)")
	}
	return b.String()
}

// Middleware stores the device label for the request's User-Agent.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithDeviceLabel(r.Context(), Label(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDeviceLabel retrieves the device label from the context.
func GetDeviceLabel(ctx context.Context) string {
	if label, ok := ctx.Value(contextKeyDeviceLabel{}).(string); ok {
		return label
	}
	return ""
}

// WithDeviceLabel injects a device label into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDeviceLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceLabel{}, label)
}
