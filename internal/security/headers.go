package security

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultHSTSMaxAge = 31536000

// Headers configures the security headers attached to API responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// NoStore marks responses uncacheable; drafts and quotes are per-owner.
	NoStore bool
	// NoStoreExempt lists path prefixes that keep their own caching policy.
	NoStoreExempt []string
}

// Middleware attaches the API security headers. The JSON API never serves
// markup, so the CSP denies every source.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	hsts := h.hstsValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		headers.Set("Cross-Origin-Resource-Policy", "same-site")
		if h.NoStore && !h.exempt(r.URL.Path) {
			headers.Set("Cache-Control", "no-store")
		}
		if hsts != "" && (r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")) {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) hstsValue() string {
	if !h.EnableHSTS {
		return ""
	}
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	value := "max-age=" + strconv.Itoa(maxAge)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

func (h Headers) exempt(path string) bool {
	for _, prefix := range h.NoStoreExempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
