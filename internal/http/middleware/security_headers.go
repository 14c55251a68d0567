package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tendant/recipebox-idm/internal/config"
)

// APIContentSecurityPolicy forbids every kind of content. Responses are JSON
// or redirects, so a browser never has anything to render or run.
const APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders sets the headers for a JSON API consumed by a separate SPA.
// HSTS is only sent on requests that arrived over HTTPS.
func SecurityHeaders(cfg config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	headers := apiHeaders(cfg)
	var hsts string
	if cfg.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range headers {
				h.Set(name, value)
			}
			if hsts != "" && isHTTPS(r) {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func apiHeaders(cfg config.SecurityHeadersConfig) map[string]string {
	csp := cfg.CSP
	if csp == "" {
		csp = APIContentSecurityPolicy
	}

	headers := map[string]string{
		"Content-Security-Policy": csp,
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		// Responses carry session tokens and profile data
		"Cache-Control": "no-store",
	}
	if cfg.ReferrerPolicy != "" {
		headers["Referrer-Policy"] = cfg.ReferrerPolicy
	}
	if cfg.PermissionsPolicy != "" {
		headers["Permissions-Policy"] = cfg.PermissionsPolicy
	}
	return headers
}

// isHTTPS trusts X-Forwarded-Proto because the service runs behind a proxy
// that terminates TLS.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
