package middleware

import (
	"net/http"

	"github.com/tendant/recipebox-idm/internal/httputil"
)

// RequestSizeLimit creates middleware that limits the maximum request body size.
// Requests that declare a larger Content-Length are rejected with 413 before the handler runs.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
