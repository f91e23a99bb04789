package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminSecretHeader carries the operator secret on admin requests.
const AdminSecretHeader = "X-Admin-Secret"

// AdminAuth returns middleware that requires the X-Admin-Secret header to
// equal secret. An empty configured secret rejects every request, so admin
// endpoints are never open by accident.
func AdminAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeUnauthorized(w, "admin access not configured")
				return
			}

			provided := r.Header.Get(AdminSecretHeader)
			if provided == "" {
				writeUnauthorized(w, "missing admin secret")
				return
			}

			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				writeUnauthorized(w, "invalid admin secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
