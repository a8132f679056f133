package rpc

import (
	"net/http"
	"strings"
)

// APIKeyAuth gates a handler behind a shared key, checked against the
// Authorization: Bearer header and the x-api-key header. An empty
// expectedKey disables the check entirely (first-run/local-dev mode) —
// mirrors the teacher's optional-admin-password convention.
func APIKeyAuth(expectedKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				if strings.TrimPrefix(authHeader, "Bearer ") == expectedKey {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.Header.Get("x-api-key") == expectedKey {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			writeErr(w, "invalid or missing API key")
		})
	}
}
