package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/ragdemo-go/internal/logging"
)

const authRealm = `Bearer realm="ragdemo"`

// requireBearer wraps next so that it only runs for requests carrying
// "Authorization: Bearer <apiKey>". An empty apiKey disables the check.
// Failures get a JSON 401 and a WWW-Authenticate challenge; token values
// are never logged.
func requireBearer(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := sha256.Sum256([]byte(apiKey))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			logging.FromContext(r.Context()).Warn("auth: missing bearer token",
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("WWW-Authenticate", authRealm)
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		// Comparing digests keeps the comparison length-independent.
		got := sha256.Sum256([]byte(token))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			logging.FromContext(r.Context()).Warn("auth: invalid bearer token",
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("WWW-Authenticate", authRealm+` error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken returns the credential of a Bearer Authorization header, or
// "" when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
