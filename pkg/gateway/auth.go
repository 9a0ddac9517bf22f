package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/harun/apibridge/internal/audit"
	"github.com/rs/zerolog"
)

// TokenAuth checks the inbound bearer token. An empty token disables the
// check.
type TokenAuth struct {
	token string
	audit *audit.Logger
}

// NewTokenAuth creates a TokenAuth for token.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

// WithAudit records rejected requests to trail.
func (a *TokenAuth) WithAudit(trail *audit.Logger) *TokenAuth {
	a.audit = trail
	return a
}

// Enabled reports whether a token is configured.
func (a *TokenAuth) Enabled() bool {
	return a.token != ""
}

// Verify reports whether an Authorization header value carries the token.
// The scheme is matched case-insensitively.
func (a *TokenAuth) Verify(header string) bool {
	if !a.Enabled() {
		return true
	}

	scheme, presented, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	presented = strings.TrimSpace(presented)

	// Use constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(a.token), []byte(presented)) == 1
}

// Middleware rejects requests without the token with 401.
func (a *TokenAuth) Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Verify(r.Header.Get("Authorization")) {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("ip", r.RemoteAddr).
					Bool("header_present", r.Header.Get("Authorization") != "").
					Msg("Rejected request with missing or invalid token")
				a.audit.AuthRejected(r.Context(), r.URL.Path, r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", `Bearer realm="apibridge"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
