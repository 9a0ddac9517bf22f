package gateway

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harun/apibridge/internal/audit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTokenAuth_Verify(t *testing.T) {
	auth := NewTokenAuth("test-secret")

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"exact", "Bearer test-secret", true},
		{"lower-case scheme", "bearer test-secret", true},
		{"upper-case scheme", "BEARER test-secret", true},
		{"surrounding space", "  Bearer   test-secret  ", true},
		{"wrong token", "Bearer wrong", false},
		{"token prefix", "Bearer test-secre", false},
		{"basic scheme", "Basic test-secret", false},
		{"no scheme", "test-secret", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.Verify(tt.header))
		})
	}
}

func TestTokenAuth_Disabled(t *testing.T) {
	auth := NewTokenAuth("")
	assert.False(t, auth.Enabled())
	assert.True(t, auth.Verify(""))
	assert.True(t, auth.Verify("Bearer anything"))
}

func TestTokenAuth_Middleware(t *testing.T) {
	auth := NewTokenAuth("test-secret")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := auth.Middleware(zerolog.Nop())(next)

	t.Run("should reject missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	})

	t.Run("should pass valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set("Authorization", "Bearer test-secret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
	})
}

func TestTokenAuth_MiddlewareAudit(t *testing.T) {
	var trail bytes.Buffer
	auth := NewTokenAuth("test-secret").WithAudit(audit.New(&trail))
	handler := auth.Middleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, trail.String(), `"action":"inbound_token_rejected"`)
	assert.Contains(t, trail.String(), `"path":"/mcp"`)
	assert.NotContains(t, trail.String(), "wrong")

	trail.Reset()
	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer test-secret")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, trail.String())
}
