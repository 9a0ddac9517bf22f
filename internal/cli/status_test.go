package cli

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/apibridge/pkg/gateway"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandler struct{}

func (nopHandler) HandleMessage(ctx context.Context, data []byte) []byte {
	return []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)
}

func newStatusGateway(t *testing.T, token string) *httptest.Server {
	t.Helper()
	srv, err := gateway.NewServer(gateway.Config{
		InboundToken: token,
		Handler:      nopHandler{},
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestStatusCommand(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		ts := newStatusGateway(t, "")
		url := ts.URL
		ts.Close()

		out, _, err := execute(t, "", "status", "--config", filepath.Join(t.TempDir(), "none.json"), "--url", url)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: stopped")
	})

	t.Run("running with token from config", func(t *testing.T) {
		ts := newStatusGateway(t, "status-token")

		configPath := filepath.Join(t.TempDir(), "apibridge.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"inbound_token": "status-token"}`), 0600))

		out, _, err := execute(t, "", "status", "--config", configPath, "--url", ts.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: ok")
		assert.Contains(t, out, "Sessions: 0")
	})

	t.Run("running without token", func(t *testing.T) {
		ts := newStatusGateway(t, "status-token")

		out, _, err := execute(t, "", "status", "--config", filepath.Join(t.TempDir(), "none.json"), "--url", ts.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: ok")
		assert.Contains(t, out, "details need the inbound token")
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours minutes seconds", 3*time.Hour + 15*time.Minute + 20*time.Second, "3h15m20s"},
		{"zero", 0, "0s"},
		{"negative clamps to zero", -time.Second, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.duration)
			assert.Equal(t, tt.expected, result)
		})
	}
}
