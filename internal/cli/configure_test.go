package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/apibridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		out, _, err := execute(t, "", "configure", "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "interactive configuration wizard")
	})

	t.Run("saves wizard answers", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "apibridge.json")
		storePath := filepath.Join(dir, "apis.json")

		answers := "concurrent\n0.0.0.0\n8088\ngateway-token\n" + storePath + "\ny\n20\nwarn\n"
		out, _, err := execute(t, answers, "configure", "--config", configPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration saved to: "+configPath)

		info, err := os.Stat(configPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		cfg, err := config.Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, config.TransportConcurrent, cfg.Transport)
		assert.Equal(t, "0.0.0.0", cfg.Host)
		assert.Equal(t, 8088, cfg.Port)
		assert.Equal(t, "gateway-token", cfg.InboundToken)
		assert.Equal(t, storePath, cfg.StorePath)
		assert.Equal(t, 20, cfg.Upstream.TimeoutSeconds)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("input ends early", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "apibridge.json")

		_, _, err := execute(t, "stdio\n", "configure", "--config", configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration failed")

		_, statErr := os.Stat(configPath)
		assert.True(t, os.IsNotExist(statErr))
	})
}
