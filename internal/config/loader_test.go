package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("transport", "sequential", "")
	fs.String("host", "127.0.0.1", "")
	fs.Int("port", 3000, "")
	fs.String("store", "", "")
	fs.String("inbound-token", "", "")
	fs.Bool("no-admin", false, "")
	fs.Int("timeout", 30, "")
	fs.String("log-level", "info", "")
	return fs
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, TransportSequential, cfg.Transport)
		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, tmpDir, cfg.DataDir)
		assert.Equal(t, filepath.Join(tmpDir, "apis.json"), cfg.StorePath)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"transport": "http",
			"port": 8088,
			"store_path": "/srv/apis.json",
			"admin_disabled": true,
			"upstream": {"timeout_seconds": 5},
			"logging": {"level": "debug"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, TransportConcurrent, cfg.Transport, "aliases are normalized")
		assert.Equal(t, 8088, cfg.Port)
		assert.Equal(t, "127.0.0.1", cfg.Host, "unset keys keep defaults")
		assert.Equal(t, "/srv/apis.json", cfg.StorePath)
		assert.True(t, cfg.AdminDisabled)
		assert.Equal(t, 5, cfg.Upstream.TimeoutSeconds)
		assert.Equal(t, int64(1<<20), cfg.Upstream.MaxResponseBytes)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"port": 8088}`), 0644))

		t.Setenv("APIBRIDGE_PORT", "9099")
		t.Setenv("APIBRIDGE_INBOUND_TOKEN", "from-env")
		t.Setenv("APIBRIDGE_UPSTREAM_TIMEOUT_SECONDS", "12")
		t.Setenv("APIBRIDGE_TRACING_ENDPOINT", "collector:4317")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, 9099, cfg.Port)
		assert.Equal(t, "from-env", cfg.InboundToken)
		assert.Equal(t, 12, cfg.Upstream.TimeoutSeconds)
		assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
	})

	t.Run("flags override environment", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		t.Setenv("APIBRIDGE_PORT", "9099")

		fs := testFlags()
		require.NoError(t, fs.Parse([]string{"--port", "7000", "--transport", "stdio", "--no-admin", "--store", "/data/apis.json"}))

		cfg, err := NewLoader(configPath).WithFlags(fs).Load()
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Port)
		assert.Equal(t, TransportSequential, cfg.Transport)
		assert.True(t, cfg.AdminDisabled)
		assert.Equal(t, "/data/apis.json", cfg.StorePath)
	})

	t.Run("unset flags do not override file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"port": 8088, "logging": {"level": "warn"}}`), 0644))

		fs := testFlags()
		require.NoError(t, fs.Parse(nil))

		cfg, err := NewLoader(configPath).WithFlags(fs).Load()
		require.NoError(t, err)
		assert.Equal(t, 8088, cfg.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})
}

func TestLoaderSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "apibridge.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.Transport = TransportConcurrent
	cfg.Port = 4000
	cfg.InboundToken = "secret"
	cfg.StorePath = "/srv/apis.json"
	require.NoError(t, loader.Save(cfg))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"inbound_token"`))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, TransportConcurrent, loaded.Transport)
	assert.Equal(t, 4000, loaded.Port)
	assert.Equal(t, "secret", loaded.InboundToken)
	assert.Equal(t, "/srv/apis.json", loaded.StorePath)
	assert.Equal(t, cfg.Upstream.TimeoutSeconds, loaded.Upstream.TimeoutSeconds)
}
