package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRun(t *testing.T) {
	t.Run("concurrent transport with retries", func(t *testing.T) {
		answers := strings.Join([]string{
			"grpc",      // rejected
			"http",      // transport
			"0.0.0.0",   // host
			"not-a-num", // rejected
			"8080",      // port
			"tok",       // inbound token
			"",          // store path keeps current
			"n",         // admin
			"0",         // rejected
			"15",        // timeout
			"debug",     // log level
		}, "\n") + "\n"

		base := DefaultConfig()
		base.StorePath = "/srv/apis.json"

		var out bytes.Buffer
		cfg, err := NewWizard(strings.NewReader(answers), &out).Run(base)
		require.NoError(t, err)

		assert.Equal(t, TransportConcurrent, cfg.Transport)
		assert.Equal(t, "0.0.0.0", cfg.Host)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "tok", cfg.InboundToken)
		assert.Equal(t, "/srv/apis.json", cfg.StorePath)
		assert.True(t, cfg.AdminDisabled)
		assert.Equal(t, 15, cfg.Upstream.TimeoutSeconds)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Contains(t, out.String(), "invalid transport")
		assert.Contains(t, out.String(), "Configuration complete!")

		assert.Equal(t, TransportSequential, base.Transport, "base is not modified")
	})

	t.Run("sequential transport skips listen questions", func(t *testing.T) {
		answers := "stdio\n/tmp/apis.json\ny\n\nverbose\n"

		var out bytes.Buffer
		cfg, err := NewWizard(strings.NewReader(answers), &out).Run(DefaultConfig())
		require.NoError(t, err)

		assert.Equal(t, TransportSequential, cfg.Transport)
		assert.Equal(t, "/tmp/apis.json", cfg.StorePath)
		assert.False(t, cfg.AdminDisabled)
		assert.Equal(t, 30, cfg.Upstream.TimeoutSeconds)
		assert.Equal(t, "info", cfg.Logging.Level, "invalid level keeps the current one")
		assert.Contains(t, out.String(), "Warning")
	})

	t.Run("input ends early", func(t *testing.T) {
		_, err := NewWizard(strings.NewReader("stdio\n"), &bytes.Buffer{}).Run(DefaultConfig())
		assert.Error(t, err)
	})
}
