package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.BufferSize)
	assert.Equal(t, "disconnect", cfg.Server.Teardown)
	assert.Equal(t, "uuid", cfg.Server.SessionIDs)
	assert.Empty(t, cfg.Server.AllowedOrigins)
	assert.Zero(t, cfg.Server.PingInterval)
	assert.Equal(t, "@every 1m", cfg.Server.StatsSchedule)
	assert.Equal(t, "http://localhost:8080", cfg.Client.ServerURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("last-subscriber teardown", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Teardown = "last-subscriber"

		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid teardown", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Teardown = "never"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid teardown policy")
	})

	t.Run("invalid buffer size", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.BufferSize = 0

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "buffer size")
	})

	t.Run("negative ping interval", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.PingInterval = -time.Second

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ping interval")
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 70000
		cfg.Client.ServerURL = "ftp://relay"
		cfg.Logging.Level = "verbose"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "port")
		assert.Contains(t, err.Error(), "scheme")
		assert.Contains(t, err.Error(), "log level")
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()

	str := cfg.String()
	assert.NotEmpty(t, str)
	assert.Contains(t, str, "buffer_size")
	assert.Contains(t, str, "server_url")
}

func TestConfigYAML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}

	out, err := cfg.YAML()
	require.NoError(t, err)

	assert.Contains(t, out, "server:")
	assert.Contains(t, out, "buffer_size: 100")
	assert.Contains(t, out, "- http://localhost:5173")
	assert.Contains(t, out, "server_url: http://localhost:8080")
}
