package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, "memory", cfg.storage)
	assert.Equal(t, 300*time.Millisecond, cfg.rejectGrace)
	assert.NoError(t, cfg.validate())
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("GUESSNUMBER_PORT", "9090")
	t.Setenv("GUESSNUMBER_PUBLIC_URL", "https://play.example.com")
	t.Setenv("GUESSNUMBER_REJECT_GRACE", "1s")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, "https://play.example.com", cfg.publicURL)
	assert.Equal(t, time.Second, cfg.rejectGrace)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("GUESSNUMBER_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--port", "7000"}))

	assert.Equal(t, 7000, cfg.port)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.port = 0 }, "invalid port"},
		{"unknown storage", func(c *Config) { c.storage = "sqlite" }, "invalid storage"},
		{"redis without url", func(c *Config) { c.storage = "redis" }, "--redis-url"},
		{"bad log level", func(c *Config) { c.logLevel = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			require.NoError(t, newCmd(cfg).ParseFlags(nil))
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
