package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RPCRateLimit.Window)
	assert.Equal(t, 60, cfg.RPCRateLimit.MaxRequests)
	assert.Equal(t, []float64{0.25, 0.5, 1.0, 2.0}, cfg.Presale.ValidAmounts)
	assert.Equal(t, 24.25, cfg.Presale.TargetSOL)
	assert.Equal(t, 15*time.Second, cfg.Presale.StatsCacheTTL)
	assert.NotEmpty(t, cfg.RPC.Endpoints)
}

func TestSetDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9000
	cfg.RateLimit.MaxRequests = 3
	setDefaults(cfg)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validate(validConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"negative login window", func(c *Config) { c.RateLimit.Window = -time.Second }},
		{"zero login max", func(c *Config) { c.RateLimit.MaxRequests = -1 }},
		{"negative login sweep interval", func(c *Config) { c.RateLimit.SweepInterval = -time.Minute }},
		{"negative rpc window", func(c *Config) { c.RPCRateLimit.Window = -time.Second }},
		{"negative rpc sweep interval", func(c *Config) { c.RPCRateLimit.SweepInterval = -time.Minute }},
		{"no rpc endpoints", func(c *Config) { c.RPC.Endpoints = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, validate(cfg))
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword()
	require.NoError(t, err)
	b, err := generatePassword()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
