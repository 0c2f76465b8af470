package adsession

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 389, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	require.NotNil(t, cfg.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.TLSConfig.MinVersion)
	assert.False(t, cfg.DiscoverSRV)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Domain = "dc1.example.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty domain",
			mutate:  func(c *Config) { c.Domain = "" },
			wantErr: true,
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero port allowed with SRV discovery",
			mutate:  func(c *Config) { c.Port = 0; c.DiscoverSRV = true },
			wantErr: false,
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *Config) { c.Timeout = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domain = "dc1.example.com"
	cfg.Options = map[Option]any{OptionNetworkTimeout: "15s"}

	dup := cfg.clone()
	dup.Options[OptionNetworkTimeout] = "60s"
	dup.Domain = "dc2.example.com"

	assert.Equal(t, "15s", cfg.Options[OptionNetworkTimeout])
	assert.Equal(t, "dc1.example.com", cfg.Domain)
	assert.NotSame(t, cfg.TLSConfig, dup.TLSConfig)
}
