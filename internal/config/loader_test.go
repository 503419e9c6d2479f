// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.Equal(t, int64(100), cfg.ItemPrice)
	assert.Equal(t, StoreBadger, cfg.StoreBackend)
	assert.Equal(t, HardwareNone, cfg.Hardware)
	assert.Equal(t, 3*time.Second, cfg.WatchdogInterval)
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("item_price: 250\nstore_backend: memory\n"), 0o600))

	t.Setenv("VMCD_ITEM_PRICE", "300")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	// ENV wins over file, file wins over default.
	assert.Equal(t, int64(300), cfg.ItemPrice)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
}

func TestLoadRejectsUnknownFileKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("item_pricee: 250\n"), 0o600))

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero price", func(c *Config) { c.ItemPrice = 0 }, false},
		{"negative price", func(c *Config) { c.ItemPrice = -1 }, false},
		{"bad backend", func(c *Config) { c.StoreBackend = "bolt" }, false},
		{"bad hardware", func(c *Config) { c.Hardware = "gpio" }, false},
		{"failure rate out of range", func(c *Config) { c.SimVendFailureRate = 1.5 }, false},
		{"no data dir with memory store", func(c *Config) { c.StoreBackend = StoreMemory; c.DataDir = "" }, true},
		{"no data dir with badger store", func(c *Config) { c.DataDir = "" }, false},
		{"zero watchdog interval", func(c *Config) { c.WatchdogInterval = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseEnvHelpers(t *testing.T) {
	t.Setenv("VMCD_TEST_INT", "42")
	t.Setenv("VMCD_TEST_BADINT", "x")
	t.Setenv("VMCD_TEST_DUR", "1500ms")

	assert.Equal(t, int64(42), ParseInt("VMCD_TEST_INT", 7))
	assert.Equal(t, int64(7), ParseInt("VMCD_TEST_BADINT", 7))
	assert.Equal(t, int64(7), ParseInt("VMCD_TEST_UNSET", 7))
	assert.Equal(t, 1500*time.Millisecond, ParseDuration("VMCD_TEST_DUR", time.Second))
	assert.Equal(t, "fallback", ParseString("VMCD_TEST_UNSET", "fallback"))
}
