// SPDX-License-Identifier: MIT

// Package config loads and validates the vmcd configuration with
// precedence ENV > file > defaults.
package config

import (
	"fmt"
	"time"
)

// Store backends selectable via Config.StoreBackend.
const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Hardware modes selectable via Config.Hardware.
const (
	HardwareNone = "none"
	HardwareSim  = "sim"
)

// Config is the fully resolved vmcd configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	Version  string `yaml:"-"`

	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"` // empty disables the metrics listener

	DataDir      string `yaml:"data_dir"`
	StoreBackend string `yaml:"store_backend"`

	ItemPrice int64  `yaml:"item_price"` // machine currency units
	ItemID    string `yaml:"item_id"`

	EntertainTimeout time.Duration `yaml:"entertain_timeout"`
	WatchdogInterval time.Duration `yaml:"watchdog_interval"`
	DispenseTimeout  time.Duration `yaml:"dispense_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`

	Hardware           string  `yaml:"hardware"`
	SimVendFailureRate float64 `yaml:"sim_vend_failure_rate"`
}

// Defaults returns the built-in configuration baseline.
func Defaults() Config {
	return Config{
		LogLevel:           "info",
		ListenAddr:         ":8080",
		MetricsAddr:        ":9090",
		DataDir:            "/var/lib/vmcd",
		StoreBackend:       StoreBadger,
		ItemPrice:          100,
		ItemID:             "item-0",
		EntertainTimeout:   10 * time.Second,
		WatchdogInterval:   3 * time.Second,
		DispenseTimeout:    5 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		Hardware:           HardwareNone,
		SimVendFailureRate: 0.2,
	}
}

// Validate rejects configurations the daemon must not start with.
func (c Config) Validate() error {
	if c.ItemPrice <= 0 {
		return fmt.Errorf("item_price must be positive, got %d", c.ItemPrice)
	}
	if c.EntertainTimeout <= 0 {
		return fmt.Errorf("entertain_timeout must be positive, got %s", c.EntertainTimeout)
	}
	if c.WatchdogInterval <= 0 {
		return fmt.Errorf("watchdog_interval must be positive, got %s", c.WatchdogInterval)
	}
	if c.DispenseTimeout <= 0 {
		return fmt.Errorf("dispense_timeout must be positive, got %s", c.DispenseTimeout)
	}
	switch c.StoreBackend {
	case StoreBadger, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown store_backend %q", c.StoreBackend)
	}
	switch c.Hardware {
	case HardwareNone, HardwareSim:
	default:
		return fmt.Errorf("unknown hardware mode %q", c.Hardware)
	}
	if c.SimVendFailureRate < 0 || c.SimVendFailureRate > 1 {
		return fmt.Errorf("sim_vend_failure_rate must be in [0,1], got %g", c.SimVendFailureRate)
	}
	if c.StoreBackend != StoreMemory && c.DataDir == "" {
		return fmt.Errorf("data_dir is required for store backend %q", c.StoreBackend)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	return nil
}
