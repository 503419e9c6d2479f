// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a configuration loader. configPath may be empty, in
// which case only defaults and environment variables apply.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load resolves the configuration and validates it.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(&cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFile(cfg *Config) error {
	raw, err := os.ReadFile(l.configPath)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", l.configPath, err)
	}
	return nil
}

func (l *Loader) applyEnv(cfg *Config) {
	cfg.LogLevel = ParseString("VMCD_LOG_LEVEL", cfg.LogLevel)
	cfg.ListenAddr = ParseString("VMCD_LISTEN", cfg.ListenAddr)
	cfg.MetricsAddr = ParseString("VMCD_METRICS_LISTEN", cfg.MetricsAddr)
	cfg.DataDir = ParseString("VMCD_DATA", cfg.DataDir)
	cfg.StoreBackend = ParseString("VMCD_STORE_BACKEND", cfg.StoreBackend)
	cfg.ItemPrice = ParseInt("VMCD_ITEM_PRICE", cfg.ItemPrice)
	cfg.ItemID = ParseString("VMCD_ITEM_ID", cfg.ItemID)
	cfg.EntertainTimeout = ParseDuration("VMCD_ENTERTAIN_TIMEOUT", cfg.EntertainTimeout)
	cfg.WatchdogInterval = ParseDuration("VMCD_WATCHDOG_INTERVAL", cfg.WatchdogInterval)
	cfg.DispenseTimeout = ParseDuration("VMCD_DISPENSE_TIMEOUT", cfg.DispenseTimeout)
	cfg.ShutdownTimeout = ParseDuration("VMCD_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.Hardware = ParseString("VMCD_HARDWARE", cfg.Hardware)
	cfg.SimVendFailureRate = ParseFloat("VMCD_SIM_VEND_FAILURE_RATE", cfg.SimVendFailureRate)
}
