// SPDX-License-Identifier: MIT

// vmcd is the vending machine controller daemon. It drives the control
// state machine against the configured hardware rig and exposes the
// operator HTTP API and Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/openvend/vmcd/internal/api"
	"github.com/openvend/vmcd/internal/cashier"
	"github.com/openvend/vmcd/internal/config"
	"github.com/openvend/vmcd/internal/daemon"
	"github.com/openvend/vmcd/internal/health"
	"github.com/openvend/vmcd/internal/hw"
	"github.com/openvend/vmcd/internal/log"
	"github.com/openvend/vmcd/internal/machine"
	"github.com/openvend/vmcd/internal/store"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		logger := log.WithComponent("main")
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.NewLoader(configPath, version).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "vmcd",
		Version: version,
	})
	logger := log.WithComponent("main")
	logger.Info().
		Str("version", version).
		Str("store_backend", cfg.StoreBackend).
		Str("hardware", cfg.Hardware).
		Msg("starting vending machine controller")

	st, err := store.Open(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("store close failed")
		}
	}()

	cash, err := cashier.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("init cashier: %w", err)
	}

	rig, err := buildRig(cfg)
	if err != nil {
		return err
	}

	m, err := machine.New(machine.Config{
		ItemPrice:        cfg.ItemPrice,
		ItemID:           cfg.ItemID,
		EntertainTimeout: cfg.EntertainTimeout,
		DispenseTimeout:  cfg.DispenseTimeout,
		WatchdogInterval: cfg.WatchdogInterval,
	}, machine.Deps{
		Store:   st,
		Cashier: cash,
		Rig:     rig,
	})
	if err != nil {
		return fmt.Errorf("init machine: %w", err)
	}

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewStoreChecker(st))
	hm.RegisterChecker(health.NewMachineChecker(func() string {
		return m.Snapshot().State
	}, string(machine.StateOOS)))

	srv := api.NewServer(m, hm)

	mgr, err := daemon.NewManager(daemon.Config{
		ListenAddr:      cfg.ListenAddr,
		MetricsAddr:     cfg.MetricsAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, srv, promhttp.Handler())
	if err != nil {
		return fmt.Errorf("init daemon: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Run(gctx)
	})
	g.Go(func() error {
		return mgr.Start(gctx)
	})

	return g.Wait()
}

func buildRig(cfg config.Config) (hw.Rig, error) {
	switch cfg.Hardware {
	case config.HardwareSim:
		return hw.NewSimRig(cfg.SimVendFailureRate, time.Now().UnixNano()), nil
	case config.HardwareNone:
		return hw.NewNopRig(), nil
	default:
		return hw.Rig{}, fmt.Errorf("unknown hardware rig %q", cfg.Hardware)
	}
}
