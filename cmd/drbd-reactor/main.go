// Package main — cmd/drbd-reactor/main.go
//
// drbd-reactor entrypoint.
//
// Startup sequence:
//  1. Parse flags (-config, -version).
//  2. Load and validate the merged TOML configuration document.
//  3. Initialise structured logger (zap, JSON in production).
//  4. Build the in-memory model and the ingester.
//  5. Start the Prometheus metrics server (loopback-bound).
//  6. Start the plugin host and reconcile it against the loaded config.
//  7. Start the ingester's event-source supervision loop.
//  8. Signal sd_notify READY=1 and start the watchdog ping loop, if
//     launched under a notify-aware service manager.
//  9. Register SIGHUP for config hot-reload.
// 10. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. sd_notify STOPPING=1.
//  2. Cancel the root context (propagates to ingester and plugin host).
//  3. Shut down the plugin host (bounded grace period per plugin).
//  4. Release the configuration snippet-directory lock.
//  5. Flush the logger.
//  6. Exit 0.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/drbd-reactor-go/reactor/internal/config"
	"github.com/drbd-reactor-go/reactor/internal/debugger"
	"github.com/drbd-reactor-go/reactor/internal/diff"
	"github.com/drbd-reactor-go/reactor/internal/ingest"
	"github.com/drbd-reactor-go/reactor/internal/model"
	"github.com/drbd-reactor-go/reactor/internal/observability"
	"github.com/drbd-reactor-go/reactor/internal/pluginhost"
	"github.com/drbd-reactor-go/reactor/internal/promoter"
	"github.com/drbd-reactor-go/reactor/internal/sdnotify"
	"github.com/drbd-reactor-go/reactor/internal/subagent"
	"github.com/drbd-reactor-go/reactor/internal/svcmgr"
	"github.com/drbd-reactor-go/reactor/internal/umh"
	"github.com/drbd-reactor-go/reactor/internal/webexposition"
)

// systemdRuntimeDir is the fixed, well-known runtime path the promoter's
// service-manager overrides are written under (spec §6 "a fixed runtime
// path"). It is not a configuration key: the contract is with the
// service manager, not the operator.
const systemdRuntimeDir = "/run/systemd/system"

// metricsAddr is the loopback-only address the Prometheus /metrics
// endpoint is served on (spec §4.7, ambient observability).
const metricsAddr = "127.0.0.1:9942"

func main() {
	configPath := flag.String("config", "/etc/drbd-reactor.toml", "Path to the root TOML configuration document")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("drbd-reactor %s (commit=%s built=%s)\n", config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	// ── Step 2: Load config ───────────────────────────────────────────────
	cfg, unlock, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}
	var unlockMu sync.Mutex
	defer func() {
		unlockMu.Lock()
		defer unlockMu.Unlock()
		_ = unlock() //nolint:errcheck
	}()

	// ── Step 3: Logger ─────────────────────────────────────────────────────
	log, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("drbd-reactor starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier, underSupervisor := sdnotify.New()
	if underSupervisor {
		log.Info("sd_notify socket detected, notifications enabled")
	}

	// ── Step 4: Model and ingester ─────────────────────────────────────────
	m := model.New()
	metrics := observability.NewMetrics()

	ingester := ingest.New(ingest.Config{
		Command:                []string{"drbdsetup", "events2", "all"},
		VersionCommand:         []string{"drbdsetup", "--version"},
		StatisticsPollInterval: cfg.StatisticsPollPeriod(),
		StatisticsCommand:      []string{"drbdsetup", "status", "--json"},
	}, m, log)

	// ── Step 5: Metrics server ─────────────────────────────────────────────
	go func() {
		if err := metrics.ServeMetrics(ctx, metricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", metricsAddr))

	// ── Step 6: Plugin host ─────────────────────────────────────────────────
	host := pluginhost.NewHost(log, metrics)
	svcmgrManager := svcmgr.New(systemdRuntimeDir, log)
	host.Reconcile(ctx, buildInstances(cfg, svcmgrManager, log, metrics))

	onUpdates := func(updates []diff.PluginUpdate) {
		for _, u := range updates {
			host.Broadcaster().Publish(u)
			if metrics != nil {
				metrics.PluginUpdatesEmittedTotal.WithLabelValues(u.Dimension.String()).Inc()
			}
		}
	}

	// ── Step 7: Ingester ────────────────────────────────────────────────────
	go func() {
		if err := ingester.Run(ctx, onUpdates); err != nil {
			log.Fatal("ingest: fatal startup failure", zap.Error(err))
		}
	}()

	// ── Step 8: Ready + watchdog ─────────────────────────────────────────────
	if err := notifier.Ready(); err != nil {
		log.Warn("sd_notify: failed to signal READY", zap.Error(err))
	}
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	if interval, ok := sdnotify.WatchdogInterval(); ok {
		go notifier.RunWatchdog(interval, watchdogDone)
		log.Info("watchdog ping loop started", zap.Duration("interval", interval))
	}

	// ── Step 9: SIGHUP hot-reload ─────────────────────────────────────────────
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received, reloading configuration")
			_ = notifier.Reloading()
			newCfg, newUnlock, err := config.Load(*configPath)
			if err != nil {
				log.Error("config hot-reload failed, retaining running configuration", zap.Error(err))
				_ = notifier.Ready()
				continue
			}
			host.Reconcile(ctx, buildInstances(newCfg, svcmgrManager, log, metrics))
			unlockMu.Lock()
			oldUnlock := unlock
			unlock = newUnlock
			unlockMu.Unlock()
			_ = oldUnlock()
			_ = notifier.Ready()
			log.Info("config hot-reload complete")
		}
	}()

	// ── Step 10: Wait for shutdown signal ─────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	_ = notifier.Stopping()
	cancel()
	host.Shutdown()

	log.Info("drbd-reactor shutdown complete")
}

// buildInstances translates the loaded configuration document into the
// set of pluginhost.Instance values the host should be running (spec
// §4.3 "Lifecycle": Reconcile is handed the full desired set on every
// load and reload).
func buildInstances(cfg *config.Document, mgr *svcmgr.Manager, log *zap.Logger, metrics *observability.Metrics) []pluginhost.Instance {
	var instances []pluginhost.Instance

	for _, p := range cfg.Promoter {
		for name, rcfg := range p.Resources {
			instances = append(instances, promoter.NewResource(p.ID, name, rcfg, mgr, log, metrics))
		}
	}
	for _, u := range cfg.UserModeHelper {
		instances = append(instances, umh.New(u, log))
	}
	for _, w := range cfg.WebExposition {
		instances = append(instances, webexposition.New(w, log))
	}
	for _, s := range cfg.Subagent {
		instances = append(instances, subagent.New(s, log))
	}
	for _, d := range cfg.Debugger {
		instances = append(instances, debugger.New(d, log))
	}

	return instances
}

// buildLogger constructs a zap.Logger from the merged document's [[log]]
// tables: the first entry sets the level (defaulting to info if none is
// configured), and every entry's file path is added as an extra output
// of the one shared JSON encoder, matching the teacher's
// single-config-driven buildLogger shape.
func buildLogger(entries []config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if len(entries) > 0 && entries[0].Level != "" {
		if err := level.UnmarshalText([]byte(entries[0].Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", entries[0].Level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)

	for _, e := range entries {
		if e.File != "" {
			zcfg.OutputPaths = append(zcfg.OutputPaths, e.File)
		}
	}

	return zcfg.Build()
}
