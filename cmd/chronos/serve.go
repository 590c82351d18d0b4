package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cezmen/chronos/internal/audit"
	"github.com/cezmen/chronos/internal/command"
	"github.com/cezmen/chronos/internal/config"
	"github.com/cezmen/chronos/internal/console"
	"github.com/cezmen/chronos/internal/logging"
	"github.com/cezmen/chronos/internal/metrics"
	"github.com/cezmen/chronos/internal/radio"
	"github.com/cezmen/chronos/internal/radio/nl80211"
	"github.com/cezmen/chronos/internal/radio/sim"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the TCP command console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting chronos",
		zap.String("version", version),
		zap.String("backend", cfg.Radio.Backend),
		zap.String("addr", cfg.Console.ListenAddr()))

	var (
		dispatchOpts []command.Option
		consoleOpts  []console.Option
	)

	if cfg.Audit.Enabled {
		auditLogger, err := audit.NewLogger(auditConfig(cfg.Audit), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize audit logger: %w", err)
		}
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logger.Warn("failed to close audit log", zap.Error(err))
			}
		}()
		dispatchOpts = append(dispatchOpts, command.WithAuditLogger(auditLogger))
		consoleOpts = append(consoleOpts, console.WithAuditLogger(auditLogger))

		// SIGHUP rotates the audit log.
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					if err := auditLogger.Rotate(); err != nil {
						logger.Warn("failed to rotate audit log", zap.Error(err))
					}
				}
			}
		}()
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)
		dispatchOpts = append(dispatchOpts, command.WithRecorder(m))
		consoleOpts = append(consoleOpts, console.WithRecorder(m))

		metricsServer := metrics.NewServer(cfg.Metrics.Addr, reg, logger)
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to stop metrics endpoint", zap.Error(err))
			}
		}()
	}

	driver, err := newDriver(cfg.Radio, logger)
	if err != nil {
		return err
	}

	station := radio.NewStation(driver, logger,
		radio.WithRangingTimeout(cfg.Radio.RangingTimeout()),
		radio.WithReportColumns(cfg.Radio.Report.Columns()))

	dispatcher := command.NewDispatcher(station, logger, dispatchOpts...)

	srv, err := console.NewServer(console.Config{
		Addr:          cfg.Console.ListenAddr(),
		AllowedCIDRs:  cfg.Console.AllowedCIDRs,
		RxBufferLen:   cfg.Console.RxBufferLen,
		TxChunkLen:    cfg.Console.TxChunkLen,
		FIFOSize:      cfg.Console.FIFOSize,
		FrameCapacity: cfg.Console.FrameCapacity,
		KeepAlive: console.KeepAlive{
			Enabled:  cfg.Console.KeepAlive.Enabled,
			Idle:     time.Duration(cfg.Console.KeepAlive.IdleSec) * time.Second,
			Interval: time.Duration(cfg.Console.KeepAlive.IntervalSec) * time.Second,
			Count:    cfg.Console.KeepAlive.Count,
		},
		Tick: cfg.Output.Tick(),
	}, dispatcher, logger, consoleOpts...)
	if err != nil {
		return err
	}

	if err := srv.Serve(ctx); err != nil {
		logger.Error("console stopped", zap.Error(err))
		return err
	}
	logger.Info("chronos shutdown complete")
	return nil
}

func newDriver(cfg config.RadioConfig, logger *zap.Logger) (radio.Driver, error) {
	switch cfg.Backend {
	case config.BackendSim:
		return sim.New(sim.Config{
			AccessPoints: cfg.Sim.AccessPoints,
			Latency:      cfg.Sim.Latency(),
		}), nil
	case config.BackendNL80211:
		return nl80211.New(cfg.Interface, logger), nil
	default:
		return nil, fmt.Errorf("unknown radio backend %q", cfg.Backend)
	}
}

func auditConfig(cfg config.AuditConfig) audit.Config {
	return audit.Config{
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	}
}
