package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/quantrail-lab/quantrail/internal/adaptive"
	"github.com/quantrail-lab/quantrail/internal/admission"
	"github.com/quantrail-lab/quantrail/internal/broker"
	"github.com/quantrail-lab/quantrail/internal/config"
	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/metrics"
	"github.com/quantrail-lab/quantrail/internal/notifier"
	"github.com/quantrail-lab/quantrail/internal/quality"
	"github.com/quantrail-lab/quantrail/internal/scheduler"
	"github.com/quantrail-lab/quantrail/internal/strategy"
	"github.com/quantrail-lab/quantrail/internal/types"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the live scan scheduler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML config file",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var log *logger.Logger
	if cmd.Bool("debug") {
		log, err = logger.NewDebugLogger()
	} else {
		log, err = logger.NewLogger()
	}

	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := buildBroker(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	notify, closeNotifier := buildNotifier(cfg, log)
	defer closeNotifier()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	admit, err := admission.NewController(cfg.Admission.ToController(), b, notify, log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var (
		collector    *metrics.Metrics
		statusServer *metrics.Server
	)

	if cfg.Metrics.Enabled {
		collector = metrics.New()
		statusServer = metrics.NewServer(cfg.Metrics.ListenAddr, collector, log)

		go func() {
			if serveErr := statusServer.Start(); serveErr != nil {
				log.Error("status server failed", zap.Error(serveErr))
			}
		}()
	}

	var sched *scheduler.Scheduler

	sched = scheduler.New(scheduler.Options{
		Scan:      cfg.Scan,
		Bindings:  cfg.Accounts,
		Registry:  registry,
		Broker:    b,
		Admission: admit,
		Adaptive:  adaptive.NewController(cfg.Adaptive.ToController(), log),
		Scorer:    quality.NewScorer(cfg.Quality.Weights, cfg.Quality.Cutoffs),
		Notifier:  notify,
		Logger:    log,
		OnReport: func(report *types.ScanReport) {
			if collector != nil {
				collector.ObserveCycle(report, sched.ConsecutiveFailed())
			}

			if statusServer != nil {
				statusServer.SetReport(report)
			}
		},
	})

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	go watchReload(ctx, reload, configPath, sched, admit, log)

	log.Info("scanner started",
		zap.String("broker", cfg.Broker.Provider),
		zap.Int("accounts", len(cfg.Accounts)),
		zap.Int("strategies", len(cfg.Strategies)),
		zap.Duration("interval", cfg.Scan.Interval.Std()),
		zap.Bool("dry_run", cfg.Admission.DryRun),
	)

	runErr := sched.Run(ctx)

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if shutdownErr := statusServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Warn("status server shutdown failed", zap.Error(shutdownErr))
		}
	}

	if runErr != nil && !stderrors.Is(runErr, context.Canceled) {
		return runErr
	}

	log.Info("scanner stopped")

	return nil
}

// watchReload re-reads the config on SIGHUP and swaps the scheduler's
// account bindings and the admission kill switches. A config that fails to
// load is logged and ignored; the running config stays in effect.
func watchReload(ctx context.Context, reload <-chan os.Signal, path string, sched *scheduler.Scheduler, admit *admission.Controller, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-reload:
			fresh, err := config.Load(path)
			if err != nil {
				log.Error("config reload failed, keeping current config", zap.Error(err))

				continue
			}

			sched.SetBindings(fresh.Accounts)
			admit.SetKillSwitches(fresh.Admission.DryRun, fresh.Admission.LiveTradingBlocked, fresh.Admission.DisabledAccounts)

			log.Info("config reloaded",
				zap.Int("accounts", len(fresh.Accounts)),
				zap.Bool("dry_run", fresh.Admission.DryRun),
				zap.Bool("live_trading_blocked", fresh.Admission.LiveTradingBlocked),
			)
		}
	}
}

func buildBroker(cfg *config.Config) (broker.Broker, error) {
	switch cfg.Broker.Provider {
	case "binance":
		return broker.NewBinance(cfg.Broker.Binance)
	default:
		return broker.NewPaper(), nil
	}
}

// buildNotifier returns the configured notifier and a close function that
// flushes pending deliveries.
func buildNotifier(cfg *config.Config, log *logger.Logger) (notifier.Notifier, func()) {
	if cfg.Notifier.Provider == "webhook" {
		webhook := notifier.NewWebhook(cfg.Notifier.Webhook, log)

		return webhook, webhook.Close
	}

	return notifier.NewNop(), func() {}
}

func buildRegistry(cfg *config.Config) (*strategy.Registry, error) {
	registry := strategy.NewRegistry()

	for _, sc := range cfg.Strategies {
		strat, err := strategy.New(sc.Type, sc.Name, strategy.Params{
			Thresholds:   sc.Thresholds,
			AllowedZones: sc.Zones(),
			MinInterval:  sc.MinInterval.Std(),
			HistorySize:  sc.HistorySize,
		})
		if err != nil {
			return nil, err
		}

		if err := registry.Register(strat); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
