package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/quantrail-lab/quantrail/internal/candles"
	"github.com/quantrail-lab/quantrail/internal/config"
	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/quality"
	"github.com/quantrail-lab/quantrail/internal/replay"
	"github.com/quantrail-lab/quantrail/internal/strategy"
	"github.com/quantrail-lab/quantrail/internal/types"
)

func gateCommand() *cli.Command {
	return &cli.Command{
		Name:  "gate",
		Usage: "Replay every configured strategy against stored candles and check its trade rate band",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML config file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the candle store",
				Value:   "data/candles.duckdb",
			},
			&cli.FloatFlag{
				Name:  "min-interval-factor",
				Usage: "Scale applied to each strategy's live min-interval guard (0 disables it)",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "keep-pullback",
				Usage: "Keep the live pullback entry guard instead of relaxing it",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON instead of a table",
			},
		},
		Action: gateAction,
	}
}

func gateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	log := logger.NewNopLogger()

	store, err := candles.NewStore(cmd.String("data"), log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer store.Close()

	series, err := store.GetAll()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	guards := strategy.GuardMultipliers{
		MinIntervalFactor: cmd.Float("min-interval-factor"),
		DisablePullback:   !cmd.Bool("keep-pullback"),
	}
	scorer := quality.NewScorer(cfg.Quality.Weights, cfg.Quality.Cutoffs)
	engine := replay.NewEngine(log)

	bar := progressbar.NewOptions(len(cfg.Strategies),
		progressbar.OptionSetDescription("Replaying strategies"),
		progressbar.OptionShowCount(),
	)

	results := make([]replay.GateResult, 0, len(cfg.Strategies))

	for _, sc := range cfg.Strategies {
		results = append(results, replayOne(engine, sc, series, guards, scorer))

		_ = bar.Add(1)
	}

	_ = bar.Finish()
	fmt.Println()

	if cmd.Bool("json") {
		encoded, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(encoded))
	} else {
		printGateTable(results)
	}

	for _, result := range results {
		if !result.Passed() {
			return cli.Exit("deploy gate failed", 1)
		}
	}

	return nil
}

func replayOne(engine *replay.Engine, sc config.StrategyConfig, series map[string][]types.Candle, guards strategy.GuardMultipliers, scorer *quality.Scorer) replay.GateResult {
	strat, err := strategy.New(sc.Type, sc.Name, strategy.Params{
		Thresholds:   sc.Thresholds,
		AllowedZones: sc.Zones(),
		MinInterval:  sc.MinInterval.Std(),
		HistorySize:  sc.HistorySize,
	})
	if err != nil {
		return replay.GateLoadFailure(sc.Name, err)
	}

	report, err := engine.Replay(strat, series, replay.Options{
		HistorySize: sc.HistorySize,
		Guards:      guards,
		Scorer:      scorer,
	})
	if err != nil {
		return replay.GateLoadFailure(sc.Name, err)
	}

	return replay.EvaluateGate(report, sc.Band)
}
