package main

import (
	"context"
	"fmt"
	"os"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/quantrail-lab/quantrail/internal/candles"
	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/types"
)

const downloadBatchSize = 1000

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download historical aggregates from Polygon into the candle store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Polygon ticker, e.g. C:GBPUSD or X:BTCUSD",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "instrument",
				Usage: "Instrument name to store the candles under; defaults to the ticker",
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format; defaults to today",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the candle store",
				Value:   "data/candles.duckdb",
			},
			&cli.IntFlag{
				Name:  "multiplier",
				Usage: "Aggregate bar multiplier",
				Value: 5,
			},
			&cli.StringFlag{
				Name:  "timespan",
				Usage: "Aggregate bar timespan (second, minute, hour, day)",
				Value: "minute",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Polygon API key; falls back to POLYGON_API_KEY",
				Sources: cli.EnvVars("POLYGON_API_KEY"),
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	apiKey := cmd.String("api-key")
	if apiKey == "" {
		apiKey = os.Getenv("POLYGON_API_KEY")
	}

	if apiKey == "" {
		return cli.Exit("polygon api key required: pass --api-key or set POLYGON_API_KEY", 1)
	}

	ticker := cmd.String("ticker")

	instrument := cmd.String("instrument")
	if instrument == "" {
		instrument = ticker
	}

	startDate := cmd.Timestamp("start")
	endDate := cmd.Timestamp("end")

	store, err := candles.NewStore(cmd.String("data"), logger.NewNopLogger())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer store.Close()

	client := polygon.New(apiKey)

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: int(cmd.Int("multiplier")),
		Timespan:   models.Timespan(cmd.String("timespan")),
		From:       models.Millis(startDate),
		To:         models.Millis(endDate),
	}.WithLimit(50000)

	totalDays := int(endDate.Sub(startDate).Hours()/24) + 1
	bar := progressbar.NewOptions(totalDays,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", ticker)),
		progressbar.OptionShowCount(),
	)

	iter := client.ListAggs(ctx, params)
	batch := make([]types.Candle, 0, downloadBatchSize)
	written := 0

	for iter.Next() {
		agg := iter.Item()

		batch = append(batch, types.Candle{
			Instrument: instrument,
			Time:       time.Time(agg.Timestamp).UTC(),
			Open:       agg.Open,
			High:       agg.High,
			Low:        agg.Low,
			Close:      agg.Close,
			Volume:     agg.Volume,
		})

		if len(batch) == downloadBatchSize {
			if err := store.Write(batch); err != nil {
				return cli.Exit(err.Error(), 1)
			}

			written += len(batch)
			batch = batch[:0]

			daysElapsed := int(time.Time(agg.Timestamp).Sub(startDate).Hours() / 24)
			_ = bar.Set(daysElapsed)
		}
	}

	if iter.Err() != nil {
		return cli.Exit(fmt.Sprintf("error iterating polygon aggregates: %v", iter.Err()), 1)
	}

	if len(batch) > 0 {
		if err := store.Write(batch); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		written += len(batch)
	}

	_ = bar.Finish()
	fmt.Printf("\nWrote %d candles for %s to %s\n", written, instrument, cmd.String("data"))

	return nil
}
