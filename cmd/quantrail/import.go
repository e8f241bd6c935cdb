package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/quantrail-lab/quantrail/internal/candles"
	"github.com/quantrail-lab/quantrail/internal/logger"
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a CSV candle file into the candle store",
		ArgsUsage: "<file.csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the candle store",
				Value:   "data/candles.duckdb",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("exactly one CSV file argument required", 1)
			}

			store, err := candles.NewStore(cmd.String("data"), logger.NewNopLogger())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()

			rows, err := store.ImportCSV(cmd.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			fmt.Printf("Imported %d candles into %s\n", rows, cmd.String("data"))

			return nil
		},
	}
}
