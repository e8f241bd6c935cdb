package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/quantrail-lab/quantrail/internal/config"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the config file",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			schema, err := config.ToJSONSchema()
			if err != nil {
				return err
			}

			fmt.Println(schema)

			return nil
		},
	}
}
