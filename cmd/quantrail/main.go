// Command quantrail runs the multi-account trade scanner and its supporting
// tooling: the live scheduler, the deploy gate, historical data download and
// the config schema dump.
package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "quantrail",
		Usage: "Multi-account trade scanner with adaptive thresholds and a replay deploy gate",
		Commands: []*cli.Command{
			runCommand(),
			gateCommand(),
			downloadCommand(),
			importCommand(),
			schemaCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
