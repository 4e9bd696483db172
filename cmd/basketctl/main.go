package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "basketctl",
		Usage: "Basket execution service CLI",
		Description: `A command-line tool for driving and debugging the basketd service.

Use this CLI to browse the basket catalog, preview quotes, execute purchases,
set up recurring buys, and inspect run history.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Catalog and execution commands (HTTP API)
			{
				Name:  "baskets",
				Usage: "Basket catalog and execution commands",
				Subcommands: []*cli.Command{
					listBasketsCommand(),
					getBasketCommand(),
					quoteBasketCommand(),
					buyBasketCommand(),
					dcaBasketCommand(),
				},
			},
			// Standalone recurring buys
			recurringCommand(),
			// Single immediate swap
			swapCommand(),
			// Run history inspection
			{
				Name:  "runs",
				Usage: "Execution run history commands",
				Subcommands: []*cli.Command{
					listRunsCommand(),
					getRunCommand(),
					watchRunsCommand(),
				},
			},
			// Display prices
			pricesCommand(),
			// NATS run-event streaming commands
			{
				Name:  "nats",
				Usage: "NATS run-event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "basketd server URL",
				EnvVars: []string{"BASKETD_SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
