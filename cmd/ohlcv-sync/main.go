package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/ohlcv-sync/internal/orchestrator"
	"github.com/rxtech-lab/ohlcv-sync/internal/types"
	"github.com/rxtech-lab/ohlcv-sync/internal/version"
)

func planFlags() []cli.Flag {
	return []cli.Flag{
		&cli.TimestampFlag{
			Name:  "cutoff",
			Usage: "Last date to fetch in `YYYY-MM-DD` format. Defaults to the last completed market day.",
			Config: cli.TimestampConfig{
				Layouts: []string{"2006-01-02"},
			},
		},
		&cli.StringFlag{
			Name:    "tickers",
			Aliases: []string{"t"},
			Usage:   "Comma-separated tickers. Overrides the config file and the warehouse entity list.",
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "ohlcv-sync",
		Usage:   "Incrementally sync daily OHLCV bars from Polygon into staged Parquet artifacts",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Sources: cli.EnvVars("OHLCV_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Fetch every ticker's missing bars and stage them as Parquet artifacts",
				Flags: append(planFlags(),
					&cli.StringFlag{
						Name:  "granularity",
						Usage: fmt.Sprintf("Artifact period (%s, %s)", types.GranularityMonth, types.GranularityYear),
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: fmt.Sprintf("Fetch mode (%s, %s)", orchestrator.FetchModeWindow, orchestrator.FetchModePeriod),
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write the run summary to this YAML file",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the planned windows and exit",
					},
				),
				Action: syncAction,
			},
			{
				Name:   "plan",
				Usage:  "Print the windows the next sync would fetch",
				Flags:  planFlags(),
				Action: planAction,
			},
			{
				Name:  "verify",
				Usage: "Audit staged artifacts for schema, contamination and duplicates",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "sample",
						Usage: "Number of artifacts to decode; 0 checks all of them",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write the verification report to this YAML file",
					},
				},
				Action: verifyAction,
			},
			{
				Name:  "load",
				Usage: "Upsert staged artifacts into the local warehouse",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "purge",
						Usage: "Delete artifacts after they are loaded",
					},
				},
				Action: loadAction,
			},
			{
				Name:  "cleanup",
				Usage: "Delete every staged artifact under the configured prefix",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the deletion",
					},
				},
				Action: cleanupAction,
			},
			{
				Name:  "schema",
				Usage: "Print the config JSON schema",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the schema and a sample config into this directory instead",
					},
				},
				Action: schemaAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newCommand().Run(ctx, os.Args)

	stop()

	if err != nil {
		log.Fatal(err)
	}
}
