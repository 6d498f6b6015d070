package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "eventindexer",
		Usage: "Ingest competition program events into ordered per-kind views",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Subscribe to the program, backfill history and forward events",
				Flags:  runFlags(),
				Action: run,
			},
			{
				Name:   "remove",
				Usage:  "Remove the stored checkpoint of a program",
				Flags:  removeFlags(),
				Action: remove,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
