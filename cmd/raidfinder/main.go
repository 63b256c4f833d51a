package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "raidfinder",
		Usage:    "Find live channels a streamer's community also follows",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("raidfinder: %v", err)
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "List live channels related to a streamer",
		ArgsUsage: "<username>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "username",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "Base URL of the raid finder server",
				Value:   "http://127.0.0.1:5000",
				Sources: cli.EnvVars("RAIDFINDER_API"),
			},
			&cli.StringFlag{
				Name:  "lang",
				Usage: "Locale used to format viewer counts",
				Value: "en",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the ranked results as JSON",
			},
			&cli.BoolFlag{
				Name:  "html",
				Usage: "Output the rendered result cards",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log each backend call",
			},
		},
		Action: r.Search,
	}
}
