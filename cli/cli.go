package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "kphp-tester"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:      AppName,
			Usage:     "Differential test harness for the kphp compiler",
			ArgsUsage: "[TAG...]",
			Description: `Runs each test twice, once through the reference php interpreter and
once through the kphp compile-and-execute pipeline, and verifies both
produce byte-identical stdout.

Positional arguments select tests by tag or by path substring.`,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.IntFlag{
					Name:    "jobs",
					Aliases: []string{"j"},
					Usage:   "Number of parallel jobs",
					Value:   defaultJobs(),
				},
				&cli.StringFlag{
					Name:    "tests-dir",
					Aliases: []string{"d"},
					Usage:   "Tests dir",
					Value:   "phpt",
				},
				&cli.StringFlag{
					Name:  "kphp",
					Usage: "Path to kphp",
					Value: filepath.Join("..", "kphp.sh"),
				},
				&cli.BoolFlag{
					Name:  "no-report",
					Usage: "Do not show full report",
				},
				&cli.StringFlag{
					Name:  "save-passed",
					Usage: "Save passed tests in separate `FILE`",
				},
				&cli.StringFlag{
					Name:  "from-list",
					Usage: "Run tests from list `FILE`",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Action = app.runTests
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

// defaultJobs is half of the available cores, at least one.
func defaultJobs() int {
	jobs := runtime.NumCPU() / 2
	if jobs < 1 {
		jobs = 1
	}
	return jobs
}
