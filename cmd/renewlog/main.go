package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/therealutkarshpriyadarshi/renewlog/internal/config"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/logging"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/pipeline"
)

var version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "renewlog",
		Usage:   "Report subscription renewal outcomes from the renewal daemon's log",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to YAML configuration file"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Log file to analyse"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Smoothing report file"},
			&cli.StringFlag{Name: "locale", Usage: "Message and label language (en, ru)"},
			&cli.StringFlag{Name: "log-level", Usage: "Diagnostic log level"},
			&cli.StringFlag{Name: "weekday-format", Usage: "Weekday report format (lines, table)"},
			&cli.BoolFlag{Name: "concurrent", Usage: "Run reporters in parallel"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := config.LoadOrDefault(cCtx.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	applyFlags(cCtx, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.SetGlobal(logger)

	logger.Debug().Str("version", version).Str("input", cfg.Input.Path).Msg("Starting renewal report")

	ctx, stop := signal.NotifyContext(cCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := pipeline.Build(ctx, cfg, logger, cCtx.App.Writer)
	if err != nil {
		return err
	}

	// Reporter failures are logged by the pipeline and do not fail the run
	if _, err := app.Run(ctx); err != nil {
		logger.Warn().Err(err).Msg("Some reports could not be produced")
	}

	if err := app.Close(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Failed to release resources")
	}

	return nil
}

func applyFlags(cCtx *cli.Context, cfg *config.Config) {
	if cCtx.IsSet("input") {
		cfg.Input.Path = cCtx.String("input")
	}
	if cCtx.IsSet("output") {
		cfg.Report.SmoothingOutput = cCtx.String("output")
	}
	if cCtx.IsSet("locale") {
		cfg.Locale = cCtx.String("locale")
	}
	if cCtx.IsSet("log-level") {
		cfg.Logging.Level = cCtx.String("log-level")
	}
	if cCtx.IsSet("weekday-format") {
		cfg.Report.WeekdayFormat = cCtx.String("weekday-format")
	}
	if cCtx.IsSet("concurrent") {
		cfg.Report.Concurrent = cCtx.Bool("concurrent")
	}
}
