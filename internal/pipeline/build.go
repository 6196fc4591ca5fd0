package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/therealutkarshpriyadarshi/renewlog/internal/config"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/correlator"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/dlq"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/logging"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/parser"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/report"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/tracing"
)

// App is a pipeline assembled from configuration together with the resources
// that must be released after the run
type App struct {
	Pipeline *Pipeline
	Metrics  *metrics.Collector

	cfg     *config.Config
	logger  *logging.Logger
	rejects *dlq.DeadLetterQueue
	tracing *tracing.Provider
}

// Build wires the parser, correlator and the three standard reporters from cfg.
// Console output goes to out.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger, out io.Writer) (*App, error) {
	parserCfg, err := cfg.ParserConfig()
	if err != nil {
		return nil, err
	}
	lineParser, err := parser.New(parserCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}

	patterns, err := cfg.MessagePatterns()
	if err != nil {
		return nil, err
	}

	labels, err := report.LabelsFor(cfg.Locale)
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, logger: logger}

	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector()
	}

	app.tracing, err = tracing.NewProvider(ctx, tracing.Config{
		Enabled:    cfg.Tracing.Enabled,
		Endpoint:   cfg.Tracing.Endpoint,
		SampleRate: cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracing provider: %w", err)
	}

	opts := correlator.Options{
		Logger:      logger,
		Metrics:     app.Metrics,
		Tracer:      app.tracing.Tracer(),
		MaxLineSize: cfg.Input.MaxLineSize,
	}

	if cfg.DeadLetter.Enabled {
		app.rejects, err = dlq.NewDeadLetterQueue(dlq.DLQConfig{
			Path:    cfg.DeadLetter.Path,
			MaxSize: cfg.DeadLetter.MaxSize,
		})
		if err != nil {
			app.tracing.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create rejects file: %w", err)
		}
		opts.Rejects = app.rejects
	}

	reporters := []report.Reporter{
		report.NewSuccessFailureCounter(),
		report.NewDailyCounterSmoother(patterns, labels, cfg.Report.SmoothingOutput),
		report.NewWeekdayAggregator(labels, cfg.Report.WeekdayFormat),
	}

	app.Pipeline = New(correlator.New(lineParser, patterns, opts), reporters, Options{
		Logger:     logger,
		Metrics:    app.Metrics,
		Tracer:     app.tracing.Tracer(),
		Output:     out,
		Concurrent: cfg.Report.Concurrent,
	})

	return app, nil
}

// Run executes the pipeline against the configured input
func (a *App) Run(ctx context.Context) ([]report.Result, error) {
	return a.Pipeline.Run(ctx, a.cfg.Input.Path)
}

// Close flushes the rejects file, writes the metrics textfile and stops tracing
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.rejects != nil {
		if err := a.rejects.Close(); err != nil {
			errs = append(errs, err)
		} else {
			a.logger.Info().
				Str("path", a.cfg.DeadLetter.Path).
				Int64("entries", a.rejects.Size()).
				Msg("Rejected lines written")
		}
	}

	if a.Metrics != nil {
		if err := a.Metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
	}

	return errors.Join(errs...)
}
