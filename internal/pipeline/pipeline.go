// Package pipeline parses a renewal log once and feeds the records to reporters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/therealutkarshpriyadarshi/renewlog/internal/correlator"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/logging"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/report"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/tracing"
	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

// Options carries the optional collaborators of a Pipeline
type Options struct {
	Logger     *logging.Logger
	Metrics    *metrics.Collector
	Tracer     trace.Tracer
	Output     io.Writer // Console output of the reports, stdout by default
	Concurrent bool      // Run reporters in parallel
}

// Pipeline runs the correlator once and every reporter on its result
type Pipeline struct {
	correlator *correlator.Correlator
	reporters  []report.Reporter
	logger     *logging.Logger
	metrics    *metrics.Collector
	tracer     trace.Tracer
	out        io.Writer
	concurrent bool
}

// New creates a pipeline. Reporters render in the order given.
func New(c *correlator.Correlator, reporters []report.Reporter, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop().Tracer()
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return &Pipeline{
		correlator: c,
		reporters:  reporters,
		logger:     logger.WithComponent("pipeline"),
		metrics:    opts.Metrics,
		tracer:     tracer,
		out:        out,
		concurrent: opts.Concurrent,
	}
}

// Run parses the log at path and reports on it. Reporter failures are collected
// and returned together; the remaining reporters still run and render.
func (p *Pipeline) Run(ctx context.Context, path string) ([]report.Result, error) {
	start := time.Now()
	records := p.correlator.ParseFile(ctx, path)
	stats := p.correlator.Stats()

	p.logger.Info().
		Str("path", path).
		Int64("lines", stats.Lines).
		Int("records", len(records)).
		Int64("skipped", stats.Skipped()).
		Int64("correlated", stats.Correlated).
		Dur("elapsed", time.Since(start)).
		Msg("Log parsed")

	return p.Report(ctx, records)
}

// Report runs every reporter over records and writes their results to the output.
// File-backed results are only logged.
func (p *Pipeline) Report(ctx context.Context, records []*types.LogRecord) ([]report.Result, error) {
	results := make([]report.Result, len(p.reporters))
	errs := make([]error, len(p.reporters))

	if p.concurrent {
		var g errgroup.Group
		for i, r := range p.reporters {
			i, r := i, r
			g.Go(func() error {
				results[i], errs[i] = p.runReporter(ctx, r, records)
				return errs[i]
			})
		}
		// Every error is kept in errs
		_ = g.Wait()
	} else {
		for i, r := range p.reporters {
			results[i], errs[i] = p.runReporter(ctx, r, records)
		}
	}

	for i, res := range results {
		if res == nil {
			continue
		}
		if fr, ok := res.(report.FileResult); ok {
			if errs[i] == nil {
				p.logger.Info().
					Str("reporter", p.reporters[i].Name()).
					Str("path", fr.OutputPath()).
					Msg("Report written")
			}
			continue
		}
		if _, err := res.WriteTo(p.out); err != nil {
			errs[i] = errors.Join(errs[i], fmt.Errorf("failed to render %s report: %w", p.reporters[i].Name(), err))
		}
	}

	return results, errors.Join(errs...)
}

func (p *Pipeline) runReporter(ctx context.Context, r report.Reporter, records []*types.LogRecord) (report.Result, error) {
	ctx, span := tracing.TraceReport(ctx, p.tracer, r.Name(), len(records))
	defer span.End()

	start := time.Now()
	res, err := r.Report(ctx, records)
	elapsed := time.Since(start)

	if p.metrics != nil {
		p.metrics.ReportDuration.WithLabelValues(r.Name()).Observe(elapsed.Seconds())
	}

	if err != nil {
		if p.metrics != nil {
			p.metrics.ReportErrors.WithLabelValues(r.Name()).Inc()
		}
		tracing.RecordError(span, err)
		p.logger.Error().Err(err).Str("reporter", r.Name()).Msg("Reporter failed")
		return res, fmt.Errorf("%s: %w", r.Name(), err)
	}

	p.logger.Debug().Str("reporter", r.Name()).Dur("elapsed", elapsed).Msg("Report complete")
	return res, nil
}
