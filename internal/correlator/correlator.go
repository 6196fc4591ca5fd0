package correlator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/therealutkarshpriyadarshi/renewlog/internal/logging"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/parser"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/tracing"
	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

// DefaultMaxLineSize bounds a single input line. Longer lines are skipped as malformed.
const DefaultMaxLineSize = 1024 * 1024

// rawPrefixSize is how much of an over-long line is kept for diagnostics
const rawPrefixSize = 256

// ErrLineTooLong is the cause recorded for lines longer than the maximum line size
var ErrLineTooLong = errors.New("line exceeds maximum size")

// RejectSink receives every line the parser refused
type RejectSink interface {
	Enqueue(line int, raw, reason string, cause error) error
}

// Options carries the optional collaborators of a Correlator
type Options struct {
	Logger      *logging.Logger
	Metrics     *metrics.Collector
	Tracer      trace.Tracer
	Rejects     RejectSink
	MaxLineSize int
}

// Correlator turns raw log lines into records and marks renewal attempts as
// failed when the very next record is an error for the same user.
// A Correlator is not safe for concurrent use.
type Correlator struct {
	parser      *parser.LineParser
	patterns    *parser.Patterns
	logger      *logging.Logger
	metrics     *metrics.Collector
	tracer      trace.Tracer
	rejects     RejectSink
	maxLineSize int

	// Last emitted record, the only one a new record may correlate with
	prev  *types.LogRecord
	stats types.ParserStats
}

// New creates a correlator
func New(lp *parser.LineParser, patterns *parser.Patterns, opts Options) *Correlator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop().Tracer()
	}

	maxLineSize := opts.MaxLineSize
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}

	return &Correlator{
		parser:      lp,
		patterns:    patterns,
		logger:      logger.WithComponent("correlator"),
		metrics:     opts.Metrics,
		tracer:      tracer,
		rejects:     opts.Rejects,
		maxLineSize: maxLineSize,
	}
}

// ParseFile scans the file at path. It never fails: a missing file yields an empty
// result, and a read failure yields the records parsed before it.
func (c *Correlator) ParseFile(ctx context.Context, path string) []*types.LogRecord {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn().Str("path", path).Msg("Log file not found")
		} else {
			c.logger.Error().Err(err).Str("path", path).Msg("Failed to open log file")
		}
		c.reset()
		return []*types.LogRecord{}
	}
	defer file.Close()

	records, err := c.scan(ctx, path, file)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("path", path).
			Int("records", len(records)).
			Msg("Failed to read log file, keeping records parsed so far")
	}
	return records
}

// Scan reads r line by line. On a read failure or context cancellation it returns
// the records emitted so far together with the error.
func (c *Correlator) Scan(ctx context.Context, r io.Reader) ([]*types.LogRecord, error) {
	return c.scan(ctx, "reader", r)
}

// Stats returns the counters of the most recent scan
func (c *Correlator) Stats() types.ParserStats {
	return c.stats
}

func (c *Correlator) reset() {
	c.prev = nil
	c.stats = types.ParserStats{}
}

func (c *Correlator) scan(ctx context.Context, source string, r io.Reader) ([]*types.LogRecord, error) {
	ctx, span := tracing.TraceScan(ctx, c.tracer, source)
	defer span.End()

	c.reset()
	records := make([]*types.LogRecord, 0)

	reader := bufio.NewReaderSize(r, c.maxLineSize)

	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return c.abort(span, records, fmt.Errorf("scan cancelled after line %d: %w", lineNo, err))
		}

		raw, tooLong, err := readLine(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return c.abort(span, records, fmt.Errorf("read failed after line %d: %w", lineNo, err))
		}

		lineNo++
		c.stats.Lines++

		line := strings.TrimSpace(raw)
		if tooLong {
			c.reject(&parser.ParseError{
				Line: lineNo,
				Raw:  line,
				Err:  fmt.Errorf("%w: %w", parser.ErrMalformedLine, ErrLineTooLong),
			})
			continue
		}
		if line == "" {
			c.stats.Blank++
			c.metrics.ObserveLine(metrics.ResultBlank)
			continue
		}

		rec, err := c.parser.Parse(line, lineNo)
		if err != nil {
			c.reject(err)
			continue
		}

		c.correlate(rec)
		if rec.Level == types.LevelInfo {
			if _, ok := c.patterns.RenewalUser(rec.Message); ok {
				rec.SetOutcome(true)
			}
		}

		records = append(records, rec)
		c.prev = rec
		c.stats.Parsed++
		c.metrics.ObserveLine(metrics.ResultParsed)
	}

	c.finish(span, records)
	return records, nil
}

// readLine returns the next line without its terminator. A line that does not fit
// the reader's buffer is consumed to its end and only its prefix is returned.
func readLine(r *bufio.Reader) (string, bool, error) {
	chunk, isPrefix, err := r.ReadLine()
	if err != nil {
		return "", false, err
	}
	if !isPrefix {
		return string(chunk), false, nil
	}

	prefix := string(chunk[:min(len(chunk), rawPrefixSize)])
	for isPrefix {
		_, isPrefix, err = r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false, err
		}
	}
	return prefix, true, nil
}

// correlate flips the previous record to failure when cur is the error line for
// the renewal it announced. Only the immediately preceding record is considered.
func (c *Correlator) correlate(cur *types.LogRecord) {
	prev := c.prev
	if prev == nil || cur.Level != types.LevelError {
		return
	}
	if prev.Level != types.LevelInfo || !prev.Succeeded() {
		return
	}

	userID, ok := c.patterns.RenewalUser(prev.Message)
	if !ok {
		return
	}
	failedID, ok := c.patterns.FailureUser(cur.Message)
	if !ok || failedID != userID {
		return
	}

	prev.SetOutcome(false)
	c.stats.Correlated++
	if c.metrics != nil {
		c.metrics.CorrelatedFailures.Inc()
	}

	c.logger.Debug().
		Str("user_id", userID).
		Int("info_line", prev.InputLine).
		Int("error_line", cur.InputLine).
		Msg("Renewal marked as failed")
}

func (c *Correlator) reject(err error) {
	var perr *parser.ParseError
	if !errors.As(err, &perr) {
		perr = &parser.ParseError{Err: err}
	}

	reason := perr.Reason()
	var msg string
	switch reason {
	case metrics.ResultBadTimestamp:
		c.stats.BadTimestamp++
		msg = "Failed to parse timestamp, skipping line"
	case metrics.ResultBadLineNumber:
		c.stats.BadLineNumber++
		msg = "Invalid line number, skipping line"
	default:
		c.stats.Malformed++
		msg = "Line does not match log format, skipping"
	}
	c.metrics.ObserveLine(reason)

	event := c.logger.Warn().Int("line", perr.Line).Str("raw", perr.Raw)
	if perr.Field != "" {
		event = event.Str("field", perr.Field)
	}
	event.Msg(msg)

	if c.rejects == nil {
		return
	}
	if err := c.rejects.Enqueue(perr.Line, perr.Raw, reason, perr.Err); err != nil {
		c.logger.Debug().Err(err).Int("line", perr.Line).Msg("Failed to record rejected line")
		return
	}
	if c.metrics != nil {
		c.metrics.RejectsWritten.Inc()
	}
}

func (c *Correlator) abort(span trace.Span, records []*types.LogRecord, err error) ([]*types.LogRecord, error) {
	if c.metrics != nil {
		c.metrics.ScanAborted.Inc()
	}
	tracing.RecordError(span, err)
	c.finish(span, records)
	return records, err
}

func (c *Correlator) finish(span trace.Span, records []*types.LogRecord) {
	if c.metrics != nil {
		c.metrics.RecordsEmitted.Add(float64(len(records)))
		c.metrics.ObserveOutcomes(records)
	}

	span.SetAttributes(
		attribute.Int64("scan.lines", c.stats.Lines),
		attribute.Int("scan.records", len(records)),
		attribute.Int64("scan.skipped", c.stats.Skipped()),
		attribute.Int64("scan.correlated", c.stats.Correlated),
	)

	c.logger.Debug().
		Int64("lines", c.stats.Lines).
		Int("records", len(records)).
		Int64("skipped", c.stats.Skipped()).
		Int64("correlated", c.stats.Correlated).
		Msg("Scan finished")
}
