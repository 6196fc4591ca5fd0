package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

// TimestampLayout is the layout of the timestamp field, milliseconds after a comma
const TimestampLayout = "2006-01-02 15:04:05,000"

var (
	ErrMalformedLine  = errors.New("line does not match log format")
	ErrBadTimestamp   = errors.New("invalid timestamp")
	ErrBadLineNumber  = errors.New("invalid line number")
	ErrEmptyExtension = errors.New("at least one source file extension is required")
)

// ParseError describes why a single input line was rejected
type ParseError struct {
	Line  int    // 1-based position in the input
	Raw   string // Trimmed input line
	Field string // Offending field value, empty for malformed lines
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Field)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reason returns a short machine-friendly label for the failure
func (e *ParseError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrBadTimestamp):
		return "bad_timestamp"
	case errors.Is(e.Err, ErrBadLineNumber):
		return "bad_line_number"
	default:
		return "malformed"
	}
}

// Config holds line parser configuration
type Config struct {
	Extensions []string       // Accepted source file extensions, without the dot
	Location   *time.Location // Zone the timestamps are written in
}

// DefaultConfig returns the parser configuration matching the renewal daemon's logs
func DefaultConfig() Config {
	return Config{
		Extensions: []string{"py"},
		Location:   time.UTC,
	}
}

// LineParser parses lines of the form
//
//	LEVEL | 2006-01-02 15:04:05,000 | file: name.py | line: 42 | [demon] message
type LineParser struct {
	pattern  *regexp.Regexp
	location *time.Location
}

// New creates a line parser
func New(cfg Config) (*LineParser, error) {
	if len(cfg.Extensions) == 0 {
		return nil, ErrEmptyExtension
	}

	exts := make([]string, len(cfg.Extensions))
	for i, ext := range cfg.Extensions {
		exts[i] = regexp.QuoteMeta(strings.TrimPrefix(ext, "."))
	}

	// Word characters include non-ASCII letters and digits
	expr := `^([\p{L}\p{N}_]+)\s*\|\s*(\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2},\d{3})\s*\|\s*` +
		`file:\s*([\p{L}\p{N}_.\-]+\.(?:` + strings.Join(exts, "|") + `))\s*\|\s*line:\s*(\d+)\s*\|\s*` +
		`\[demon\]\s*(.*)$`

	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile line pattern: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &LineParser{
		pattern:  pattern,
		location: loc,
	}, nil
}

// Parse parses an already trimmed, non-empty line. lineNo is only used for errors.
func (p *LineParser) Parse(line string, lineNo int) (*types.LogRecord, error) {
	match := p.pattern.FindStringSubmatch(line)
	if match == nil {
		return nil, &ParseError{Line: lineNo, Raw: line, Err: ErrMalformedLine}
	}

	level, tsStr, file, lineStr, message := match[1], match[2], match[3], match[4], match[5]

	ts, err := time.ParseInLocation(TimestampLayout, tsStr, p.location)
	if err != nil {
		return nil, &ParseError{Line: lineNo, Raw: line, Field: tsStr, Err: fmt.Errorf("%w: %v", ErrBadTimestamp, err)}
	}

	sourceLine, err := strconv.Atoi(lineStr)
	if err != nil || sourceLine < 0 {
		return nil, &ParseError{Line: lineNo, Raw: line, Field: lineStr, Err: ErrBadLineNumber}
	}

	return &types.LogRecord{
		Level:      level,
		Timestamp:  ts,
		SourceFile: file,
		SourceLine: sourceLine,
		Message:    strings.TrimSpace(message),
		InputLine:  lineNo,
	}, nil
}
