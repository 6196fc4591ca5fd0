package types

import "time"

// Levels the renewal correlation depends on. Other level tokens pass through untouched.
const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"
)

// LogRecord represents one parsed line of the renewal log
type LogRecord struct {
	Level      string    `json:"level"`
	Timestamp  time.Time `json:"timestamp"`
	SourceFile string    `json:"source_file"`
	SourceLine int       `json:"source_line"`
	Message    string    `json:"message"`
	Outcome    *bool     `json:"outcome,omitempty"` // Set only for renewal attempts
	InputLine  int       `json:"input_line"`        // 1-based line in the scanned input
}

// IsRenewal reports whether the record carries a renewal outcome
func (r *LogRecord) IsRenewal() bool {
	return r.Outcome != nil
}

// Succeeded reports whether the record is a renewal attempt that succeeded
func (r *LogRecord) Succeeded() bool {
	return r.Outcome != nil && *r.Outcome
}

// Failed reports whether the record is a renewal attempt that failed
func (r *LogRecord) Failed() bool {
	return r.Outcome != nil && !*r.Outcome
}

// SetOutcome records the renewal outcome
func (r *LogRecord) SetOutcome(ok bool) {
	r.Outcome = &ok
}

// ParserStats tracks what happened to each input line during a scan
type ParserStats struct {
	Lines         int64 `json:"lines"`
	Blank         int64 `json:"blank"`
	Parsed        int64 `json:"parsed"`
	Malformed     int64 `json:"malformed"`
	BadTimestamp  int64 `json:"bad_timestamp"`
	BadLineNumber int64 `json:"bad_line_number"`
	Correlated    int64 `json:"correlated"`
}

// Skipped returns the number of non-blank lines that produced no record
func (s ParserStats) Skipped() int64 {
	return s.Malformed + s.BadTimestamp + s.BadLineNumber
}
