package correlator

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/therealutkarshpriyadarshi/renewlog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/renewlog/internal/parser"
	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

const (
	infoRenewal5  = "INFO | 2024-01-01 10:00:00,000 | file: a.py | line: 1 | [demon] renewal update for user id: 5"
	errorUser5    = "ERROR | 2024-01-01 10:00:01,000 | file: a.py | line: 2 | [demon] error for user id: 5"
	errorUser6    = "ERROR | 2024-01-01 10:00:01,000 | file: a.py | line: 2 | [demon] error for user id: 6"
	infoUnrelated = "INFO | 2024-01-01 10:00:00,500 | file: a.py | line: 3 | [demon] heartbeat"
	infoRenewal7  = "INFO | 2024-01-01 10:00:02,000 | file: a.py | line: 4 | [demon] renewal update for user id: 7"
	missingLine   = "INFO | 2024-01-01 10:00:00,000 | file: a.py | [demon] renewal update for user id: 8"
	badTimestamp  = "INFO | 2024-02-30 10:00:00,000 | file: a.py | line: 1 | [demon] renewal update for user id: 9"
)

func newTestCorrelator(t *testing.T, opts Options) *Correlator {
	t.Helper()

	lp, err := parser.New(parser.DefaultConfig())
	if err != nil {
		t.Fatalf("parser.New() error = %v", err)
	}
	return New(lp, parser.MustPatterns(parser.LocaleEnglish), opts)
}

func scanLines(t *testing.T, c *Correlator, lines ...string) []*types.LogRecord {
	t.Helper()

	records, err := c.Scan(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return records
}

func tally(records []*types.LogRecord) (success, failure int) {
	for _, r := range records {
		if r.Level != types.LevelInfo {
			continue
		}
		if r.Succeeded() {
			success++
		}
		if r.Failed() {
			failure++
		}
	}
	return success, failure
}

func TestCorrelator_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		lines       []string
		wantRecords int
		wantSuccess int
		wantFailure int
	}{
		{
			name:        "adjacent error flips renewal",
			lines:       []string{infoRenewal5, errorUser5},
			wantRecords: 2,
			wantSuccess: 0,
			wantFailure: 1,
		},
		{
			name:        "renewal without error succeeds",
			lines:       []string{infoRenewal5},
			wantRecords: 1,
			wantSuccess: 1,
			wantFailure: 0,
		},
		{
			name:        "intervening record prevents flip",
			lines:       []string{infoRenewal5, infoUnrelated, errorUser5},
			wantRecords: 3,
			wantSuccess: 1,
			wantFailure: 0,
		},
		{
			name:        "error for another user does not flip",
			lines:       []string{infoRenewal5, errorUser6},
			wantRecords: 2,
			wantSuccess: 1,
			wantFailure: 0,
		},
		{
			name:        "second error cannot flip twice",
			lines:       []string{infoRenewal5, errorUser5, errorUser5},
			wantRecords: 3,
			wantSuccess: 0,
			wantFailure: 1,
		},
		{
			name:        "only the preceding renewal is flipped",
			lines:       []string{infoRenewal5, infoRenewal7, errorUser5},
			wantRecords: 3,
			wantSuccess: 2,
			wantFailure: 0,
		},
		{
			name:        "malformed line is skipped",
			lines:       []string{infoRenewal5, missingLine, infoRenewal7},
			wantRecords: 2,
			wantSuccess: 2,
			wantFailure: 0,
		},
		{
			name:        "skipped line between renewal and error keeps adjacency",
			lines:       []string{infoRenewal5, missingLine, errorUser5},
			wantRecords: 2,
			wantSuccess: 0,
			wantFailure: 1,
		},
		{
			name:        "bad timestamp is skipped",
			lines:       []string{badTimestamp, infoRenewal5},
			wantRecords: 1,
			wantSuccess: 1,
			wantFailure: 0,
		},
		{
			name:        "blank lines are ignored",
			lines:       []string{"", infoRenewal5, "   ", errorUser5, ""},
			wantRecords: 2,
			wantSuccess: 0,
			wantFailure: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCorrelator(t, Options{})
			records := scanLines(t, c, tt.lines...)

			if len(records) != tt.wantRecords {
				t.Fatalf("got %d records, want %d", len(records), tt.wantRecords)
			}

			success, failure := tally(records)
			if success != tt.wantSuccess || failure != tt.wantFailure {
				t.Errorf("outcomes = (%d, %d), want (%d, %d)", success, failure, tt.wantSuccess, tt.wantFailure)
			}
		})
	}
}

func TestCorrelator_OutcomeOnlyOnRenewals(t *testing.T) {
	c := newTestCorrelator(t, Options{})
	records := scanLines(t, c, infoRenewal5, errorUser5, infoUnrelated)

	if records[1].IsRenewal() {
		t.Error("error record should not carry an outcome")
	}
	if records[2].IsRenewal() {
		t.Error("unrelated info record should not carry an outcome")
	}

	// An ERROR line with the renewal wording is not a renewal
	records = scanLines(t, c, strings.Replace(infoRenewal5, "INFO", "ERROR", 1))
	if records[0].IsRenewal() {
		t.Error("non-INFO renewal message should not carry an outcome")
	}
}

func TestCorrelator_RecordCountProperty(t *testing.T) {
	lines := []string{infoRenewal5, errorUser5, infoUnrelated, infoRenewal7}

	c := newTestCorrelator(t, Options{})
	if got := len(scanLines(t, c, lines...)); got != len(lines) {
		t.Errorf("well-formed input: got %d records, want %d", got, len(lines))
	}

	withBad := append([]string{missingLine, badTimestamp}, lines...)
	if got := len(scanLines(t, c, withBad...)); got >= len(withBad) {
		t.Errorf("input with bad lines: got %d records, want fewer than %d", got, len(withBad))
	}

	stats := c.Stats()
	if stats.Lines != int64(len(withBad)) || stats.Parsed != int64(len(lines)) {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Malformed != 1 || stats.BadTimestamp != 1 {
		t.Errorf("stats = %+v, want one malformed and one bad timestamp", stats)
	}
}

func TestCorrelator_ReadFailureReturnsPartial(t *testing.T) {
	c := newTestCorrelator(t, Options{})

	errBoom := errors.New("disk gone")
	r := io.MultiReader(
		strings.NewReader(infoRenewal5+"\n"+errorUser5+"\n"),
		iotest.ErrReader(errBoom),
	)

	records, err := c.Scan(context.Background(), r)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Scan() error = %v, want %v", err, errBoom)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 parsed before the failure", len(records))
	}
	if !records[0].Failed() {
		t.Error("correlation before the failure should be kept")
	}
}

func TestCorrelator_LineTooLongIsSkipped(t *testing.T) {
	sink := &recordingSink{}
	c := newTestCorrelator(t, Options{MaxLineSize: 256, Rejects: sink})

	long := "INFO | 2024-01-01 10:00:00,000 | file: a.py | line: 1 | [demon] " + strings.Repeat("x", 2048)
	records := scanLines(t, c, infoRenewal5, long, errorUser5, infoRenewal7)

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if !records[0].Failed() {
		t.Error("skipped line should not break adjacency of renewal and error")
	}
	if !records[2].Succeeded() {
		t.Error("lines after the long one should still be parsed")
	}

	stats := c.Stats()
	if stats.Lines != 4 || stats.Malformed != 1 {
		t.Errorf("stats = %+v, want 4 lines and 1 malformed", stats)
	}
	if len(sink.lines) != 1 || sink.lines[0] != 2 || sink.reasons[0] != "malformed" {
		t.Errorf("rejects = %v %v, want line 2 malformed", sink.lines, sink.reasons)
	}
}

func TestCorrelator_NonASCIISourceFile(t *testing.T) {
	c := newTestCorrelator(t, Options{})

	records := scanLines(t, c,
		"INFO | 2024-01-01 10:00:00,000 | file: демон.py | line: 1 | [demon] renewal update for user id: 5",
		"ERROR | 2024-01-01 10:00:01,000 | file: демон.py | line: 2 | [demon] error for user id: 5",
	)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].SourceFile != "демон.py" || !records[0].Failed() {
		t.Errorf("record = %+v, want a failed renewal from демон.py", records[0])
	}
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("short\r\n"+strings.Repeat("y", 1000)+"\nlast"), 64)

	line, tooLong, err := readLine(r)
	if err != nil || tooLong || line != "short" {
		t.Fatalf("readLine() = %q, %v, %v", line, tooLong, err)
	}

	line, tooLong, err = readLine(r)
	if err != nil || !tooLong || len(line) > rawPrefixSize || !strings.HasPrefix(line, "yyy") {
		t.Fatalf("readLine() = %d bytes, %v, %v; want a truncated prefix", len(line), tooLong, err)
	}

	line, tooLong, err = readLine(r)
	if err != nil || tooLong || line != "last" {
		t.Fatalf("readLine() = %q, %v, %v, want the unterminated last line", line, tooLong, err)
	}

	if _, _, err := readLine(r); err != io.EOF {
		t.Errorf("readLine() error = %v, want EOF", err)
	}
}

func TestCorrelator_Cancelled(t *testing.T) {
	c := newTestCorrelator(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := c.Scan(ctx, strings.NewReader(infoRenewal5+"\n"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Scan() error = %v, want %v", err, context.Canceled)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestCorrelator_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auto_purchase.log")
	content := strings.Join([]string{infoRenewal5, errorUser5, infoRenewal7}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write log file: %v", err)
	}

	c := newTestCorrelator(t, Options{})
	records := c.ParseFile(context.Background(), path)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	success, failure := tally(records)
	if success != 1 || failure != 1 {
		t.Errorf("outcomes = (%d, %d), want (1, 1)", success, failure)
	}

	// Parsing again yields the same result
	again := c.ParseFile(context.Background(), path)
	s2, f2 := tally(again)
	if len(again) != len(records) || s2 != success || f2 != failure {
		t.Errorf("second parse differs: %d records (%d, %d)", len(again), s2, f2)
	}
}

func TestCorrelator_ParseFileMissing(t *testing.T) {
	c := newTestCorrelator(t, Options{})

	records := c.ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.log"))
	if records == nil || len(records) != 0 {
		t.Errorf("ParseFile() = %v, want empty non-nil slice", records)
	}
}

type recordingSink struct {
	lines   []int
	reasons []string
}

func (s *recordingSink) Enqueue(line int, raw, reason string, cause error) error {
	s.lines = append(s.lines, line)
	s.reasons = append(s.reasons, reason)
	return nil
}

func TestCorrelator_RejectsAndMetrics(t *testing.T) {
	sink := &recordingSink{}
	collector := metrics.NewCollector()
	c := newTestCorrelator(t, Options{Rejects: sink, Metrics: collector})

	scanLines(t, c, infoRenewal5, errorUser5, missingLine, "", badTimestamp, infoRenewal7)

	if len(sink.lines) != 2 || sink.lines[0] != 3 || sink.lines[1] != 5 {
		t.Errorf("rejected lines = %v, want [3 5]", sink.lines)
	}
	if len(sink.reasons) != 2 || sink.reasons[0] != "malformed" || sink.reasons[1] != "bad_timestamp" {
		t.Errorf("reasons = %v", sink.reasons)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"parsed", testutil.ToFloat64(collector.LinesTotal.WithLabelValues(metrics.ResultParsed)), 3},
		{"blank", testutil.ToFloat64(collector.LinesTotal.WithLabelValues(metrics.ResultBlank)), 1},
		{"malformed", testutil.ToFloat64(collector.LinesTotal.WithLabelValues(metrics.ResultMalformed)), 1},
		{"bad timestamp", testutil.ToFloat64(collector.LinesTotal.WithLabelValues(metrics.ResultBadTimestamp)), 1},
		{"records", testutil.ToFloat64(collector.RecordsEmitted), 3},
		{"correlated", testutil.ToFloat64(collector.CorrelatedFailures), 1},
		{"success", testutil.ToFloat64(collector.RenewalOutcomes.WithLabelValues("success")), 1},
		{"failure", testutil.ToFloat64(collector.RenewalOutcomes.WithLabelValues("failure")), 1},
		{"rejects", testutil.ToFloat64(collector.RejectsWritten), 2},
	}
	for _, check := range checks {
		if check.got != check.want {
			t.Errorf("%s = %v, want %v", check.name, check.got, check.want)
		}
	}
}
