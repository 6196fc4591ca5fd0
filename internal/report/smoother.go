package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/renewlog/internal/parser"
	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

// DefaultSmoothingOutput is the file the smoothing report is written to
const DefaultSmoothingOutput = "auto_renewal_sub.txt"

// DailyTotal is the largest processed counter reported for one date
type DailyTotal struct {
	Date  string
	Value int
}

// DailyMaxima keeps the maximum counter per date, dates in first-seen order
func DailyMaxima(records []*types.LogRecord, patterns *parser.Patterns) []DailyTotal {
	index := make(map[string]int)
	var totals []DailyTotal

	for _, r := range records {
		if r.Level != types.LevelInfo {
			continue
		}
		date, value, ok := patterns.DailyTotalOf(r.Message)
		if !ok {
			continue
		}

		if i, seen := index[date]; seen {
			if totals[i].Value < value {
				totals[i].Value = value
			}
			continue
		}
		index[date] = len(totals)
		totals = append(totals, DailyTotal{Date: date, Value: value})
	}

	return totals
}

// RunningMean returns the mean of every prefix, rounded to two decimals
func RunningMean(values []int) []float64 {
	means := make([]float64, 0, len(values))
	sum := 0
	for i, v := range values {
		sum += v
		means = append(means, roundTo(float64(sum)/float64(i+1), 2))
	}
	return means
}

// RunningMedian returns the median of every prefix rounded half to even.
// Even-length prefixes use the mean of the two middle values.
func RunningMedian(values []int) []int {
	medians := make([]int, 0, len(values))
	sorted := make([]int, 0, len(values))
	for _, v := range values {
		i := sort.SearchInts(sorted, v)
		sorted = append(sorted, 0)
		copy(sorted[i+1:], sorted[i:])
		sorted[i] = v

		n := len(sorted)
		var median float64
		if n%2 == 1 {
			median = float64(sorted[n/2])
		} else {
			median = (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
		}
		medians = append(medians, int(math.RoundToEven(median)))
	}
	return medians
}

// roundTo rounds the exact binary value of f to the given decimals, ties to even
func roundTo(f float64, decimals int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', decimals, 64), 64)
	if err != nil {
		return f
	}
	return r
}

// Smoothing is the result of the daily counter smoother
type Smoothing struct {
	Totals []DailyTotal
	Mean   []float64
	Median []int
	Labels Labels
	Output string // File the report is written to
}

// OutputPath implements FileResult
func (s Smoothing) OutputPath() string {
	return s.Output
}

// WriteTo renders the two report lines
func (s Smoothing) WriteTo(w io.Writer) (int64, error) {
	means := make([]string, len(s.Mean))
	for i, m := range s.Mean {
		means[i] = formatFloat(m)
	}
	medians := make([]string, len(s.Median))
	for i, m := range s.Median {
		medians[i] = strconv.Itoa(m)
	}

	return writeString(w, fmt.Sprintf("%s: [%s]\n%s: [%s]\n",
		s.Labels.Average, strings.Join(means, ", "),
		s.Labels.Median, strings.Join(medians, ", "),
	))
}

// formatFloat prints whole numbers with a trailing ".0"
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// DailyCounterSmoother computes running mean and median of the daily processed
// counter and writes them to a file
type DailyCounterSmoother struct {
	patterns   *parser.Patterns
	labels     Labels
	outputPath string
}

// NewDailyCounterSmoother creates the smoothing reporter
func NewDailyCounterSmoother(patterns *parser.Patterns, labels Labels, outputPath string) *DailyCounterSmoother {
	if outputPath == "" {
		outputPath = DefaultSmoothingOutput
	}
	return &DailyCounterSmoother{
		patterns:   patterns,
		labels:     labels,
		outputPath: outputPath,
	}
}

// Name returns the reporter name
func (s *DailyCounterSmoother) Name() string {
	return "daily_smoothing"
}

// Smooth computes the smoothing result without writing it anywhere
func (s *DailyCounterSmoother) Smooth(records []*types.LogRecord) Smoothing {
	totals := DailyMaxima(records, s.patterns)
	values := make([]int, len(totals))
	for i, t := range totals {
		values[i] = t.Value
	}

	return Smoothing{
		Totals: totals,
		Mean:   RunningMean(values),
		Median: RunningMedian(values),
		Labels: s.labels,
		Output: s.outputPath,
	}
}

// Report implements Reporter. The output file is overwritten on every run.
func (s *DailyCounterSmoother) Report(_ context.Context, records []*types.LogRecord) (Result, error) {
	result := s.Smooth(records)

	var buf bytes.Buffer
	if _, err := result.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render smoothing report: %w", err)
	}
	if err := os.WriteFile(s.outputPath, buf.Bytes(), 0644); err != nil {
		return result, fmt.Errorf("failed to write smoothing report: %w", err)
	}

	return result, nil
}
