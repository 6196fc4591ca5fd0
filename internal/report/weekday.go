package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

// Weekday report formats
const (
	FormatLines = "lines"
	FormatTable = "table"
)

// WeekdayCounts holds successful renewals per weekday, Monday at index 0
type WeekdayCounts [7]int

// MondayIndex maps a time.Weekday to a Monday-first index
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Total returns the sum over all weekdays
func (c WeekdayCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// CountByWeekday buckets successful INFO renewal records by the weekday of their
// timestamp. Weekdays without renewals stay at zero.
func CountByWeekday(records []*types.LogRecord) WeekdayCounts {
	var counts WeekdayCounts
	for _, r := range records {
		if r.Level == types.LevelInfo && r.Succeeded() {
			counts[MondayIndex(r.Timestamp.Weekday())]++
		}
	}
	return counts
}

// WeekdayReport renders weekday counts with localized names
type WeekdayReport struct {
	Counts WeekdayCounts
	Labels Labels
	Format string
}

// WriteTo renders the report, one weekday per line Monday to Sunday, or as a table
func (r WeekdayReport) WriteTo(w io.Writer) (int64, error) {
	if r.Format == FormatTable {
		t := table.NewWriter()
		t.AppendHeader(table.Row{r.Labels.WeekdayColumn, r.Labels.CountColumn})
		for i, name := range r.Labels.Weekdays {
			t.AppendRow(table.Row{name, r.Counts[i]})
		}
		t.AppendFooter(table.Row{"", r.Counts.Total()})

		// Labels are printed as given, never wrapped or upper-cased
		style := table.StyleLight
		style.Format.Header = text.FormatDefault
		style.Format.Footer = text.FormatDefault
		t.SetStyle(style)

		return writeString(w, r.Labels.WeekdayHeader+"\n"+t.Render()+"\n")
	}

	var b strings.Builder
	b.WriteString(r.Labels.WeekdayHeader)
	b.WriteByte('\n')
	for i, name := range r.Labels.Weekdays {
		fmt.Fprintf(&b, "%s: %d\n", name, r.Counts[i])
	}
	return writeString(w, b.String())
}

// WeekdayAggregator reports successful renewals per weekday
type WeekdayAggregator struct {
	labels Labels
	format string
}

// NewWeekdayAggregator creates the weekday reporter
func NewWeekdayAggregator(labels Labels, format string) *WeekdayAggregator {
	if format == "" {
		format = FormatLines
	}
	return &WeekdayAggregator{labels: labels, format: format}
}

// Name returns the reporter name
func (a *WeekdayAggregator) Name() string {
	return "weekday"
}

// Report implements Reporter
func (a *WeekdayAggregator) Report(_ context.Context, records []*types.LogRecord) (Result, error) {
	return WeekdayReport{
		Counts: CountByWeekday(records),
		Labels: a.labels,
		Format: a.format,
	}, nil
}
