// Package report holds the read-only reporters that run over correlated records.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

// Reporter consumes the full record sequence without modifying it.
// Implementations must be safe to run concurrently with other reporters.
type Reporter interface {
	Name() string
	Report(ctx context.Context, records []*types.LogRecord) (Result, error)
}

// Result is the rendered outcome of a reporter
type Result interface {
	io.WriterTo
}

// FileResult is a result persisted to a file. Its console rendering is
// replaced by a log entry naming the file.
type FileResult interface {
	Result
	OutputPath() string
}

// Labels holds the human-readable strings of the reports
type Labels struct {
	Weekdays      [7]string // Monday first
	WeekdayHeader string
	WeekdayColumn string
	CountColumn   string
	Average       string
	Median        string
}

var builtinLabels = map[string]Labels{
	"en": {
		Weekdays:      [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		WeekdayHeader: "Successful renewals by weekday:",
		WeekdayColumn: "Weekday",
		CountColumn:   "Renewals",
		Average:       "Average",
		Median:        "Median",
	},
	"ru": {
		Weekdays:      [7]string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"},
		WeekdayHeader: "Количество обновлений подписки по дням недели:",
		WeekdayColumn: "День недели",
		CountColumn:   "Обновления",
		Average:       "Среднее",
		Median:        "Медиана",
	},
}

// LabelsFor returns the built-in labels for a locale
func LabelsFor(locale string) (Labels, error) {
	l, ok := builtinLabels[locale]
	if !ok {
		return Labels{}, fmt.Errorf("no report labels for locale: %s", locale)
	}
	return l, nil
}

// writeString adapts fmt.Fprint style output to io.WriterTo
func writeString(w io.Writer, s string) (int64, error) {
	n, err := io.WriteString(w, s)
	return int64(n), err
}
