package report

import (
	"context"
	"fmt"
	"io"

	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

// Outcomes is the tally of renewal attempts
type Outcomes struct {
	Success int
	Failure int
}

// WriteTo renders the tally as "(success, failure)"
func (o Outcomes) WriteTo(w io.Writer) (int64, error) {
	return writeString(w, fmt.Sprintf("(%d, %d)\n", o.Success, o.Failure))
}

// CountOutcomes counts INFO renewal records by outcome. Records without an
// outcome and non-INFO records are ignored.
func CountOutcomes(records []*types.LogRecord) Outcomes {
	var o Outcomes
	for _, r := range records {
		if r.Level != types.LevelInfo {
			continue
		}
		switch {
		case r.Succeeded():
			o.Success++
		case r.Failed():
			o.Failure++
		}
	}
	return o
}

// SuccessFailureCounter reports how many renewals succeeded and failed
type SuccessFailureCounter struct{}

// NewSuccessFailureCounter creates the counter reporter
func NewSuccessFailureCounter() *SuccessFailureCounter {
	return &SuccessFailureCounter{}
}

// Name returns the reporter name
func (c *SuccessFailureCounter) Name() string {
	return "success_failure"
}

// Report implements Reporter
func (c *SuccessFailureCounter) Report(_ context.Context, records []*types.LogRecord) (Result, error) {
	return CountOutcomes(records), nil
}
