package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/therealutkarshpriyadarshi/renewlog/pkg/types"
)

// Namespace for all metrics
const namespace = "renewlog"

// Line results used as the "result" label of LinesTotal
const (
	ResultParsed        = "parsed"
	ResultBlank         = "blank"
	ResultMalformed     = "malformed"
	ResultBadTimestamp  = "bad_timestamp"
	ResultBadLineNumber = "bad_line_number"
)

// Collector provides a central place for all application metrics
type Collector struct {
	// Scan metrics
	LinesTotal         *prometheus.CounterVec
	RecordsEmitted     prometheus.Counter
	ScanAborted        prometheus.Counter
	CorrelatedFailures prometheus.Counter

	// Renewal metrics
	RenewalOutcomes *prometheus.CounterVec

	// Report metrics
	ReportDuration *prometheus.HistogramVec
	ReportErrors   *prometheus.CounterVec

	// Dead letter metrics
	RejectsWritten prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector on a private registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	c := &Collector{
		registry: registry,
	}

	c.initScanMetrics()
	c.initReportMetrics()

	return c
}

func (c *Collector) initScanMetrics() {
	factory := promauto.With(c.registry)

	c.LinesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "lines_total",
			Help:      "Input lines seen, by result",
		},
		[]string{"result"},
	)

	c.RecordsEmitted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "records_emitted_total",
		Help:      "Structured records emitted by the correlator",
	})

	c.ScanAborted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "aborted_total",
		Help:      "Scans stopped early by a read failure",
	})

	c.CorrelatedFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scan",
		Name:      "correlated_failures_total",
		Help:      "Renewal records downgraded to failure by an adjacent error line",
	})

	c.RenewalOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "renewal",
			Name:      "outcomes_total",
			Help:      "Renewal attempts by final outcome",
		},
		[]string{"outcome"},
	)

	c.RejectsWritten = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dlq",
		Name:      "rejects_written_total",
		Help:      "Skipped lines written to the rejects file",
	})
}

func (c *Collector) initReportMetrics() {
	factory := promauto.With(c.registry)

	c.ReportDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "Time taken by each reporter",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		},
		[]string{"reporter"},
	)

	c.ReportErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "errors_total",
			Help:      "Reporter failures",
		},
		[]string{"reporter"},
	)
}

// ObserveLine counts one input line by result
func (c *Collector) ObserveLine(result string) {
	if c == nil {
		return
	}
	c.LinesTotal.WithLabelValues(result).Inc()
}

// ObserveOutcomes counts final renewal outcomes once correlation is complete
func (c *Collector) ObserveOutcomes(records []*types.LogRecord) {
	if c == nil {
		return
	}
	for _, r := range records {
		switch {
		case r.Succeeded():
			c.RenewalOutcomes.WithLabelValues("success").Inc()
		case r.Failed():
			c.RenewalOutcomes.WithLabelValues("failure").Inc()
		}
	}
}

// Registry returns the prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes every metric in the text exposition format, suitable for the
// node exporter textfile collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
