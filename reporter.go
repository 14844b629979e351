package polytest

import (
	"github.com/polytest/polytest/metrics"
	"github.com/polytest/polytest/runner"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(result *runner.MultiProjectResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the test results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(result *runner.MultiProjectResult) {
	metrics.RecordRun(
		result.RunID,
		result.Status,
		result.Aggregated.Summary.Total,
		result.Aggregated.Summary.Passed,
		result.Aggregated.Summary.Failed,
		result.Duration,
	)

	for path, res := range result.Results {
		metrics.RecordProjectRun(result.RunID, res.Framework.Framework.String(), result.Aggregated.PerProjectStatus[path])
	}
	for range result.Errors {
		metrics.RecordProjectRun(result.RunID, "unknown", "error")
	}
}
