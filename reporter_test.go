package polytest

import (
	"testing"
	"time"

	"github.com/polytest/polytest/runner"
	"github.com/polytest/polytest/types"
)

// TestDefaultMetricsReporter_ReportResults mostly checks that reporting a
// mixed run does not panic; the metrics package is a global registry, so the
// calls themselves are not intercepted here.
func TestDefaultMetricsReporter_ReportResults(t *testing.T) {
	api := &types.UnifiedTestResults{
		ProjectPath: "/proj/api",
		Framework:   types.DetectedFramework{Framework: types.FrameworkPytest},
		Summary:     types.TestSummary{Total: 5, Passed: 5},
	}
	result := &runner.MultiProjectResult{
		RunID:              "test-run-1",
		Status:             runner.RunStatusPartial,
		SuccessfulProjects: []string{"/proj/api"},
		FailedProjects:     []string{"/proj/web"},
		Errors:             map[string]string{"/proj/web": "npx: command not found"},
		Results:            map[string]*types.UnifiedTestResults{"/proj/api": api},
		Aggregated:         runner.NewAggregator().Aggregate([]*types.UnifiedTestResults{api}),
		Duration:           100 * time.Millisecond,
	}

	reporter := NewDefaultMetricsReporter()
	reporter.ReportResults(result)
}

func TestDefaultMetricsReporter_ReportResults_EmptyRun(t *testing.T) {
	result := &runner.MultiProjectResult{
		RunID:      "test-run-2",
		Status:     runner.RunStatusSuccess,
		Results:    map[string]*types.UnifiedTestResults{},
		Aggregated: runner.NewAggregator().Aggregate(nil),
	}

	reporter := NewDefaultMetricsReporter()
	reporter.ReportResults(result)
}
