package polytest

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/polytest/polytest/analysis"
	"github.com/polytest/polytest/runner"
	"github.com/polytest/polytest/types"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(result *runner.MultiProjectResult, health analysis.HealthVerdict, outliers []types.TestCase) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger  *slog.Logger
	out     io.Writer
	verbose bool
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter. Verbose
// lists every test case per project instead of only the failing ones.
func NewConsoleResultFormatter(logger *slog.Logger, verbose bool) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger:  logger,
		out:     os.Stdout,
		verbose: verbose,
	}
}

// FormatResults formats and displays the test results.
func (f *ConsoleResultFormatter) FormatResults(result *runner.MultiProjectResult, health analysis.HealthVerdict, outliers []types.TestCase) error {
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Project", "Framework", "Tests", "Passed", "Failed", "Skipped", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Project", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, path := range result.SuccessfulProjects {
		res := result.Results[path]
		t.AppendRow(table.Row{
			path,
			res.Framework.Framework,
			res.Summary.Total,
			res.Summary.Passed,
			res.Summary.Failed,
			res.Summary.Skipped,
			result.Aggregated.PerProjectStatus[path],
			res.Error,
		})

		for _, c := range res.Tests {
			if !f.verbose && !c.Status.IsFailure() {
				continue
			}
			t.AppendRow(table.Row{
				fmt.Sprintf("└─ %s", c.Name),
				"",
				"1",
				boolToInt(c.Status == types.TestStatusPassed || c.Status == types.TestStatusXFail),
				boolToInt(c.Status.IsFailure()),
				boolToInt(c.Status == types.TestStatusSkipped),
				c.Status,
				c.Message,
			})
		}
	}

	for _, path := range result.FailedProjects {
		t.AppendRow(table.Row{
			path, "-", "-", "-", "-", "-", "error", result.Errors[path],
		})
	}

	switch health.Status {
	case analysis.HealthHealthy:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case analysis.HealthDegraded:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		result.Aggregated.Framework,
		result.Aggregated.Summary.Total,
		result.Aggregated.Summary.Passed,
		result.Aggregated.Summary.Failed,
		result.Aggregated.Summary.Skipped,
		result.Status,
		"",
	})

	t.Render()

	fmt.Fprintf(f.out, "Health: %s (pass rate %.1f%%)\n", health.Status, health.PassRate*100)
	for _, reason := range health.Reasons {
		fmt.Fprintf(f.out, "  - %s\n", reason)
	}

	if len(outliers) > 0 {
		f.renderOutliers(outliers)
	}

	return nil
}

// renderOutliers prints the slow-test table, slowest first.
func (f *ConsoleResultFormatter) renderOutliers(outliers []types.TestCase) {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle("Performance Outliers")
	t.AppendHeader(table.Row{"Test", "Project", "File", "Duration"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})
	for _, c := range outliers {
		t.AppendRow(table.Row{c.Name, c.Project, c.File, formatDuration(c.Duration)})
	}
	t.Render()
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
