package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/polytest/polytest/types"
)

// TestStability aggregates one test's outcomes across repeated runs.
type TestStability struct {
	Name           string        `json:"name"`
	File           string        `json:"file"`
	TotalRuns      int           `json:"total_runs"`
	Passes         int           `json:"passes"`
	Failures       int           `json:"failures"`
	Skipped        int           `json:"skipped"`
	PassRate       float64       `json:"pass_rate"`
	AvgDuration    time.Duration `json:"avg_duration"`
	MinDuration    time.Duration `json:"min_duration"`
	MaxDuration    time.Duration `json:"max_duration"`
	FailureLogs    []string      `json:"failure_logs,omitempty"`
	Recommendation string        `json:"recommendation"`
}

// StabilityReport is the stability analysis of N repeated runs of the same
// projects.
type StabilityReport struct {
	Date        string          `json:"date"`
	Iterations  int             `json:"iterations"`
	Tests       []TestStability `json:"tests"`
	FlakyTests  []FlakyTest     `json:"flaky_tests"`
	GeneratedAt time.Time       `json:"generated_at"`
	RunID       string          `json:"run_id"`
}

const maxFailureLogsPerTest = 5

// BuildStabilityReport condenses repeated runs into per-test stability
// numbers plus the flaky-test listing.
func (a *Analyzer) BuildStabilityReport(runID string, runs []*types.UnifiedTestResults) *StabilityReport {
	report := &StabilityReport{
		Date:        time.Now().Format("2006-01-02"),
		Iterations:  len(runs),
		FlakyTests:  a.DetectFlakyTests(runs),
		GeneratedAt: time.Now(),
		RunID:       runID,
	}

	byKey := make(map[string]*TestStability)
	totals := make(map[string]time.Duration)
	var order []string

	for _, run := range runs {
		if run == nil {
			continue
		}
		for _, c := range run.Tests {
			key := c.Key()
			stat, ok := byKey[key]
			if !ok {
				// Min/max seed from the first observed sample
				stat = &TestStability{Name: c.Name, File: c.File, MinDuration: c.Duration, MaxDuration: c.Duration}
				byKey[key] = stat
				order = append(order, key)
			}
			stat.TotalRuns++
			switch {
			case c.Status == types.TestStatusSkipped:
				stat.Skipped++
			case c.Status.IsFailure():
				stat.Failures++
				if c.Message != "" && len(stat.FailureLogs) < maxFailureLogsPerTest {
					stat.FailureLogs = append(stat.FailureLogs, c.Message)
				}
			default:
				stat.Passes++
			}
			totals[key] += c.Duration
			if c.Duration < stat.MinDuration {
				stat.MinDuration = c.Duration
			}
			if c.Duration > stat.MaxDuration {
				stat.MaxDuration = c.Duration
			}
		}
	}

	for _, key := range order {
		stat := byKey[key]
		if stat.TotalRuns > 0 {
			stat.AvgDuration = totals[key] / time.Duration(stat.TotalRuns)
			stat.PassRate = float64(stat.Passes) / float64(stat.TotalRuns) * 100
		}
		if stat.Failures == 0 {
			stat.Recommendation = "STABLE"
		} else {
			stat.Recommendation = "UNSTABLE"
		}
		report.Tests = append(report.Tests, *stat)
	}
	sort.Slice(report.Tests, func(i, j int) bool {
		if report.Tests[i].PassRate != report.Tests[j].PassRate {
			return report.Tests[i].PassRate < report.Tests[j].PassRate
		}
		return report.Tests[i].Name < report.Tests[j].Name
	})
	return report
}

// SaveStabilityReport writes the report as JSON and HTML into outputDir and
// returns the paths written. A failure in one format does not prevent the
// other from being written.
func SaveStabilityReport(report *StabilityReport, outputDir string) ([]string, error) {
	var savedFiles []string
	var errorsList []error

	jsonFilename := filepath.Join(outputDir, "stability-report.json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		errorsList = append(errorsList, fmt.Errorf("failed to marshal JSON: %w", err))
	} else if err := os.WriteFile(jsonFilename, data, 0644); err != nil {
		errorsList = append(errorsList, fmt.Errorf("failed to write JSON file: %w", err))
	} else {
		savedFiles = append(savedFiles, jsonFilename)
	}

	htmlFilename := filepath.Join(outputDir, "stability-report.html")
	if err := saveHTMLReport(report, htmlFilename); err != nil {
		errorsList = append(errorsList, fmt.Errorf("failed to save HTML report: %w", err))
	} else {
		savedFiles = append(savedFiles, htmlFilename)
	}

	if len(errorsList) > 0 {
		errMsg := "failed to save some report formats:"
		for _, e := range errorsList {
			errMsg += "\n  - " + e.Error()
		}
		return savedFiles, errors.New(errMsg)
	}
	return savedFiles, nil
}

func saveHTMLReport(report *StabilityReport, filename string) error {
	htmlTemplate := `<!DOCTYPE html>
<html>
<head>
    <title>Stability Report - {{.Date}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        h1 { color: #333; }
        .summary { background: #f5f5f5; padding: 15px; border-radius: 5px; margin: 20px 0; }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
        th { background: #4CAF50; color: white; }
        .pass-rate-100 { color: #4CAF50; font-weight: bold; }
        .pass-rate-low { color: #f44336; }
        .recommendation-STABLE { color: #4CAF50; font-weight: bold; }
        .recommendation-UNSTABLE { color: #f44336; font-weight: bold; }
        details { margin: 10px 0; }
        summary { cursor: pointer; padding: 5px; background: #f0f0f0; }
        .failure-log { background: #ffebee; padding: 10px; margin: 5px 0; font-family: monospace; font-size: 12px; white-space: pre-wrap; }
    </style>
</head>
<body>
    <h1>Stability Report</h1>
    <div class="summary">
        <p><strong>Date:</strong> {{.Date}}</p>
        <p><strong>Iterations:</strong> {{.Iterations}}</p>
        <p><strong>Run ID:</strong> {{.RunID}}</p>
        <p><strong>Flaky tests:</strong> {{len .FlakyTests}}</p>
    </div>

    <h2>Test Results</h2>
    <table>
        <tr>
            <th>Test Name</th>
            <th>File</th>
            <th>Runs</th>
            <th>Pass Rate</th>
            <th>Avg Duration</th>
            <th>Recommendation</th>
            <th>Details</th>
        </tr>
        {{range .Tests}}
        <tr>
            <td>{{.Name}}</td>
            <td style="font-size: 12px;">{{.File}}</td>
            <td>{{.TotalRuns}}</td>
            <td class="pass-rate-{{if eq .PassRate 100.0}}100{{else}}low{{end}}">
                {{printf "%.1f" .PassRate}}%
            </td>
            <td>{{.AvgDuration}}</td>
            <td class="recommendation-{{.Recommendation}}">{{.Recommendation}}</td>
            <td>
                {{if gt .Failures 0}}
                <details>
                    <summary>{{.Failures}} failure(s)</summary>
                    {{range .FailureLogs}}
                    <div class="failure-log">{{.}}</div>
                    {{end}}
                </details>
                {{else}}
                <span style="color: #4CAF50;">&#10003; All passed</span>
                {{end}}
            </td>
        </tr>
        {{end}}
    </table>
</body>
</html>`

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return tmpl.Execute(file, report)
}
