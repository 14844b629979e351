package analysis

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/polytest/polytest/types"
)

// Health statuses, from worst to best.
const (
	HealthUnhealthy = "unhealthy"
	HealthDegraded  = "degraded"
	HealthHealthy   = "healthy"
)

// HealthThresholds are the pass-rate cut points for the health verdict.
// Rates below UnhealthyBelow are unhealthy, rates at or above HealthyAtLeast
// are healthy, everything between is degraded.
type HealthThresholds struct {
	UnhealthyBelow float64
	HealthyAtLeast float64
}

// DefaultHealthThresholds reflect the conventional 50%/90% cut points.
var DefaultHealthThresholds = HealthThresholds{
	UnhealthyBelow: 0.5,
	HealthyAtLeast: 0.9,
}

func (t HealthThresholds) validate() error {
	if t.UnhealthyBelow < 0 || t.HealthyAtLeast > 1 || t.UnhealthyBelow > t.HealthyAtLeast {
		return fmt.Errorf("invalid health thresholds: unhealthy below %v, healthy at least %v", t.UnhealthyBelow, t.HealthyAtLeast)
	}
	return nil
}

// HealthVerdict is the outcome of validating an aggregate result.
type HealthVerdict struct {
	Status   string   `json:"status"`
	PassRate float64  `json:"pass_rate"`
	Reasons  []string `json:"reasons,omitempty"`
}

// FlakyTest identifies a test whose outcome differed across repeated runs.
type FlakyTest struct {
	Name      string             `json:"name"`
	File      string             `json:"file"`
	Statuses  []types.TestStatus `json:"statuses"`
	FlipCount int                `json:"flip_count"`
}

// RunComparison describes how a current run moved relative to a baseline.
// Test identity is the (file, name) pair.
type RunComparison struct {
	NewlyFailing  []string `json:"newly_failing"`
	NewlyPassing  []string `json:"newly_passing"`
	Added         []string `json:"added"`
	Removed       []string `json:"removed"`
	PassRateDelta float64  `json:"pass_rate_delta"`
}

// Analyzer derives health, performance and stability insights from unified
// results.
type Analyzer struct {
	thresholds HealthThresholds
	log        *slog.Logger
}

// New creates an analyzer with the given thresholds. Zero-value thresholds
// fall back to the defaults.
func New(log *slog.Logger, thresholds HealthThresholds) (*Analyzer, error) {
	if thresholds == (HealthThresholds{}) {
		thresholds = DefaultHealthThresholds
	}
	if err := thresholds.validate(); err != nil {
		return nil, err
	}
	return &Analyzer{thresholds: thresholds, log: log}, nil
}

// ValidateTestHealth classifies an aggregate result by pass rate. An
// aggregate with no tests at all cannot be called healthy, but nothing
// failed either, so it lands on degraded.
func (a *Analyzer) ValidateTestHealth(agg *types.AggregatedResult) HealthVerdict {
	if agg == nil || agg.Summary.Total == 0 {
		return HealthVerdict{
			Status:  HealthDegraded,
			Reasons: []string{"no tests were run"},
		}
	}

	rate := agg.Summary.PassRate()
	verdict := HealthVerdict{PassRate: rate}
	switch {
	case rate < a.thresholds.UnhealthyBelow:
		verdict.Status = HealthUnhealthy
	case rate < a.thresholds.HealthyAtLeast:
		verdict.Status = HealthDegraded
	default:
		verdict.Status = HealthHealthy
	}

	if agg.Summary.Failed > 0 {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("%d tests failed", agg.Summary.Failed))
	}
	if agg.Summary.Errored > 0 {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("%d tests errored", agg.Summary.Errored))
	}
	for project, status := range agg.PerProjectStatus {
		if status == "error" {
			verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("project %s reported an error", project))
		}
	}
	sort.Strings(verdict.Reasons)
	return verdict
}

// AnalyzePerformance returns the cases whose duration exceeds the threshold,
// slowest first. The input is never reordered, so repeated calls over the
// same slice give the same answer.
func (a *Analyzer) AnalyzePerformance(cases []types.TestCase, threshold time.Duration) []types.TestCase {
	var outliers []types.TestCase
	for _, c := range cases {
		if c.Duration > threshold {
			outliers = append(outliers, c)
		}
	}
	sort.SliceStable(outliers, func(i, j int) bool {
		return outliers[i].Duration > outliers[j].Duration
	})
	return outliers
}

// DetectFlakyTests groups the cases of repeated runs by (file, name) and
// reports every test that did not produce the same status each time. The
// flip count is the number of status changes between consecutive runs.
func (a *Analyzer) DetectFlakyTests(runs []*types.UnifiedTestResults) []FlakyTest {
	type history struct {
		name, file string
		statuses   []types.TestStatus
	}
	byKey := make(map[string]*history)
	var order []string

	for _, run := range runs {
		if run == nil {
			continue
		}
		for _, c := range run.Tests {
			key := c.Key()
			h, ok := byKey[key]
			if !ok {
				h = &history{name: c.Name, file: c.File}
				byKey[key] = h
				order = append(order, key)
			}
			h.statuses = append(h.statuses, c.Status)
		}
	}

	var flaky []FlakyTest
	for _, key := range order {
		h := byKey[key]
		if len(h.statuses) < 2 {
			continue
		}
		flips := 0
		for i := 1; i < len(h.statuses); i++ {
			if h.statuses[i] != h.statuses[i-1] {
				flips++
			}
		}
		if flips == 0 {
			continue
		}
		flaky = append(flaky, FlakyTest{
			Name:      h.name,
			File:      h.file,
			Statuses:  h.statuses,
			FlipCount: flips,
		})
	}
	sort.Slice(flaky, func(i, j int) bool {
		if flaky[i].FlipCount != flaky[j].FlipCount {
			return flaky[i].FlipCount > flaky[j].FlipCount
		}
		return flaky[i].Name < flaky[j].Name
	})
	return flaky
}

// CompareResults diffs a current run against a baseline. Identical inputs
// produce the empty comparison.
func (a *Analyzer) CompareResults(baseline, current *types.UnifiedTestResults) RunComparison {
	var comparison RunComparison
	if baseline == nil || current == nil {
		return comparison
	}

	base := indexByKey(baseline.Tests)
	curr := indexByKey(current.Tests)

	for key, c := range curr {
		b, existed := base[key]
		if !existed {
			comparison.Added = append(comparison.Added, key)
			continue
		}
		if c.Status.IsFailure() && !b.Status.IsFailure() {
			comparison.NewlyFailing = append(comparison.NewlyFailing, key)
		}
		if !c.Status.IsFailure() && b.Status.IsFailure() {
			comparison.NewlyPassing = append(comparison.NewlyPassing, key)
		}
	}
	for key := range base {
		if _, still := curr[key]; !still {
			comparison.Removed = append(comparison.Removed, key)
		}
	}

	sort.Strings(comparison.NewlyFailing)
	sort.Strings(comparison.NewlyPassing)
	sort.Strings(comparison.Added)
	sort.Strings(comparison.Removed)
	comparison.PassRateDelta = current.Summary.PassRate() - baseline.Summary.PassRate()
	return comparison
}

func indexByKey(cases []types.TestCase) map[string]types.TestCase {
	m := make(map[string]types.TestCase, len(cases))
	for _, c := range cases {
		m[c.Key()] = c
	}
	return m
}
