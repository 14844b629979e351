package types

import (
	"encoding/json"
	"time"
)

// TestCase is the canonical record for one executed test. Immutable once
// parsed. Project is empty until the case is folded into an aggregate.
type TestCase struct {
	Name     string
	Status   TestStatus
	Duration time.Duration
	File     string
	Message  string
	Project  string
}

type testCaseJSON struct {
	Name            string     `json:"name"`
	Status          TestStatus `json:"status"`
	DurationSeconds float64    `json:"duration_seconds"`
	File            string     `json:"file,omitempty"`
	Message         string     `json:"message,omitempty"`
	Project         string     `json:"project,omitempty"`
}

// MarshalJSON encodes durations as seconds, the wire representation shared
// with every framework's own report format.
func (c TestCase) MarshalJSON() ([]byte, error) {
	return json.Marshal(testCaseJSON{
		Name:            c.Name,
		Status:          c.Status,
		DurationSeconds: c.Duration.Seconds(),
		File:            c.File,
		Message:         c.Message,
		Project:         c.Project,
	})
}

func (c *TestCase) UnmarshalJSON(data []byte) error {
	var raw testCaseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Name = raw.Name
	c.Status = raw.Status
	c.Duration = time.Duration(raw.DurationSeconds * float64(time.Second))
	c.File = raw.File
	c.Message = raw.Message
	c.Project = raw.Project
	return nil
}

// Key identifies a test across runs and projects. Correlation is always by
// key, never by slice position.
func (c TestCase) Key() string {
	if c.File == "" {
		return c.Name
	}
	return c.File + "::" + c.Name
}

// TestSummary holds the canonical counts for one run.
type TestSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// Add folds one status into the summary. Expected failures count as passed;
// unexpected passes count as failed.
func (s *TestSummary) Add(status TestStatus) {
	s.Total++
	switch status {
	case TestStatusPassed, TestStatusXFail:
		s.Passed++
	case TestStatusFailed, TestStatusXPass:
		s.Failed++
	case TestStatusSkipped:
		s.Skipped++
	case TestStatusError:
		s.Errored++
	}
}

// Merge adds another summary's counts into s.
func (s *TestSummary) Merge(other TestSummary) {
	s.Total += other.Total
	s.Passed += other.Passed
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.Errored += other.Errored
}

// Consistent reports whether the per-status counts add up to the total.
func (s TestSummary) Consistent() bool {
	return s.Passed+s.Failed+s.Skipped+s.Errored == s.Total
}

// PassRate returns passed/total, or 0 for an empty summary.
func (s TestSummary) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total)
}

// Tally recomputes a summary from parsed cases. The parsed evidence is
// authoritative over any framework self-reported totals.
func Tally(cases []TestCase) TestSummary {
	var s TestSummary
	for _, c := range cases {
		s.Add(c.Status)
	}
	return s
}

// UnifiedTestResults is the canonical outcome of one runner invocation.
// Created once, never mutated, owned by the caller until folded into an
// aggregate.
type UnifiedTestResults struct {
	ProjectPath string            `json:"project"`
	Framework   DetectedFramework `json:"framework"`
	Summary     TestSummary       `json:"summary"`
	Tests       []TestCase        `json:"tests"`
	Error       string            `json:"error,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Usable reports whether the result carries data worth aggregating. A result
// with an error can still be usable when a partial parse salvaged cases.
func (r *UnifiedTestResults) Usable() bool {
	return r != nil && (r.Error == "" || len(r.Tests) > 0)
}

// CountsConsistent checks the core invariant: either the summary matches the
// parsed case list, or the result is flagged as degraded via Error.
func (r *UnifiedTestResults) CountsConsistent() bool {
	if r.Error != "" {
		return true
	}
	return r.Summary.Total == len(r.Tests) && r.Summary.Consistent()
}

// AggregatedResult is the fold of many UnifiedTestResults. Building it never
// mutates the inputs.
type AggregatedResult struct {
	// Framework is the strictly most frequent framework among the inputs,
	// or "mixed" when no framework holds an absolute majority.
	Framework        string            `json:"framework"`
	Summary          TestSummary       `json:"summary"`
	Tests            []TestCase        `json:"tests"`
	PerProjectStatus map[string]string `json:"per_project_status"`
}
