package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyMapsExpectedFailures(t *testing.T) {
	cases := []TestCase{
		{Name: "a", Status: TestStatusPassed},
		{Name: "b", Status: TestStatusFailed},
		{Name: "c", Status: TestStatusSkipped},
		{Name: "d", Status: TestStatusError},
		{Name: "e", Status: TestStatusXFail},
		{Name: "f", Status: TestStatusXPass},
	}
	s := Tally(cases)

	assert.Equal(t, 6, s.Total)
	// xfail is an expected outcome, xpass is not
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Errored)
	assert.True(t, s.Consistent())
}

func TestSummaryMerge(t *testing.T) {
	a := TestSummary{Total: 3, Passed: 2, Failed: 1}
	b := TestSummary{Total: 2, Skipped: 1, Errored: 1}
	a.Merge(b)
	assert.Equal(t, TestSummary{Total: 5, Passed: 2, Failed: 1, Skipped: 1, Errored: 1}, a)
	assert.True(t, a.Consistent())
}

func TestSummaryPassRate(t *testing.T) {
	assert.Zero(t, TestSummary{}.PassRate())
	assert.InDelta(t, 0.75, TestSummary{Total: 4, Passed: 3, Failed: 1}.PassRate(), 1e-9)
}

func TestTestCaseKey(t *testing.T) {
	assert.Equal(t, "tests/test_a.py::test_x", TestCase{Name: "test_x", File: "tests/test_a.py"}.Key())
	assert.Equal(t, "test_x", TestCase{Name: "test_x"}.Key())
}

func TestTestCaseJSONDurationSeconds(t *testing.T) {
	c := TestCase{Name: "slow", Status: TestStatusPassed, Duration: 1500 * time.Millisecond}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration_seconds":1.5`)

	var back TestCase
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c.Duration, back.Duration)
	assert.Equal(t, c.Status, back.Status)
}

func TestUnifiedTestResultsUsable(t *testing.T) {
	var nilResult *UnifiedTestResults
	assert.False(t, nilResult.Usable())

	assert.True(t, (&UnifiedTestResults{}).Usable())
	assert.False(t, (&UnifiedTestResults{Error: "timed out after 300s"}).Usable())
	// Partial parses keep their cases even when the run errored
	assert.True(t, (&UnifiedTestResults{
		Error: "timed out after 300s",
		Tests: []TestCase{{Name: "a", Status: TestStatusPassed}},
	}).Usable())
}

func TestCountsConsistent(t *testing.T) {
	cases := []TestCase{{Name: "a", Status: TestStatusPassed}}
	r := &UnifiedTestResults{Summary: Tally(cases), Tests: cases}
	assert.True(t, r.CountsConsistent())

	r.Summary.Passed = 5
	r.Summary.Total = 5
	assert.False(t, r.CountsConsistent())

	// A flagged error excuses the mismatch
	r.Error = "parse failed"
	assert.True(t, r.CountsConsistent())
}
