package runner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/polytest/polytest/types"
)

// pytestStrategy drives pytest. Pytest's machine-readable report requires a
// third-party plugin, so this strategy relies on the verbose text format,
// which has been stable across major versions: one result line per test plus
// a short-summary section for failure messages.
type pytestStrategy struct{}

func (s *pytestStrategy) Framework() types.TestFramework {
	return types.FrameworkPytest
}

func (s *pytestStrategy) BuildCommand(req types.TestRunRequest) Command {
	args := []string{"-v", "--tb=short", "--color=no", "--durations=0"}
	if req.TestPattern != "" {
		args = append(args, "-k", req.TestPattern)
	}
	if req.TestFile != "" {
		args = append(args, req.TestFile)
	}
	return Command{Bin: "pytest", Args: args}
}

// Pytest exits 1 when tests failed and 5 when no tests were collected.
// Neither indicates a crashed process.
func (s *pytestStrategy) ExplainsExit(code int) bool {
	return code == 1 || code == 5
}

var (
	// tests/test_math.py::test_add[3-4] FAILED [ 66%]
	pytestResultLine = regexp.MustCompile(`^(\S+\.py)::(\S+)\s+(PASSED|FAILED|ERROR|SKIPPED|XFAIL|XPASS)\b`)
	// FAILED tests/test_math.py::test_add - AssertionError: boom
	pytestSummaryLine = regexp.MustCompile(`^(FAILED|ERROR|SKIPPED|XFAIL|XPASS)\s+(\S+\.py)::(\S+?)(?:\s+-\s+(.*))?$`)
	// 0.35s call     tests/test_math.py::test_add
	pytestDurationLine = regexp.MustCompile(`^([0-9.]+)s\s+call\s+(\S+\.py)::(\S+)$`)
	// ========= 2 passed, 1 failed, 1 skipped in 1.23s =========
	pytestTotalsLine = regexp.MustCompile(`^=+\s+(.+?)\s+in\s+[0-9.]+s.*=+$`)
)

var pytestStatusMap = map[string]types.TestStatus{
	"PASSED":  types.TestStatusPassed,
	"FAILED":  types.TestStatusFailed,
	"ERROR":   types.TestStatusError,
	"SKIPPED": types.TestStatusSkipped,
	"XFAIL":   types.TestStatusXFail,
	"XPASS":   types.TestStatusXPass,
}

func (s *pytestStrategy) Parse(output []byte) (ParseOutput, error) {
	var out ParseOutput
	index := make(map[string]int) // case key -> position in out.Cases

	lines := strings.Split(string(output), "\n")
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		if m := pytestResultLine.FindStringSubmatch(line); m != nil {
			file, name, verdict := m[1], m[2], m[3]
			c := types.TestCase{
				Name:   name,
				File:   file,
				Status: pytestStatusMap[verdict],
			}
			key := file + "::" + name
			if i, seen := index[key]; seen {
				out.Cases[i] = c
			} else {
				index[key] = len(out.Cases)
				out.Cases = append(out.Cases, c)
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if m := pytestSummaryLine.FindStringSubmatch(trimmed); m != nil {
			key := m[2] + "::" + m[3]
			if i, seen := index[key]; seen && m[4] != "" {
				out.Cases[i].Message = m[4]
			}
			continue
		}

		if m := pytestDurationLine.FindStringSubmatch(trimmed); m != nil {
			if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
				if i, seen := index[m[2]+"::"+m[3]]; seen {
					out.Cases[i].Duration = seconds(secs)
				}
			}
			continue
		}

		if m := pytestTotalsLine.FindStringSubmatch(trimmed); m != nil {
			if reported := parsePytestTotals(m[1]); reported != nil {
				out.Reported = reported
			}
		}
	}

	if len(out.Cases) == 0 && out.Reported == nil {
		return ParseOutput{}, &ParseError{
			Framework: "pytest",
			Reason:    "no result lines or summary found",
		}
	}
	return out, nil
}

// parsePytestTotals reads the comma-separated categories of the final
// summary line, e.g. "2 passed, 1 failed, 1 xfailed".
func parsePytestTotals(categories string) *types.TestSummary {
	var summary types.TestSummary
	matched := false
	for _, part := range strings.Split(categories, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) != 2 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch fields[1] {
		case "passed", "xfailed":
			summary.Passed += n
		case "failed", "xpassed":
			summary.Failed += n
		case "skipped":
			summary.Skipped += n
		case "error", "errors":
			summary.Errored += n
		default:
			continue // warnings and other categories are not test outcomes
		}
		summary.Total += n
		matched = true
	}
	if !matched {
		return nil
	}
	return &summary
}
