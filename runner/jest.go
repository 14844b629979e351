package runner

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/polytest/polytest/types"
)

// jestStrategy drives Jest through npx so locally installed copies win over
// any global one. The --json reporter is the primary source; the human
// reporter output is kept as a fallback for older versions or wrapper
// scripts that swallow the JSON flag.
type jestStrategy struct{}

func (s *jestStrategy) Framework() types.TestFramework {
	return types.FrameworkJest
}

func (s *jestStrategy) BuildCommand(req types.TestRunRequest) Command {
	args := []string{"jest", "--json"}
	if req.TestPattern != "" {
		args = append(args, "-t", req.TestPattern)
	}
	if req.TestFile != "" {
		args = append(args, req.TestFile)
	}
	return Command{Bin: "npx", Args: args}
}

// Jest exits 1 when any test fails.
func (s *jestStrategy) ExplainsExit(code int) bool {
	return code == 1
}

func (s *jestStrategy) Parse(output []byte) (ParseOutput, error) {
	if out, ok := parseJestJSON(output); ok {
		return out, nil
	}
	return parseJSTextOutput(output, "jest")
}

// jestReport mirrors the subset of Jest's --json document we consume. Vitest
// emits the same document shape from its json reporter, so vitestStrategy
// shares this parser.
type jestReport struct {
	NumTotalTests   int              `json:"numTotalTests"`
	NumPassedTests  int              `json:"numPassedTests"`
	NumFailedTests  int              `json:"numFailedTests"`
	NumPendingTests int              `json:"numPendingTests"`
	NumTodoTests    int              `json:"numTodoTests"`
	TestResults     []jestFileResult `json:"testResults"`
}

type jestFileResult struct {
	Name             string          `json:"name"`
	AssertionResults []jestAssertion `json:"assertionResults"`
}

type jestAssertion struct {
	FullName        string   `json:"fullName"`
	Title           string   `json:"title"`
	Status          string   `json:"status"`
	Duration        *float64 `json:"duration"`
	FailureMessages []string `json:"failureMessages"`
}

func parseJestJSON(output []byte) (ParseOutput, bool) {
	doc := extractJSONObject(output)
	if doc == nil {
		return ParseOutput{}, false
	}
	var report jestReport
	if err := json.Unmarshal(doc, &report); err != nil || report.TestResults == nil {
		return ParseOutput{}, false
	}

	var out ParseOutput
	for _, file := range report.TestResults {
		for _, a := range file.AssertionResults {
			name := a.FullName
			if name == "" {
				name = a.Title
			}
			c := types.TestCase{
				Name:   name,
				File:   file.Name,
				Status: jestStatus(a.Status),
			}
			if a.Duration != nil {
				c.Duration = millis(*a.Duration)
			}
			if len(a.FailureMessages) > 0 {
				c.Message = a.FailureMessages[0]
			}
			out.Cases = append(out.Cases, c)
		}
	}
	out.Reported = &types.TestSummary{
		Total:   report.NumTotalTests,
		Passed:  report.NumPassedTests,
		Failed:  report.NumFailedTests,
		Skipped: report.NumPendingTests + report.NumTodoTests,
	}
	return out, true
}

func jestStatus(s string) types.TestStatus {
	switch s {
	case "passed":
		return types.TestStatusPassed
	case "failed":
		return types.TestStatusFailed
	case "pending", "skipped", "todo", "disabled":
		return types.TestStatusSkipped
	default:
		return types.TestStatusError
	}
}

// extractJSONObject locates the outermost JSON object in mixed output.
// Jest prints the document on a single line but reporters and npx may
// prepend banners, so scan for a line that starts an object and take
// everything from there to the matching closing brace.
func extractJSONObject(output []byte) []byte {
	s := string(output)
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' && (i == 0 || s[i-1] == '\n') {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		switch {
		case inString:
			if s[i] == '\\' {
				i++
			} else if s[i] == '"' {
				inString = false
			}
		case s[i] == '"':
			inString = true
		case s[i] == '{':
			depth++
		case s[i] == '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1])
			}
		}
	}
	return nil
}

var (
	// ✓ adds numbers (4 ms)   /   ✕ divides by zero   /   ○ skipped case
	jsTextResultLine = regexp.MustCompile(`^\s*(✓|✕|○|√|×)\s+(.+?)(?:\s+\((\d+)\s*ms\))?$`)
	// Tests:       1 failed, 2 passed, 3 total
	jsTextTotalsLine = regexp.MustCompile(`^Tests:\s+(.+)$`)
	jsTextTotal      = regexp.MustCompile(`(\d+)\s+(passed|failed|skipped|pending|todo)`)
)

// parseJSTextOutput is the fallback for Jest-family runners when no JSON
// document was found in the output.
func parseJSTextOutput(output []byte, framework string) (ParseOutput, error) {
	var out ParseOutput
	currentFile := ""
	for _, raw := range strings.Split(string(output), "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		// PASS src/math.test.js  /  FAIL src/div.test.js
		if strings.HasPrefix(trimmed, "PASS ") || strings.HasPrefix(trimmed, "FAIL ") {
			currentFile = strings.TrimSpace(trimmed[5:])
			continue
		}

		if m := jsTextResultLine.FindStringSubmatch(line); m != nil {
			c := types.TestCase{
				Name:   strings.TrimSpace(m[2]),
				File:   currentFile,
				Status: jsTextStatus(m[1]),
			}
			if m[3] != "" {
				if ms, err := strconv.Atoi(m[3]); err == nil {
					c.Duration = millis(float64(ms))
				}
			}
			out.Cases = append(out.Cases, c)
			continue
		}

		if m := jsTextTotalsLine.FindStringSubmatch(trimmed); m != nil {
			summary := &types.TestSummary{}
			for _, tot := range jsTextTotal.FindAllStringSubmatch(m[1], -1) {
				n, _ := strconv.Atoi(tot[1])
				switch tot[2] {
				case "passed":
					summary.Passed += n
				case "failed":
					summary.Failed += n
				case "skipped", "pending", "todo":
					summary.Skipped += n
				}
				summary.Total += n
			}
			out.Reported = summary
		}
	}

	if len(out.Cases) == 0 && out.Reported == nil {
		return ParseOutput{}, &ParseError{
			Framework: framework,
			Reason:    "no JSON document or recognizable text output",
		}
	}
	return out, nil
}

func jsTextStatus(mark string) types.TestStatus {
	switch mark {
	case "✓", "√":
		return types.TestStatusPassed
	case "✕", "×":
		return types.TestStatusFailed
	default:
		return types.TestStatusSkipped
	}
}
