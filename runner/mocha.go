package runner

import (
	"encoding/json"

	"github.com/polytest/polytest/types"
)

// mochaStrategy drives Mocha with its built-in json reporter.
type mochaStrategy struct{}

func (s *mochaStrategy) Framework() types.TestFramework {
	return types.FrameworkMocha
}

func (s *mochaStrategy) BuildCommand(req types.TestRunRequest) Command {
	args := []string{"mocha", "--reporter", "json"}
	if req.TestPattern != "" {
		args = append(args, "--grep", req.TestPattern)
	}
	if req.TestFile != "" {
		args = append(args, req.TestFile)
	}
	return Command{Bin: "npx", Args: args}
}

// Mocha's exit code is the number of failing tests, capped at 255.
// ExplainsExit: mocha exits with the number of failing tests. 126 and 127
// are the shell's "found but not executable" / "command not found" codes and
// mean the run never happened.
func (s *mochaStrategy) ExplainsExit(code int) bool {
	return code > 0 && code != 126 && code != 127
}

type mochaReport struct {
	Stats struct {
		Tests    int `json:"tests"`
		Passes   int `json:"passes"`
		Failures int `json:"failures"`
		Pending  int `json:"pending"`
	} `json:"stats"`
	Passes   []mochaTest `json:"passes"`
	Failures []mochaTest `json:"failures"`
	Pending  []mochaTest `json:"pending"`
}

type mochaTest struct {
	Title     string   `json:"title"`
	FullTitle string   `json:"fullTitle"`
	File      string   `json:"file"`
	Duration  *float64 `json:"duration"`
	Err       struct {
		Message string `json:"message"`
	} `json:"err"`
}

func (s *mochaStrategy) Parse(output []byte) (ParseOutput, error) {
	doc := extractJSONObject(output)
	if doc == nil {
		return ParseOutput{}, &ParseError{
			Framework: "mocha",
			Reason:    "no JSON document in reporter output",
		}
	}
	var report mochaReport
	if err := json.Unmarshal(doc, &report); err != nil {
		return ParseOutput{}, &ParseError{
			Framework: "mocha",
			Reason:    "malformed JSON report: " + err.Error(),
		}
	}

	var out ParseOutput
	appendAll := func(tests []mochaTest, status types.TestStatus) {
		for _, t := range tests {
			name := t.FullTitle
			if name == "" {
				name = t.Title
			}
			c := types.TestCase{Name: name, File: t.File, Status: status}
			if t.Duration != nil {
				c.Duration = millis(*t.Duration)
			}
			if status == types.TestStatusFailed {
				c.Message = t.Err.Message
			}
			out.Cases = append(out.Cases, c)
		}
	}
	appendAll(report.Passes, types.TestStatusPassed)
	appendAll(report.Failures, types.TestStatusFailed)
	appendAll(report.Pending, types.TestStatusSkipped)

	out.Reported = &types.TestSummary{
		Total:   report.Stats.Tests,
		Passed:  report.Stats.Passes,
		Failed:  report.Stats.Failures,
		Skipped: report.Stats.Pending,
	}
	return out, nil
}
