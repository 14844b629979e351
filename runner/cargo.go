package runner

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/polytest/polytest/types"
)

// cargoStrategy drives cargo test. Libtest's stable output is text; the
// JSON event stream still needs a nightly flag, but some projects enable it
// through config so event lines are accepted when present.
type cargoStrategy struct{}

func (s *cargoStrategy) Framework() types.TestFramework {
	return types.FrameworkCargo
}

func (s *cargoStrategy) BuildCommand(req types.TestRunRequest) Command {
	args := []string{"test"}
	if req.TestFile != "" {
		args = append(args, "--test", cargoTargetName(req.TestFile))
	}
	if req.TestPattern != "" {
		args = append(args, req.TestPattern)
	}
	return Command{Bin: "cargo", Args: args}
}

// cargo test exits 101 when any test fails.
func (s *cargoStrategy) ExplainsExit(code int) bool {
	return code == 101
}

// cargoTargetName maps a test file path to the integration-test target cargo
// expects: tests/api_test.rs runs as --test api_test.
func cargoTargetName(file string) string {
	base := file
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".rs")
}

var (
	// test tests::adds_numbers ... ok
	cargoResultLine = regexp.MustCompile(`^test\s+(\S+)\s+\.\.\.\s+(ok|FAILED|ignored)`)
	// test result: FAILED. 2 passed; 1 failed; 0 ignored; ...
	cargoTotalsLine = regexp.MustCompile(`^test result:.*?(\d+)\s+passed;\s+(\d+)\s+failed;\s+(\d+)\s+ignored`)
	// ---- tests::adds_numbers stdout ----
	cargoFailureHeader = regexp.MustCompile(`^----\s+(\S+)\s+stdout\s+----$`)
)

// cargoEvent is one line of libtest's JSON event stream.
type cargoEvent struct {
	Type     string   `json:"type"`
	Event    string   `json:"event"`
	Name     string   `json:"name"`
	ExecTime *float64 `json:"exec_time"`
	Stdout   string   `json:"stdout"`
}

func (s *cargoStrategy) Parse(output []byte) (ParseOutput, error) {
	var out ParseOutput
	index := make(map[string]int)
	record := func(c types.TestCase) {
		if i, seen := index[c.Name]; seen {
			out.Cases[i] = c
		} else {
			index[c.Name] = len(out.Cases)
			out.Cases = append(out.Cases, c)
		}
	}

	inFailure := ""
	var failureLines []string
	flushFailure := func() {
		if inFailure == "" {
			return
		}
		if i, seen := index[inFailure]; seen {
			out.Cases[i].Message = strings.TrimSpace(strings.Join(failureLines, "\n"))
		}
		inFailure = ""
		failureLines = nil
	}

	for _, raw := range strings.Split(string(output), "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "{") {
			var ev cargoEvent
			if err := json.Unmarshal([]byte(trimmed), &ev); err == nil && ev.Type == "test" {
				c := types.TestCase{Name: ev.Name, Status: cargoEventStatus(ev.Event)}
				if ev.ExecTime != nil {
					c.Duration = seconds(*ev.ExecTime)
				}
				if ev.Stdout != "" && c.Status.IsFailure() {
					c.Message = strings.TrimSpace(ev.Stdout)
				}
				if ev.Event != "started" {
					record(c)
				}
				continue
			}
		}

		if m := cargoFailureHeader.FindStringSubmatch(trimmed); m != nil {
			flushFailure()
			inFailure = m[1]
			continue
		}
		if inFailure != "" {
			if trimmed == "" || strings.HasPrefix(trimmed, "failures:") {
				flushFailure()
			} else {
				failureLines = append(failureLines, trimmed)
				continue
			}
		}

		if m := cargoResultLine.FindStringSubmatch(trimmed); m != nil {
			record(types.TestCase{Name: m[1], Status: cargoTextStatus(m[2])})
			continue
		}

		// A workspace run prints one result line per crate; sum them.
		if m := cargoTotalsLine.FindStringSubmatch(trimmed); m != nil {
			passed, _ := strconv.Atoi(m[1])
			failed, _ := strconv.Atoi(m[2])
			ignored, _ := strconv.Atoi(m[3])
			if out.Reported == nil {
				out.Reported = &types.TestSummary{}
			}
			out.Reported.Passed += passed
			out.Reported.Failed += failed
			out.Reported.Skipped += ignored
			out.Reported.Total += passed + failed + ignored
		}
	}
	flushFailure()

	if len(out.Cases) == 0 && out.Reported == nil {
		return ParseOutput{}, &ParseError{
			Framework: "cargo",
			Reason:    "no libtest result lines found",
		}
	}
	return out, nil
}

func cargoTextStatus(verdict string) types.TestStatus {
	switch verdict {
	case "ok":
		return types.TestStatusPassed
	case "FAILED":
		return types.TestStatusFailed
	default:
		return types.TestStatusSkipped
	}
}

func cargoEventStatus(event string) types.TestStatus {
	switch event {
	case "ok":
		return types.TestStatusPassed
	case "failed":
		return types.TestStatusFailed
	default:
		return types.TestStatusSkipped
	}
}
