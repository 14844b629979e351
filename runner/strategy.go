package runner

import (
	"time"

	"github.com/polytest/polytest/types"
)

// Command is a fully resolved framework invocation.
type Command struct {
	Bin  string
	Args []string
}

// ParseOutput is a strategy's normalized view of one invocation's output.
type ParseOutput struct {
	Cases []types.TestCase
	// Reported carries the framework's self-reported totals when the output
	// includes them. Summaries are always recomputed from Cases; Reported
	// surfaces disagreement as a warning, and stands in (with the result
	// marked degraded) when no cases were recognized at all.
	Reported *types.TestSummary
}

// Strategy encapsulates everything framework-specific: how to invoke the
// framework and how to normalize whatever it prints. One implementation per
// TestFramework, selected through the lookup table below — framework names
// never branch anywhere else.
type Strategy interface {
	Framework() types.TestFramework

	// BuildCommand constructs the invocation honoring the request's file and
	// pattern filters. The returned command runs rooted at the project path.
	BuildCommand(req types.TestRunRequest) Command

	// Parse normalizes raw, ANSI-stripped output. Implementations prefer the
	// framework's structured JSON report and fall back to line-oriented text.
	// A *ParseError is returned when neither form matched.
	Parse(output []byte) (ParseOutput, error)

	// ExplainsExit reports whether a non-zero exit code is the framework's
	// conventional way of signaling failing tests, as opposed to a crash.
	ExplainsExit(code int) bool
}

var strategies = map[types.TestFramework]Strategy{
	types.FrameworkPytest: &pytestStrategy{},
	types.FrameworkJest:   &jestStrategy{},
	types.FrameworkVitest: &vitestStrategy{},
	types.FrameworkCargo:  &cargoStrategy{},
	types.FrameworkMocha:  &mochaStrategy{},
}

// StrategyFor returns the strategy registered for a framework, or false for
// unknown.
func StrategyFor(f types.TestFramework) (Strategy, bool) {
	s, ok := strategies[f]
	return s, ok
}

// millis converts a millisecond count (the unit jest, vitest and mocha
// report) into a duration.
func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// seconds converts a fractional second count into a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
