package runner

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytest/polytest/types"
)

func TestStrategyForKnownFrameworks(t *testing.T) {
	for _, f := range types.KnownFrameworks {
		s, ok := StrategyFor(f)
		require.True(t, ok, "framework %s has no strategy", f)
		assert.Equal(t, f, s.Framework())
	}
	_, ok := StrategyFor(types.FrameworkUnknown)
	assert.False(t, ok)
}

const pytestOutput = `============================= test session starts ==============================
collected 4 items

tests/test_math.py::test_add PASSED                                      [ 25%]
tests/test_math.py::test_div FAILED                                      [ 50%]
tests/test_math.py::test_skip SKIPPED (not ready)                        [ 75%]
tests/test_math.py::test_known_bug XFAIL                                 [100%]

=========================== short test summary info ============================
FAILED tests/test_math.py::test_div - ZeroDivisionError: division by zero
============================== slowest durations ===============================
0.35s call     tests/test_math.py::test_add
0.02s call     tests/test_math.py::test_div
============ 1 failed, 1 passed, 1 skipped, 1 xfailed in 0.41s ============
`

func TestPytestParse(t *testing.T) {
	s := &pytestStrategy{}
	out, err := s.Parse([]byte(pytestOutput))
	require.NoError(t, err)
	require.Len(t, out.Cases, 4)

	byName := map[string]types.TestCase{}
	for _, c := range out.Cases {
		byName[c.Name] = c
	}

	assert.Equal(t, types.TestStatusPassed, byName["test_add"].Status)
	assert.Equal(t, 350*time.Millisecond, byName["test_add"].Duration)
	assert.Equal(t, types.TestStatusFailed, byName["test_div"].Status)
	assert.Equal(t, "ZeroDivisionError: division by zero", byName["test_div"].Message)
	assert.Equal(t, types.TestStatusSkipped, byName["test_skip"].Status)
	assert.Equal(t, types.TestStatusXFail, byName["test_known_bug"].Status)
	assert.Equal(t, "tests/test_math.py", byName["test_add"].File)

	require.NotNil(t, out.Reported)
	// xfailed tallies into passed
	assert.Equal(t, 2, out.Reported.Passed)
	assert.Equal(t, 1, out.Reported.Failed)
	assert.Equal(t, 1, out.Reported.Skipped)
	assert.Equal(t, 4, out.Reported.Total)

	// Recomputing from the parsed cases agrees with the reported totals
	tally := types.Tally(out.Cases)
	assert.Equal(t, *out.Reported, tally)
}

func TestPytestParseGarbage(t *testing.T) {
	s := &pytestStrategy{}
	_, err := s.Parse([]byte("complete nonsense\nnothing useful here\n"))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "pytest", parseErr.Framework)
}

func TestPytestBuildCommand(t *testing.T) {
	s := &pytestStrategy{}
	cmd := s.BuildCommand(types.TestRunRequest{TestPattern: "add", TestFile: "tests/test_math.py"})
	assert.Equal(t, "pytest", cmd.Bin)
	assert.Contains(t, cmd.Args, "--color=no")
	assert.Contains(t, cmd.Args, "-k")
	assert.Equal(t, "tests/test_math.py", cmd.Args[len(cmd.Args)-1])
}

const jestJSONOutput = `{"numTotalTests":3,"numPassedTests":1,"numFailedTests":1,"numPendingTests":1,"numTodoTests":0,"testResults":[{"name":"/app/src/math.test.js","assertionResults":[{"fullName":"math adds","status":"passed","duration":12.5},{"fullName":"math divides","status":"failed","duration":3,"failureMessages":["expected 1 to be 2"]},{"fullName":"math someday","status":"pending"}]}]}
`

func TestJestParseJSON(t *testing.T) {
	s := &jestStrategy{}
	out, err := s.Parse([]byte(jestJSONOutput))
	require.NoError(t, err)
	require.Len(t, out.Cases, 3)

	assert.Equal(t, "math adds", out.Cases[0].Name)
	assert.Equal(t, types.TestStatusPassed, out.Cases[0].Status)
	assert.Equal(t, 12500*time.Microsecond, out.Cases[0].Duration)
	assert.Equal(t, types.TestStatusFailed, out.Cases[1].Status)
	assert.Equal(t, "expected 1 to be 2", out.Cases[1].Message)
	assert.Equal(t, types.TestStatusSkipped, out.Cases[2].Status)
	assert.Equal(t, "/app/src/math.test.js", out.Cases[0].File)

	require.NotNil(t, out.Reported)
	assert.Equal(t, 3, out.Reported.Total)
	assert.Equal(t, 1, out.Reported.Skipped)
}

func TestJestParseJSONWithBanner(t *testing.T) {
	s := &jestStrategy{}
	noisy := "npm warn something\n" + jestJSONOutput + "Done in 2.1s\n"
	out, err := s.Parse([]byte(noisy))
	require.NoError(t, err)
	assert.Len(t, out.Cases, 3)
}

const jestTextOutput = `PASS src/math.test.js
  math
    ✓ adds (4 ms)
    ✕ divides
    ○ someday

Tests:       1 failed, 1 skipped, 1 passed, 3 total
Time:        1.2 s
`

func TestJestParseTextFallback(t *testing.T) {
	s := &jestStrategy{}
	out, err := s.Parse([]byte(jestTextOutput))
	require.NoError(t, err)
	require.Len(t, out.Cases, 3)
	assert.Equal(t, "adds", out.Cases[0].Name)
	assert.Equal(t, types.TestStatusPassed, out.Cases[0].Status)
	assert.Equal(t, 4*time.Millisecond, out.Cases[0].Duration)
	assert.Equal(t, types.TestStatusFailed, out.Cases[1].Status)
	assert.Equal(t, types.TestStatusSkipped, out.Cases[2].Status)
	assert.Equal(t, "src/math.test.js", out.Cases[0].File)

	require.NotNil(t, out.Reported)
	assert.Equal(t, 3, out.Reported.Total)
	assert.Equal(t, 1, out.Reported.Failed)
}

func TestJestParseGarbage(t *testing.T) {
	s := &jestStrategy{}
	_, err := s.Parse([]byte("nothing here\n"))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "jest", parseErr.Framework)
}

func TestVitestSharesJestParser(t *testing.T) {
	s := &vitestStrategy{}
	out, err := s.Parse([]byte(jestJSONOutput))
	require.NoError(t, err)
	assert.Len(t, out.Cases, 3)

	cmd := s.BuildCommand(types.TestRunRequest{})
	assert.Equal(t, "npx", cmd.Bin)
	assert.Contains(t, cmd.Args, "vitest")
	assert.Contains(t, cmd.Args, "--reporter=json")
}

const cargoOutput = `   Compiling demo v0.1.0
    Finished test profile [unoptimized + debuginfo] target(s) in 0.52s
     Running unittests src/lib.rs

running 3 tests
test tests::adds ... ok
test tests::divides ... FAILED
test tests::unimplemented ... ignored

failures:

---- tests::divides stdout ----
thread 'tests::divides' panicked at 'attempt to divide by zero'

failures:
    tests::divides

test result: FAILED. 1 passed; 1 failed; 1 ignored; 0 measured; 0 filtered out
`

func TestCargoParse(t *testing.T) {
	s := &cargoStrategy{}
	out, err := s.Parse([]byte(cargoOutput))
	require.NoError(t, err)
	require.Len(t, out.Cases, 3)

	assert.Equal(t, "tests::adds", out.Cases[0].Name)
	assert.Equal(t, types.TestStatusPassed, out.Cases[0].Status)
	assert.Equal(t, types.TestStatusFailed, out.Cases[1].Status)
	assert.Contains(t, out.Cases[1].Message, "panicked")
	assert.Equal(t, types.TestStatusSkipped, out.Cases[2].Status)

	require.NotNil(t, out.Reported)
	assert.Equal(t, 3, out.Reported.Total)
	assert.Equal(t, 1, out.Reported.Passed)
	assert.Equal(t, 1, out.Reported.Failed)
	assert.Equal(t, 1, out.Reported.Skipped)
}

func TestCargoParseJSONEvents(t *testing.T) {
	input := `{ "type": "suite", "event": "started", "test_count": 2 }
{ "type": "test", "event": "started", "name": "tests::adds" }
{ "type": "test", "name": "tests::adds", "event": "ok", "exec_time": 0.05 }
{ "type": "test", "event": "started", "name": "tests::divides" }
{ "type": "test", "name": "tests::divides", "event": "failed", "stdout": "boom" }
{ "type": "suite", "event": "failed", "passed": 1, "failed": 1 }
`
	s := &cargoStrategy{}
	out, err := s.Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, out.Cases, 2)
	assert.Equal(t, types.TestStatusPassed, out.Cases[0].Status)
	assert.Equal(t, 50*time.Millisecond, out.Cases[0].Duration)
	assert.Equal(t, types.TestStatusFailed, out.Cases[1].Status)
	assert.Equal(t, "boom", out.Cases[1].Message)
}

func TestCargoWorkspaceTotalsAreSummed(t *testing.T) {
	input := `test result: ok. 2 passed; 0 failed; 0 ignored; 0 measured; 0 filtered out
test result: FAILED. 1 passed; 1 failed; 0 ignored; 0 measured; 0 filtered out
`
	s := &cargoStrategy{}
	out, err := s.Parse([]byte(input))
	require.NoError(t, err)
	require.NotNil(t, out.Reported)
	assert.Equal(t, 4, out.Reported.Total)
	assert.Equal(t, 3, out.Reported.Passed)
	assert.Equal(t, 1, out.Reported.Failed)
}

func TestCargoExplainsExit(t *testing.T) {
	s := &cargoStrategy{}
	assert.True(t, s.ExplainsExit(101))
	assert.False(t, s.ExplainsExit(1))
}

func TestCargoTargetName(t *testing.T) {
	assert.Equal(t, "api_test", cargoTargetName("tests/api_test.rs"))
	assert.Equal(t, "api_test", cargoTargetName("api_test.rs"))
}

const mochaJSONOutput = `{
  "stats": { "tests": 3, "passes": 1, "failures": 1, "pending": 1 },
  "passes": [ { "title": "adds", "fullTitle": "math adds", "file": "/app/test/math.js", "duration": 7 } ],
  "failures": [ { "title": "divides", "fullTitle": "math divides", "file": "/app/test/math.js", "duration": 2, "err": { "message": "expected 1 to equal 2" } } ],
  "pending": [ { "title": "someday", "fullTitle": "math someday", "file": "/app/test/math.js" } ]
}
`

func TestMochaParse(t *testing.T) {
	s := &mochaStrategy{}
	out, err := s.Parse([]byte(mochaJSONOutput))
	require.NoError(t, err)
	require.Len(t, out.Cases, 3)

	assert.Equal(t, "math adds", out.Cases[0].Name)
	assert.Equal(t, types.TestStatusPassed, out.Cases[0].Status)
	assert.Equal(t, 7*time.Millisecond, out.Cases[0].Duration)
	assert.Equal(t, types.TestStatusFailed, out.Cases[1].Status)
	assert.Equal(t, "expected 1 to equal 2", out.Cases[1].Message)
	assert.Equal(t, types.TestStatusSkipped, out.Cases[2].Status)

	require.NotNil(t, out.Reported)
	assert.Equal(t, 3, out.Reported.Total)
}

func TestMochaParseGarbage(t *testing.T) {
	s := &mochaStrategy{}
	_, err := s.Parse([]byte("TypeError: cannot read property\n"))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "mocha", parseErr.Framework)
}

func TestMochaExplainsExit(t *testing.T) {
	s := &mochaStrategy{}
	// Mocha exits with the failure count
	assert.True(t, s.ExplainsExit(1))
	assert.True(t, s.ExplainsExit(7))
	assert.False(t, s.ExplainsExit(0))
	// Shell launcher codes mean the run never happened
	assert.False(t, s.ExplainsExit(126))
	assert.False(t, s.ExplainsExit(127))
}
