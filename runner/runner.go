package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/polytest/polytest/logging"
	"github.com/polytest/polytest/types"
)

// FrameworkDetector resolves which test frameworks a project uses.
type FrameworkDetector interface {
	Detect(projectPath string) ([]types.DetectedFramework, error)
}

// TestRunner executes one project's test suite and returns its results in
// the unified shape regardless of framework.
type TestRunner interface {
	RunTests(ctx context.Context, req types.TestRunRequest) (*types.UnifiedTestResults, error)
}

// Config holds the dependencies for a test runner.
type Config struct {
	Detector   FrameworkDetector
	Log        *slog.Logger
	FileLogger *logging.FileLogger // optional raw-output capture
}

func (c Config) validate() error {
	if c.Detector == nil {
		return fmt.Errorf("detector is required")
	}
	if c.Log == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

type testRunner struct {
	detector   FrameworkDetector
	log        *slog.Logger
	fileLogger *logging.FileLogger
	exec       *executor
	tracer     trace.Tracer
}

// New creates a TestRunner from the given config.
func New(cfg Config) (TestRunner, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	return &testRunner{
		detector:   cfg.Detector,
		log:        cfg.Log,
		fileLogger: cfg.FileLogger,
		exec:       newExecutor(),
		tracer:     otel.Tracer("polytest/runner"),
	}, nil
}

var _ TestRunner = (*testRunner)(nil)

// RunTests detects the project's framework when none was requested, runs the
// framework's test command, and normalizes the output. Failures inside the
// test run (non-zero exits, timeouts, unparseable output) are recorded in
// the result rather than returned: only invalid requests and missing tools
// are errors.
func (r *testRunner) RunTests(ctx context.Context, req types.TestRunRequest) (*types.UnifiedTestResults, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("run %s", req.ProjectPath))
	defer span.End()

	result := &types.UnifiedTestResults{
		ProjectPath: req.ProjectPath,
		Timestamp:   time.Now(),
	}

	framework, detected, err := r.resolveFramework(req)
	if err != nil {
		return nil, err
	}
	result.Framework = detected
	if framework == types.FrameworkUnknown {
		r.log.Info("No test framework detected, nothing to run", "project", req.ProjectPath)
		return result, nil
	}

	strategy, ok := StrategyFor(framework)
	if !ok {
		return nil, fmt.Errorf("no strategy registered for framework %q", framework)
	}

	req.TestFile = r.resolveTestFile(req.ProjectPath, framework, req.TestFile)

	command := strategy.BuildCommand(req)
	if _, err := r.exec.resolve(command.Bin); err != nil {
		return nil, err
	}

	r.log.Info("Running tests",
		"project", req.ProjectPath,
		"framework", framework,
		"command", command.Bin+" "+strings.Join(command.Args, " "),
		"timeout", req.Timeout)

	run, err := r.exec.run(ctx, req.ProjectPath, command, req.Timeout)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", command.Bin, err)
	}

	output := append(run.Stdout, run.Stderr...)
	r.storeRawOutput(req.ProjectPath, output)

	if run.TimedOut {
		result.Error = (&TimeoutError{Timeout: req.Timeout}).Error()
	}

	clean := []byte(stripansi.Strip(string(output)))
	parsed, parseErr := strategy.Parse(clean)
	if parseErr != nil {
		if result.Error == "" {
			result.Error = parseErr.Error()
		}
		if run.ExitCode != 0 && !strategy.ExplainsExit(run.ExitCode) && !run.TimedOut {
			procErr := &ProcessError{ExitCode: run.ExitCode, Stderr: tail(string(run.Stderr), 2048)}
			result.Error = procErr.Error()
		}
		r.log.Warn("Failed to parse test output",
			"project", req.ProjectPath,
			"framework", framework,
			"error", parseErr)
		r.storeResult(result)
		return result, nil
	}

	result.Tests = parsed.Cases
	result.Summary = types.Tally(parsed.Cases)

	if len(parsed.Cases) == 0 && parsed.Reported != nil {
		// Only the framework's own totals survived parsing. The counts cannot
		// be cross-checked against cases, so the result carries a degraded
		// marker in Error.
		result.Summary = *parsed.Reported
		if result.Error == "" {
			result.Error = (&ParseError{
				Framework: framework.String(),
				Reason:    "summary totals parsed but no test cases recognized",
			}).Error()
		}
	} else if parsed.Reported != nil && result.Summary != *parsed.Reported {
		warning := fmt.Sprintf("reported summary disagrees with parsed cases: reported %d/%d/%d/%d, counted %d/%d/%d/%d (passed/failed/skipped/errored)",
			parsed.Reported.Passed, parsed.Reported.Failed, parsed.Reported.Skipped, parsed.Reported.Errored,
			result.Summary.Passed, result.Summary.Failed, result.Summary.Skipped, result.Summary.Errored)
		result.Warnings = append(result.Warnings, warning)
		r.log.Warn("Summary mismatch", "project", req.ProjectPath, "detail", warning)
	}

	if run.ExitCode != 0 && !run.TimedOut && !strategy.ExplainsExit(run.ExitCode) && result.Summary.Failed == 0 && result.Summary.Errored == 0 {
		procErr := &ProcessError{ExitCode: run.ExitCode, Stderr: tail(string(run.Stderr), 2048)}
		result.Error = procErr.Error()
	}

	r.log.Info("Test run complete",
		"project", req.ProjectPath,
		"framework", framework,
		"total", result.Summary.Total,
		"passed", result.Summary.Passed,
		"failed", result.Summary.Failed,
		"duration", run.Duration)

	r.storeResult(result)
	return result, nil
}

// resolveFramework honors an explicit request and otherwise asks the
// detector, taking its highest-confidence candidate. A project with no
// detectable framework is reported as unknown, not failed.
func (r *testRunner) resolveFramework(req types.TestRunRequest) (types.TestFramework, types.DetectedFramework, error) {
	if req.Framework != types.FrameworkUnknown && req.Framework != "" {
		return req.Framework, types.DetectedFramework{Framework: req.Framework, Confidence: types.ConfidenceConfigFile}, nil
	}

	candidates, err := r.detector.Detect(req.ProjectPath)
	if err != nil {
		return types.FrameworkUnknown, types.DetectedFramework{}, fmt.Errorf("detecting framework: %w", err)
	}
	if len(candidates) == 0 {
		return types.FrameworkUnknown, types.DetectedFramework{Framework: types.FrameworkUnknown}, nil
	}
	if len(candidates) > 1 {
		r.log.Debug("Multiple frameworks detected, using highest confidence",
			"project", req.ProjectPath,
			"candidates", len(candidates),
			"chosen", candidates[0].Framework)
	}
	return candidates[0].Framework, candidates[0], nil
}

// resolveTestFile maps a requested test file onto the project's actual test
// layout. A path that exists under the project root is used as given; a bare
// name is matched against the project's discovered test files, so callers can
// ask for "test_auth.py" without knowing it lives under tests/.
func (r *testRunner) resolveTestFile(projectPath string, framework types.TestFramework, testFile string) string {
	if testFile == "" {
		return ""
	}
	if _, err := os.Stat(filepath.Join(projectPath, testFile)); err == nil {
		return testFile
	}

	files, err := DiscoverTestFiles(projectPath, framework)
	if err != nil {
		r.log.Warn("Test file discovery failed",
			"project", projectPath,
			"testFile", testFile,
			"error", err)
		return testFile
	}
	for _, f := range files {
		if filepath.Base(f) == filepath.Base(testFile) {
			r.log.Debug("Resolved test file against project layout",
				"requested", testFile,
				"resolved", f)
			return f
		}
	}
	return testFile
}

func (r *testRunner) storeRawOutput(projectPath string, output []byte) {
	if r.fileLogger == nil {
		return
	}
	if err := r.fileLogger.StoreRawOutput(projectPath, output); err != nil {
		r.log.Error("Failed to store raw output", "project", projectPath, "error", err)
	}
}

func (r *testRunner) storeResult(result *types.UnifiedTestResults) {
	if r.fileLogger == nil {
		return
	}
	if err := r.fileLogger.StoreResult(result); err != nil {
		r.log.Error("Failed to store result", "project", result.ProjectPath, "error", err)
	}
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
