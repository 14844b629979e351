package polytest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/polytest/polytest/analysis"
	"github.com/polytest/polytest/detector"
	"github.com/polytest/polytest/exitcodes"
	"github.com/polytest/polytest/logging"
	"github.com/polytest/polytest/registry"
	"github.com/polytest/polytest/runner"
	"github.com/polytest/polytest/service"
	"github.com/polytest/polytest/types"
)

// Orchestrator wires detection, execution, analysis and reporting together
// and drives them once or on an interval.
type Orchestrator struct {
	ctx     context.Context
	config  *Config
	version string

	registry    *registry.Registry // nil when projects come from the command line
	coordinator *runner.Coordinator
	analyzer    *analysis.Analyzer
	formatter   ResultFormatter
	reporter    MetricsReporter
	scheduler   TestScheduler
	fileLogger  *logging.FileLogger
	runState    *service.RunState // nil unless the healthz server wants run outcomes

	result *runner.MultiProjectResult

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New constructs the orchestrator and everything beneath it from the config.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Orchestrator, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating orchestrator with config",
		"registryFile", config.RegistryFile,
		"projects", len(config.ProjectPaths),
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	var reg *registry.Registry
	if config.RegistryFile != "" {
		var err error
		reg, err = registry.NewRegistry(registry.Config{
			Log:               config.Log,
			ProjectConfigFile: config.RegistryFile,
			DefaultTimeout:    config.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create registry: %w", err)
		}
	}

	var fileLogger *logging.FileLogger
	if config.LogDir != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(config.LogDir, uuid.New().String())
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
	}

	testRunner, err := runner.New(runner.Config{
		Detector:   detector.New(config.Log),
		Log:        config.Log,
		FileLogger: fileLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}

	var projectRunner runner.TestRunner = testRunner
	if reg != nil {
		projectRunner = &registryRunner{base: testRunner, registry: reg}
	}

	var progress runner.ProgressIndicator
	if config.ShowProgress {
		progress = runner.NewLogProgressIndicator(config.Log)
	}

	analyzer, err := analysis.New(config.Log, analysis.HealthThresholds{
		UnhealthyBelow: config.UnhealthyBelow,
		HealthyAtLeast: config.HealthyAtLeast,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	coordinator, err := runner.NewCoordinator(runner.CoordinatorConfig{
		Runner:        projectRunner,
		MaxParallel:   config.MaxParallel,
		Log:           config.Log,
		Analyzer:      analyzer,
		SlowThreshold: config.SlowThreshold,
		Progress:      progress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	o := &Orchestrator{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		coordinator:      coordinator,
		analyzer:         analyzer,
		formatter:        NewConsoleResultFormatter(config.Log, config.Verbose),
		reporter:         NewDefaultMetricsReporter(),
		fileLogger:       fileLogger,
		runState:         config.RunState,
		shutdownCallback: shutdownCallback,
	}
	o.scheduler = NewDefaultTestScheduler(config.RunInterval, config.RunOnce, config.Log)
	o.scheduler.RegisterCallback(o.runTests)

	config.Log.Info("Orchestrator created", "projects", len(o.projectPaths()))
	return o, nil
}

// Start runs the tests once or periodically at the configured interval.
func (o *Orchestrator) Start(ctx context.Context) error {
	// Panics anywhere below are runtime errors, exit code 2
	defer func() {
		if r := recover(); r != nil {
			o.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	o.ctx = ctx

	if o.config.RunOnce {
		o.config.Log.Info("Starting polytest in run-once mode")
	} else {
		o.config.Log.Info("Starting polytest in continuous mode", "interval", o.config.RunInterval)
	}

	if err := o.scheduler.Start(ctx); err != nil {
		if IsTestFailureError(err) {
			return err
		}
		o.config.Log.Error("Runtime error running tests", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if o.config.RunOnce {
		o.config.Log.Info("Tests completed, exiting (run-once mode)")
		go func() {
			o.shutdownCallback(nil)
		}()
	}
	return nil
}

// Stop stops the orchestrator.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.config.Log.Info("Stopping polytest")
	return o.scheduler.Stop()
}

// Stopped returns true if the orchestrator is stopped.
func (o *Orchestrator) Stopped() bool {
	return o.scheduler.Stopped()
}

// Result returns the most recent run's result.
func (o *Orchestrator) Result() *runner.MultiProjectResult {
	return o.result
}

func (o *Orchestrator) projectPaths() []string {
	if o.registry != nil {
		return o.registry.ProjectPaths()
	}
	return o.config.ProjectPaths
}

// runTests performs one full cycle: run every project, analyze, print and
// report. In stability mode the cycle repeats the run and emits a stability
// report instead of the per-run tables.
func (o *Orchestrator) runTests() error {
	if o.config.Stability {
		return o.runStability()
	}

	result, err := o.runAll()
	if err != nil {
		return err
	}
	o.result = result

	if err := o.formatter.FormatResults(result, result.Health, result.Performance); err != nil {
		o.config.Log.Error("Failed to format results", "error", err)
	}
	o.reporter.ReportResults(result)
	o.recordRunState(result)

	o.config.Log.Info("Test run completed",
		"run_id", result.RunID,
		"status", result.Status,
		"health", result.Health.Status)

	if o.config.RunOnce && runFailed(result) {
		return NewTestFailureError(fmt.Sprintf("%d of %d tests failed",
			result.Aggregated.Summary.Failed+result.Aggregated.Summary.Errored,
			result.Aggregated.Summary.Total))
	}
	return nil
}

// runAll executes one multi-project run with the configured selection knobs.
func (o *Orchestrator) runAll() (*runner.MultiProjectResult, error) {
	opts := runner.RunOptions{
		Framework: o.config.Framework,
		Timeout:   o.config.Timeout,
		Verbose:   o.config.Verbose,
	}

	paths := o.projectPaths()
	switch {
	case o.config.TestFile != "":
		return o.coordinator.RunTestsByFile(o.ctx, paths, o.config.TestFile, opts)
	case o.config.TestPattern != "":
		return o.coordinator.RunTestsByPattern(o.ctx, paths, o.config.TestPattern, opts)
	default:
		return o.coordinator.RunMultiProjectTests(o.ctx, paths, opts)
	}
}

// runStability repeats the full run and reduces the iterations to a
// stability report.
func (o *Orchestrator) runStability() error {
	iterations := o.config.StabilityIters
	o.config.Log.Info("Starting stability analysis", "iterations", iterations)

	runID := uuid.New().String()
	var runs []*types.UnifiedTestResults
	for i := 1; i <= iterations; i++ {
		o.config.Log.Info("Running iteration", "iteration", i, "total", iterations)
		result, err := o.runAll()
		if err != nil {
			o.config.Log.Error("Failed to run tests", "iteration", i, "error", err)
			continue
		}
		o.result = result
		// Collapse the multi-project run into one result per iteration so
		// stability is judged across iterations, not across projects.
		runs = append(runs, &types.UnifiedTestResults{
			Summary:   result.Aggregated.Summary,
			Tests:     result.Aggregated.Tests,
			Timestamp: time.Now(),
		})
	}
	if len(runs) == 0 {
		return NewRuntimeError(errors.New("all stability iterations failed"))
	}

	report := o.analyzer.BuildStabilityReport(runID, runs)

	outputDir := o.config.LogDir
	if outputDir == "" {
		outputDir = "."
	}
	saved, err := analysis.SaveStabilityReport(report, outputDir)
	if err != nil {
		o.config.Log.Error("Failed to save stability report", "error", err)
	}
	for _, f := range saved {
		o.config.Log.Info("Stability report written", "file", f)
	}

	if o.config.RunOnce && len(report.FlakyTests) > 0 {
		return NewTestFailureError(fmt.Sprintf("%d flaky tests detected across %d iterations",
			len(report.FlakyTests), iterations))
	}
	return nil
}

// recordRunState publishes the run's outcome for the healthz endpoint.
func (o *Orchestrator) recordRunState(result *runner.MultiProjectResult) {
	if o.runState == nil {
		return
	}
	o.runState.Record(service.RunSnapshot{
		RunID:       result.RunID,
		Status:      result.Status,
		Health:      result.Health.Status,
		PassRate:    result.Health.PassRate,
		Projects:    len(result.Results) + len(result.Errors),
		CompletedAt: time.Now(),
	})
}

func runFailed(result *runner.MultiProjectResult) bool {
	if result.Status != runner.RunStatusSuccess {
		return true
	}
	s := result.Aggregated.Summary
	return s.Failed > 0 || s.Errored > 0
}

// registryRunner applies per-project framework and timeout overrides from
// the registry before delegating to the real runner.
type registryRunner struct {
	base     runner.TestRunner
	registry *registry.Registry
}

func (r *registryRunner) RunTests(ctx context.Context, req types.TestRunRequest) (*types.UnifiedTestResults, error) {
	for _, p := range r.registry.Projects() {
		if p.Path != req.ProjectPath {
			continue
		}
		if req.Framework == "" || req.Framework == types.FrameworkUnknown {
			req.Framework = p.Framework
		}
		req.Timeout = r.registry.TimeoutFor(p)
		break
	}
	return r.base.RunTests(ctx, req)
}
