package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/polytest/polytest/analysis"
	"github.com/polytest/polytest/types"
)

// RunStatusSuccess and RunStatusPartial describe a multi-project run as a
// whole. A run is partial as soon as any project failed to produce results;
// failing tests inside a usable result do not make a run partial.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
)

// MultiProjectResult is the outcome of fanning a run out over several
// projects. Everything is keyed by project path so callers never depend on
// submission order.
type MultiProjectResult struct {
	RunID              string                               `json:"run_id"`
	Status             string                               `json:"status"`
	SuccessfulProjects []string                             `json:"successful_projects"`
	FailedProjects     []string                             `json:"failed_projects"`
	Errors             map[string]string                    `json:"errors,omitempty"`
	Results            map[string]*types.UnifiedTestResults `json:"results"`
	Aggregated         *types.AggregatedResult              `json:"aggregated"`
	Health             analysis.HealthVerdict               `json:"health"`
	Performance        []types.TestCase                     `json:"performance,omitempty"`
	Duration           time.Duration                        `json:"duration"`
}

// RunOptions carries the per-run knobs shared by every project in a
// multi-project run.
type RunOptions struct {
	Framework   types.TestFramework
	TestFile    string
	TestPattern string
	Timeout     time.Duration
	Verbose     bool
}

// Coordinator fans test runs out over multiple projects with bounded
// concurrency.
type Coordinator struct {
	runner        TestRunner
	aggregator    *Aggregator
	analyzer      *analysis.Analyzer
	maxParallel   int
	slowThreshold time.Duration
	log           *slog.Logger
	tracer        trace.Tracer
	progress      ProgressIndicator
}

// defaultSlowThreshold matches the CLI's slow-test default.
const defaultSlowThreshold = time.Second

// CoordinatorConfig holds the dependencies for a coordinator.
type CoordinatorConfig struct {
	Runner        TestRunner
	MaxParallel   int
	Log           *slog.Logger
	Analyzer      *analysis.Analyzer // optional, defaults to standard thresholds
	SlowThreshold time.Duration      // optional, performance outlier cut point
	Progress      ProgressIndicator  // optional
}

// NewCoordinator creates a coordinator. MaxParallel caps how many projects
// run at once; values below one fall back to the default.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("invalid coordinator config: runner is required")
	}
	if cfg.Log == nil {
		return nil, fmt.Errorf("invalid coordinator config: logger is required")
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = types.DefaultMaxWorkers
	}
	if cfg.MaxParallel > 32 {
		cfg.Log.Warn("Very high project concurrency requested", "maxParallel", cfg.MaxParallel)
	}
	if cfg.Analyzer == nil {
		analyzer, err := analysis.New(cfg.Log, analysis.HealthThresholds{})
		if err != nil {
			return nil, fmt.Errorf("invalid coordinator config: %w", err)
		}
		cfg.Analyzer = analyzer
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = defaultSlowThreshold
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}
	return &Coordinator{
		runner:        cfg.Runner,
		aggregator:    NewAggregator(),
		analyzer:      cfg.Analyzer,
		maxParallel:   cfg.MaxParallel,
		slowThreshold: cfg.SlowThreshold,
		log:           cfg.Log,
		tracer:        otel.Tracer("polytest/coordinator"),
		progress:      cfg.Progress,
	}, nil
}

// RunMultiProjectTests runs each project's tests in batches of at most
// maxParallel. A batch settles completely before the next one starts. One
// project erroring (or panicking) never disturbs its siblings: the error is
// recorded under the project's path and the run carries on.
func (c *Coordinator) RunMultiProjectTests(ctx context.Context, projectPaths []string, opts RunOptions) (*MultiProjectResult, error) {
	start := time.Now()
	runID := uuid.New().String()

	ctx, span := c.tracer.Start(ctx, "multi-project run")
	defer span.End()

	result := &MultiProjectResult{
		RunID:   runID,
		Errors:  make(map[string]string),
		Results: make(map[string]*types.UnifiedTestResults),
	}
	if len(projectPaths) == 0 {
		result.Status = RunStatusSuccess
		result.Aggregated = c.aggregator.Aggregate(nil)
		result.Health = c.analyzer.ValidateTestHealth(result.Aggregated)
		return result, nil
	}

	c.log.Info("Starting multi-project run",
		"runID", runID,
		"projects", len(projectPaths),
		"maxParallel", c.maxParallel)
	c.progress.Start(len(projectPaths))

	var mu sync.Mutex
	for batchNum, batch := range chunk(projectPaths, c.maxParallel) {
		batchCtx, batchSpan := c.tracer.Start(ctx, fmt.Sprintf("batch %d", batchNum))

		g, gctx := errgroup.WithContext(batchCtx)
		for _, path := range batch {
			path := path
			g.Go(func() error {
				res, err := c.runOne(gctx, path, opts)
				mu.Lock()
				if err != nil {
					result.Errors[path] = err.Error()
				} else {
					result.Results[path] = res
				}
				mu.Unlock()
				c.progress.Advance(path, err == nil)
				// Per-project failures must not cancel siblings
				return nil
			})
		}
		_ = g.Wait()
		batchSpan.End()

		if err := ctx.Err(); err != nil {
			// Mark the projects that never got a chance to run
			mu.Lock()
			for _, path := range projectPaths {
				if _, ran := result.Results[path]; !ran {
					if _, errored := result.Errors[path]; !errored {
						result.Errors[path] = err.Error()
					}
				}
			}
			mu.Unlock()
			break
		}
	}
	c.progress.Finish()

	for _, path := range projectPaths {
		if _, ok := result.Errors[path]; ok {
			result.FailedProjects = append(result.FailedProjects, path)
		} else {
			result.SuccessfulProjects = append(result.SuccessfulProjects, path)
		}
	}
	sort.Strings(result.FailedProjects)
	sort.Strings(result.SuccessfulProjects)

	result.Status = RunStatusSuccess
	if len(result.FailedProjects) > 0 {
		result.Status = RunStatusPartial
	}

	ordered := make([]*types.UnifiedTestResults, 0, len(result.SuccessfulProjects))
	for _, path := range result.SuccessfulProjects {
		ordered = append(ordered, result.Results[path])
	}
	result.Aggregated = c.aggregator.Aggregate(ordered)
	result.Health = c.analyzer.ValidateTestHealth(result.Aggregated)
	result.Performance = c.analyzer.AnalyzePerformance(result.Aggregated.Tests, c.slowThreshold)
	result.Duration = time.Since(start)

	c.log.Info("Multi-project run complete",
		"runID", runID,
		"status", result.Status,
		"health", result.Health.Status,
		"successful", len(result.SuccessfulProjects),
		"failed", len(result.FailedProjects),
		"duration", result.Duration)
	return result, nil
}

// RunTestsByFile runs only the named test file in every project. The file
// may be a bare name; each project's runner resolves it against the
// project's discovered test files.
func (c *Coordinator) RunTestsByFile(ctx context.Context, projectPaths []string, testFile string, opts RunOptions) (*MultiProjectResult, error) {
	if testFile == "" {
		return nil, fmt.Errorf("test file must not be empty")
	}
	opts.TestFile = testFile
	return c.RunMultiProjectTests(ctx, projectPaths, opts)
}

// RunTestsByPattern runs only tests whose names match the pattern in every
// project, using each framework's native selection flag.
func (c *Coordinator) RunTestsByPattern(ctx context.Context, projectPaths []string, pattern string, opts RunOptions) (*MultiProjectResult, error) {
	if pattern == "" {
		return nil, fmt.Errorf("test pattern must not be empty")
	}
	opts.TestPattern = pattern
	return c.RunMultiProjectTests(ctx, projectPaths, opts)
}

// runOne executes a single project, converting panics in the runner (or a
// strategy) into ordinary errors so one bad project cannot take down the
// whole run.
func (c *Coordinator) runOne(ctx context.Context, path string, opts RunOptions) (res *types.UnifiedTestResults, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Panic while running project tests",
				"project", path,
				"panic", r,
				"stack", string(debug.Stack()))
			res = nil
			err = fmt.Errorf("panic running tests: %v", r)
		}
	}()

	req := types.TestRunRequest{
		ProjectPath: path,
		Framework:   opts.Framework,
		TestFile:    opts.TestFile,
		TestPattern: opts.TestPattern,
		Timeout:     opts.Timeout,
		Verbose:     opts.Verbose,
	}
	return c.runner.RunTests(ctx, req)
}

// chunk splits paths into consecutive groups of at most size elements.
func chunk(paths []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(paths); start += size {
		end := start + size
		if end > len(paths) {
			end = len(paths)
		}
		batches = append(batches, paths[start:end])
	}
	return batches
}
