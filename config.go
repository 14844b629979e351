package polytest

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/polytest/polytest/flags"
	"github.com/polytest/polytest/service"
	"github.com/polytest/polytest/types"
)

// Config holds the application configuration
type Config struct {
	ProjectPaths   []string            // Projects given directly on the command line
	RegistryFile   string              // Project registry file, alternative to ProjectPaths
	Framework      types.TestFramework // Forced framework, empty means detect
	TestFile       string              // Restrict runs to one test file
	TestPattern    string              // Restrict runs to matching test names
	Timeout        time.Duration       // Per-project run timeout
	MaxParallel    int                 // Concurrent project cap
	RunInterval    time.Duration       // Interval between test runs
	RunOnce        bool                // Indicates if the service should exit after one test run
	LogDir         string              // Directory to store raw test output, empty disables capture
	SlowThreshold  time.Duration       // Performance outlier threshold
	UnhealthyBelow float64             // Health verdict lower cut point
	HealthyAtLeast float64             // Health verdict upper cut point
	Stability      bool                // Repeated-run stability mode
	StabilityIters int                 // Iterations in stability mode
	ShowProgress   bool                // Log per-project progress during runs
	Verbose        bool                // Print all cases in the results table
	Log            *slog.Logger
	RunState       *service.RunState   // Optional sink for last-run state exposed via healthz
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log *slog.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	registryFile := ctx.String(flags.Projects.Name)
	projectPaths := ctx.Args().Slice()
	if registryFile == "" && len(projectPaths) == 0 {
		return nil, errors.New("either --projects or at least one project path is required")
	}
	if registryFile != "" && len(projectPaths) > 0 {
		return nil, errors.New("--projects and positional project paths are mutually exclusive")
	}

	if registryFile != "" {
		abs, err := filepath.Abs(registryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for registry file '%s': %w", registryFile, err)
		}
		registryFile = abs
	}
	for i, p := range projectPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for project '%s': %w", p, err)
		}
		projectPaths[i] = abs
	}

	framework, err := types.ParseFramework(ctx.String(flags.Framework.Name))
	if err != nil {
		return nil, err
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		logDir, err = filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
		}
	}

	stabilityIters := ctx.Int(flags.StabilityIterations.Name)
	if ctx.Bool(flags.Stability.Name) && stabilityIters < 2 {
		return nil, fmt.Errorf("stability mode needs at least 2 iterations, got %d", stabilityIters)
	}

	return &Config{
		ProjectPaths:   projectPaths,
		RegistryFile:   registryFile,
		Framework:      framework,
		TestFile:       ctx.String(flags.TestFile.Name),
		TestPattern:    ctx.String(flags.TestPattern.Name),
		Timeout:        ctx.Duration(flags.Timeout.Name),
		MaxParallel:    ctx.Int(flags.MaxParallel.Name),
		RunInterval:    runInterval,
		RunOnce:        runOnce,
		LogDir:         logDir,
		SlowThreshold:  ctx.Duration(flags.SlowThreshold.Name),
		UnhealthyBelow: ctx.Float64(flags.UnhealthyBelow.Name),
		HealthyAtLeast: ctx.Float64(flags.HealthyAtLeast.Name),
		Stability:      ctx.Bool(flags.Stability.Name),
		StabilityIters: stabilityIters,
		ShowProgress:   ctx.Bool(flags.ShowProgress.Name),
		Verbose:        ctx.Bool(flags.Verbose.Name),
		Log:            log,
	}, nil
}
