package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "POLYTEST"

// prefixEnvVars adds the application prefix to the environment variable name.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Projects = &cli.StringFlag{
		Name:    "projects",
		Value:   "",
		EnvVars: prefixEnvVars("PROJECTS"),
		Usage:   "Path to the project registry file (eg. 'projects.yaml'). Positional project paths may be used instead.",
	}
	Framework = &cli.StringFlag{
		Name:    "framework",
		Value:   "",
		EnvVars: prefixEnvVars("FRAMEWORK"),
		Usage:   "Force a framework instead of detecting it (pytest, jest, vitest, cargo, mocha)",
	}
	TestFile = &cli.StringFlag{
		Name:    "test-file",
		Value:   "",
		EnvVars: prefixEnvVars("TEST_FILE"),
		Usage:   "Run only the given test file in each project",
	}
	TestPattern = &cli.StringFlag{
		Name:    "test-pattern",
		Value:   "",
		EnvVars: prefixEnvVars("TEST_PATTERN"),
		Usage:   "Run only tests whose names match the pattern",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   5 * time.Minute,
		EnvVars: prefixEnvVars("TIMEOUT"),
		Usage:   "Timeout for each project's test run",
	}
	MaxParallel = &cli.IntFlag{
		Name:    "max-parallel",
		Value:   4,
		EnvVars: prefixEnvVars("MAX_PARALLEL"),
		Usage:   "Maximum number of projects run concurrently",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "",
		EnvVars: prefixEnvVars("LOG_DIR"),
		Usage:   "Directory to store raw framework output per run. Empty disables capture.",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level (debug, info, warn, error)",
	}
	SlowThreshold = &cli.DurationFlag{
		Name:    "slow-threshold",
		Value:   time.Second,
		EnvVars: prefixEnvVars("SLOW_THRESHOLD"),
		Usage:   "Tests slower than this are reported as performance outliers",
	}
	UnhealthyBelow = &cli.Float64Flag{
		Name:    "unhealthy-below",
		Value:   0.5,
		EnvVars: prefixEnvVars("UNHEALTHY_BELOW"),
		Usage:   "Pass rate below which the run is reported unhealthy",
	}
	HealthyAtLeast = &cli.Float64Flag{
		Name:    "healthy-at-least",
		Value:   0.9,
		EnvVars: prefixEnvVars("HEALTHY_AT_LEAST"),
		Usage:   "Pass rate at or above which the run is reported healthy",
	}
	Stability = &cli.BoolFlag{
		Name:    "stability",
		Value:   false,
		EnvVars: prefixEnvVars("STABILITY"),
		Usage:   "Run the suite repeatedly and produce a flaky-test stability report",
	}
	StabilityIterations = &cli.IntFlag{
		Name:    "stability-iterations",
		Value:   5,
		EnvVars: prefixEnvVars("STABILITY_ITERATIONS"),
		Usage:   "Number of repeated runs in stability mode",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: prefixEnvVars("SHOW_PROGRESS"),
		Usage:   "Log per-project completion during multi-project runs",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Value:   false,
		EnvVars: prefixEnvVars("VERBOSE"),
		Usage:   "Print every test case in the results table, not just failures",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Projects,
	Framework,
	TestFile,
	TestPattern,
	Timeout,
	MaxParallel,
	RunInterval,
	LogDir,
	LogLevel,
	SlowThreshold,
	UnhealthyBelow,
	HealthyAtLeast,
	Stability,
	StabilityIterations,
	ShowProgress,
	Verbose,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
