package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	polytest "github.com/polytest/polytest"
	"github.com/polytest/polytest/exitcodes"
	"github.com/polytest/polytest/flags"
	"github.com/polytest/polytest/logging"
	"github.com/polytest/polytest/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "polytest"
	app.Usage = "Polyglot Test Orchestration Service"
	app.Description = "polytest detects and runs test suites across frameworks and languages"
	app.ArgsUsage = "[project paths...]"
	// Shared with the healthz server so it can report the last run's outcome
	runState := service.NewRunState()

	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		return run(ctx, runState)
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed runtime errors
			if polytest.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if polytest.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	// Start telemetry
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		slog.Error("Failed to setup open telemetry", "message", err)
		os.Exit(exitcodes.RuntimeErr)
	}
	defer otelShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start healthz and metrics servers
	svc := service.New(slog.Default(), runState)
	svc.Start(ctx)
	defer svc.Shutdown()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "message", err)
		os.Exit(exitcodes.RuntimeErr)
	}
}

func run(ctx *cli.Context, runState *service.RunState) error {
	level, err := logging.ParseLevel(ctx.String(flags.LogLevel.Name))
	if err != nil {
		return polytest.NewRuntimeError(err)
	}
	log := logging.New(level, os.Stderr)
	slog.SetDefault(log)

	cfg, err := polytest.NewConfig(ctx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return polytest.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.RunState = runState

	runCtx, cancel := context.WithCancelCause(ctx.Context)
	defer cancel(nil)

	orchestrator, err := polytest.New(runCtx, cfg, Version, cancel)
	if err != nil {
		return polytest.NewRuntimeError(fmt.Errorf("failed to create orchestrator: %w", err))
	}

	if err := orchestrator.Start(runCtx); err != nil {
		return err
	}

	// Block until the run-once callback or a signal asks for shutdown
	<-runCtx.Done()

	if err := orchestrator.Stop(context.Background()); err != nil {
		log.Error("Failed to stop orchestrator", "error", err)
	}

	if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}
