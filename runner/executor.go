package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// execResult carries the raw outcome of one framework subprocess.
type execResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// executor runs framework commands inside a project directory. Test runners
// routinely fork workers (jest spawns one per CPU, pytest-xdist likewise),
// so each command gets its own process group and a timeout kills the whole
// group, not just the leader.
type executor struct {
	// lookPath is exec.LookPath unless a test substitutes it.
	lookPath func(string) (string, error)
}

func newExecutor() *executor {
	return &executor{lookPath: exec.LookPath}
}

// resolve checks the framework binary is reachable before anything is
// spawned; a missing tool is an environment problem, not a test failure.
func (e *executor) resolve(bin string) (string, error) {
	path, err := e.lookPath(bin)
	if err != nil {
		return "", &EnvironmentError{Tool: bin, Err: err}
	}
	return path, nil
}

func (e *executor) run(ctx context.Context, dir string, command Command, timeout time.Duration) (*execResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command.Bin, command.Args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid addresses the process group
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout := newTailBuffer(0)
	stderr := newTailBuffer(0)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	result := &execResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if result.TimedOut {
			result.ExitCode = -1
			return result, nil
		}
		return result, err
	}
	return result, nil
}
