package runner

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentErrorWrapsCause(t *testing.T) {
	cause := exec.ErrNotFound
	err := &EnvironmentError{Tool: "pytest", Err: cause}

	assert.Contains(t, err.Error(), `"pytest"`)
	assert.True(t, errors.Is(err, exec.ErrNotFound))

	var envErr *EnvironmentError
	require.True(t, errors.As(fmt.Errorf("running tests: %w", err), &envErr))
	assert.Equal(t, "pytest", envErr.Tool)
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Timeout: 90 * time.Second}
	assert.Equal(t, "timed out after 90s", err.Error())

	err = &TimeoutError{Timeout: 1500 * time.Millisecond}
	assert.Equal(t, "timed out after 1.5s", err.Error())
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Framework: "jest", Reason: "no JSON object found"}
	assert.Equal(t, "unrecognized jest output: no JSON object found", err.Error())
}

func TestProcessErrorMessage(t *testing.T) {
	err := &ProcessError{ExitCode: 2}
	assert.Equal(t, "test process exited with code 2", err.Error())

	err = &ProcessError{ExitCode: 2, Stderr: "config error"}
	assert.Equal(t, "test process exited with code 2: config error", err.Error())
}
