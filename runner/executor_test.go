package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorCapturesOutputAndExitCode(t *testing.T) {
	e := newExecutor()
	res, err := e.run(context.Background(), t.TempDir(), Command{
		Bin:  "sh",
		Args: []string{"-c", "echo out; echo err >&2; exit 3"},
	}, 10*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestExecutorTimeoutKillsProcessGroup(t *testing.T) {
	e := newExecutor()
	start := time.Now()
	res, err := e.run(context.Background(), t.TempDir(), Command{
		Bin:  "sh",
		Args: []string{"-c", "sleep 30 & sleep 30"},
	}, 200*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecutorRespectsContextCancellation(t *testing.T) {
	e := newExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := e.run(ctx, t.TempDir(), Command{
		Bin:  "sh",
		Args: []string{"-c", "sleep 30"},
	}, 0)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecutorResolveMissingBinary(t *testing.T) {
	e := newExecutor()
	e.lookPath = func(string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	}
	_, err := e.resolve("definitely-not-installed")
	var envErr *EnvironmentError
	require.True(t, errors.As(err, &envErr))
	assert.Contains(t, envErr.Error(), "definitely-not-installed")
}

func TestTailBufferKeepsTail(t *testing.T) {
	b := newTailBuffer(8)
	_, err := b.Write([]byte("0123456789"))
	require.NoError(t, err)

	assert.Equal(t, "23456789", string(b.Bytes()))
	assert.True(t, b.Truncated())
	assert.Equal(t, int64(10), b.TotalBytes())
}

func TestTailBufferSmallWrites(t *testing.T) {
	b := newTailBuffer(1024)
	for i := 0; i < 10; i++ {
		_, err := b.Write([]byte(strings.Repeat("x", 10)))
		require.NoError(t, err)
	}
	assert.Len(t, b.Bytes(), 100)
	assert.False(t, b.Truncated())
}
