package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytest/polytest/types"
)

type fakeDetector struct {
	candidates []types.DetectedFramework
	err        error
}

func (f *fakeDetector) Detect(projectPath string) ([]types.DetectedFramework, error) {
	return f.candidates, f.err
}

func newTestRunner(t *testing.T, det FrameworkDetector) *testRunner {
	t.Helper()
	r, err := New(Config{Detector: det, Log: slog.Default()})
	require.NoError(t, err)
	return r.(*testRunner)
}

func TestNewRequiresDetectorAndLogger(t *testing.T) {
	_, err := New(Config{Log: slog.Default()})
	require.Error(t, err)

	_, err = New(Config{Detector: &fakeDetector{}})
	require.Error(t, err)
}

func TestRunTestsInvalidRequest(t *testing.T) {
	r := newTestRunner(t, &fakeDetector{})

	_, err := r.RunTests(context.Background(), types.TestRunRequest{})
	require.Error(t, err)

	_, err = r.RunTests(context.Background(), types.TestRunRequest{ProjectPath: "/does/not/exist"})
	require.Error(t, err)
}

func TestRunTestsNoFrameworkDetected(t *testing.T) {
	r := newTestRunner(t, &fakeDetector{})

	result, err := r.RunTests(context.Background(), types.TestRunRequest{ProjectPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, types.FrameworkUnknown, result.Framework.Framework)
	assert.Equal(t, 0, result.Summary.Total)
	assert.Empty(t, result.Tests)
	assert.Empty(t, result.Error)
}

func TestRunTestsDetectorError(t *testing.T) {
	r := newTestRunner(t, &fakeDetector{err: errors.New("boom")})

	_, err := r.RunTests(context.Background(), types.TestRunRequest{ProjectPath: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detecting framework")
}

func TestRunTestsMissingExecutable(t *testing.T) {
	r := newTestRunner(t, &fakeDetector{candidates: []types.DetectedFramework{
		{Framework: types.FrameworkPytest, Confidence: types.ConfidenceConfigFile},
	}})
	r.exec.lookPath = func(bin string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	}

	_, err := r.RunTests(context.Background(), types.TestRunRequest{ProjectPath: t.TempDir()})
	require.Error(t, err)
	var envErr *EnvironmentError
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, "pytest", envErr.Tool)
}

func TestRunTestsHonorsPinnedFramework(t *testing.T) {
	// The detector must not be consulted when the framework is pinned
	det := &fakeDetector{err: errors.New("should not be called")}
	r := newTestRunner(t, det)
	r.exec.lookPath = func(bin string) (string, error) {
		return "", errors.New("not installed")
	}

	_, err := r.RunTests(context.Background(), types.TestRunRequest{
		ProjectPath: t.TempDir(),
		Framework:   types.FrameworkCargo,
	})
	var envErr *EnvironmentError
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, "cargo", envErr.Tool)
}

// totalsOnlyStrategy mimics a framework whose output yields self-reported
// totals but no recognizable test cases. It invokes sh so the run path is
// exercised end to end.
type totalsOnlyStrategy struct {
	exitCode int
}

func (s *totalsOnlyStrategy) Framework() types.TestFramework { return types.FrameworkPytest }

func (s *totalsOnlyStrategy) BuildCommand(req types.TestRunRequest) Command {
	return Command{Bin: "sh", Args: []string{"-c", fmt.Sprintf("echo totals-only; exit %d", s.exitCode)}}
}

func (s *totalsOnlyStrategy) Parse(output []byte) (ParseOutput, error) {
	return ParseOutput{Reported: &types.TestSummary{Total: 3, Passed: 2, Failed: 1}}, nil
}

func (s *totalsOnlyStrategy) ExplainsExit(code int) bool { return code == 1 }

func TestRunTestsReportedOnlyTotalsMarkDegraded(t *testing.T) {
	orig := strategies[types.FrameworkPytest]
	strategies[types.FrameworkPytest] = &totalsOnlyStrategy{exitCode: 1}
	defer func() { strategies[types.FrameworkPytest] = orig }()

	r := newTestRunner(t, &fakeDetector{})
	result, err := r.RunTests(context.Background(), types.TestRunRequest{
		ProjectPath: t.TempDir(),
		Framework:   types.FrameworkPytest,
	})
	require.NoError(t, err)

	// The reported totals stand in for the missing cases, but the result
	// must never claim counts its case list cannot back up.
	assert.Equal(t, types.TestSummary{Total: 3, Passed: 2, Failed: 1}, result.Summary)
	assert.Empty(t, result.Tests)
	require.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, "no test cases recognized")
	assert.True(t, result.CountsConsistent())
}

func TestResolveTestFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tests"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tests", "test_auth.py"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conftest.py"), nil, 0644))

	r := newTestRunner(t, &fakeDetector{})

	// A bare file name resolves against the project's test layout
	resolved := r.resolveTestFile(dir, types.FrameworkPytest, "test_auth.py")
	assert.Equal(t, filepath.Join("tests", "test_auth.py"), resolved)

	// An existing relative path is used as given
	resolved = r.resolveTestFile(dir, types.FrameworkPytest, "conftest.py")
	assert.Equal(t, "conftest.py", resolved)

	// Unresolvable names pass through so the framework reports the miss
	resolved = r.resolveTestFile(dir, types.FrameworkPytest, "test_missing.py")
	assert.Equal(t, "test_missing.py", resolved)

	assert.Equal(t, "", r.resolveTestFile(dir, types.FrameworkPytest, ""))
}

func TestResolveFrameworkPicksHighestConfidence(t *testing.T) {
	r := newTestRunner(t, &fakeDetector{candidates: []types.DetectedFramework{
		{Framework: types.FrameworkCargo, Confidence: types.ConfidenceConfigFile},
		{Framework: types.FrameworkJest, Confidence: types.ConfidenceManifest},
	}})

	framework, detected, err := r.resolveFramework(types.TestRunRequest{ProjectPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, types.FrameworkCargo, framework)
	assert.Equal(t, types.ConfidenceConfigFile, detected.Confidence)
}
