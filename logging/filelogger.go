package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/polytest/polytest/types"
)

// FileLogger captures raw framework output and canonical results for one run
// under <baseDir>/<runID>/. It exists for post-mortem inspection of a run's
// artifacts; it is not a historical results store.
type FileLogger struct {
	baseDir string
	runID   string
}

// NewFileLogger creates the run directory and returns a logger rooted at it.
func NewFileLogger(baseDir, runID string) (*FileLogger, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}
	return &FileLogger{baseDir: baseDir, runID: runID}, nil
}

// RunDir returns the directory holding this run's artifacts.
func (l *FileLogger) RunDir() string {
	return filepath.Join(l.baseDir, l.runID)
}

// RunID returns the identifier the logger was created with.
func (l *FileLogger) RunID() string {
	return l.runID
}

// StoreRawOutput writes the unmodified stdout/stderr of one project's test
// invocation.
func (l *FileLogger) StoreRawOutput(projectPath string, output []byte) error {
	if len(output) == 0 {
		return nil
	}
	name := sanitizeFilename(projectPath) + ".out.log"
	return os.WriteFile(filepath.Join(l.RunDir(), name), output, 0o644)
}

// StoreResult writes the canonical result for one project as JSON.
func (l *FileLogger) StoreResult(result *types.UnifiedTestResults) error {
	if result == nil {
		return nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result for %s: %w", result.ProjectPath, err)
	}
	name := sanitizeFilename(result.ProjectPath) + ".result.json"
	return os.WriteFile(filepath.Join(l.RunDir(), name), data, 0o644)
}

// sanitizeFilename flattens a project path into a safe file name.
func sanitizeFilename(path string) string {
	path = strings.Trim(filepath.ToSlash(filepath.Clean(path)), "/")
	if path == "" || path == "." {
		return "project"
	}
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return r.Replace(path)
}
