package types

import (
	"fmt"
	"os"
	"time"
)

// Request defaults applied by WithDefaults.
const (
	DefaultRunTimeout = 5 * time.Minute
	DefaultMaxWorkers = 4
)

// TestRunRequest describes one runner invocation. Ephemeral; constructed per
// call.
type TestRunRequest struct {
	ProjectPath string        `json:"project_path"`
	Framework   TestFramework `json:"framework,omitempty"`
	TestFile    string        `json:"test_file,omitempty"`
	TestPattern string        `json:"test_pattern,omitempty"`
	Timeout     time.Duration `json:"timeout_seconds,omitempty"`
	MaxWorkers  int           `json:"max_workers,omitempty"`
	Verbose     bool          `json:"verbose,omitempty"`
}

// WithDefaults returns a copy with zero-valued knobs filled in.
func (r TestRunRequest) WithDefaults() TestRunRequest {
	if r.Timeout <= 0 {
		r.Timeout = DefaultRunTimeout
	}
	if r.MaxWorkers <= 0 {
		r.MaxWorkers = DefaultMaxWorkers
	}
	return r
}

// Validate checks that the request targets an existing project directory and
// names a supported framework if one is pinned.
func (r TestRunRequest) Validate() error {
	if r.ProjectPath == "" {
		return fmt.Errorf("project path is required")
	}
	info, err := os.Stat(r.ProjectPath)
	if err != nil {
		return fmt.Errorf("project path %q does not exist: %w", r.ProjectPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project path %q is not a directory", r.ProjectPath)
	}
	if r.Framework != "" && r.Framework != FrameworkUnknown && !r.Framework.IsValid() {
		return fmt.Errorf("unsupported test framework %q", r.Framework)
	}
	return nil
}

// ProjectConfig is one entry in a project registry file. Framework and
// Timeout override detection and the global default when set.
type ProjectConfig struct {
	Path      string         `yaml:"path"`
	Framework TestFramework  `yaml:"framework,omitempty"`
	Timeout   *time.Duration `yaml:"timeout,omitempty"`
}

// UnmarshalYAML accepts timeouts in time.ParseDuration form ("30s", "2m").
func (p *ProjectConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		Path      string        `yaml:"path"`
		Framework TestFramework `yaml:"framework,omitempty"`
		Timeout   string        `yaml:"timeout,omitempty"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	p.Path = raw.Path
	p.Framework = raw.Framework
	p.Timeout = nil
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("project %s: invalid timeout %q: %w", raw.Path, raw.Timeout, err)
		}
		p.Timeout = &d
	}
	return nil
}
