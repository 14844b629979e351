// Package registry loads the project registry file that tells polytest which
// projects to run and with what per-project overrides.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polytest/polytest/types"
)

// Registry manages the configured projects.
type Registry struct {
	config   Config
	projects []types.ProjectConfig
	mu       sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log               *slog.Logger
	ProjectConfigFile string
	DefaultTimeout    time.Duration
}

// projectsFile is the on-disk shape of the registry.
type projectsFile struct {
	Projects []types.ProjectConfig `yaml:"projects"`
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.ProjectConfigFile == "" {
		return nil, fmt.Errorf("project config file is required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}

	if err := r.loadProjects(cfg.ProjectConfigFile); err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(projects)", len(r.projects))

	return r, nil
}

// loadProjects reads and validates the registry file.
func (r *Registry) loadProjects(cfgPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cfgPath, err)
	}

	var file projectsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cfgPath, err)
	}
	if len(file.Projects) == 0 {
		return fmt.Errorf("config file %s lists no projects", cfgPath)
	}

	// Paths are relative to the registry file's directory
	baseDir := filepath.Dir(cfgPath)
	seen := make(map[string]bool, len(file.Projects))
	for i, p := range file.Projects {
		if p.Path == "" {
			return fmt.Errorf("project %d has no path", i)
		}
		if !filepath.IsAbs(p.Path) {
			file.Projects[i].Path = filepath.Join(baseDir, p.Path)
		}
		if p.Framework != "" {
			if _, err := types.ParseFramework(string(p.Framework)); err != nil {
				return fmt.Errorf("project %s: %w", p.Path, err)
			}
		}
		if seen[file.Projects[i].Path] {
			return fmt.Errorf("project %s listed twice", file.Projects[i].Path)
		}
		seen[file.Projects[i].Path] = true
	}

	r.projects = file.Projects
	return nil
}

// Projects returns the configured projects.
func (r *Registry) Projects() []types.ProjectConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ProjectConfig, len(r.projects))
	copy(out, r.projects)
	return out
}

// ProjectPaths returns just the project paths, in file order.
func (r *Registry) ProjectPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, len(r.projects))
	for i, p := range r.projects {
		paths[i] = p.Path
	}
	return paths
}

// TimeoutFor returns the effective timeout for a project, falling back to
// the registry default.
func (r *Registry) TimeoutFor(p types.ProjectConfig) time.Duration {
	if p.Timeout != nil {
		return *p.Timeout
	}
	if r.config.DefaultTimeout > 0 {
		return r.config.DefaultTimeout
	}
	return types.DefaultRunTimeout
}
