// Package detector inspects a project directory and proposes candidate test
// frameworks with confidence scores. Detection never picks a winner on its
// own: ties are returned in full so the caller sees the ambiguity.
package detector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/polytest/polytest/types"
)

// Detector scores framework evidence found in a project directory.
type Detector struct {
	log *slog.Logger
}

// New creates a detector. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{log: log}
}

// Detect returns candidate frameworks sorted by descending confidence.
// Equal-confidence candidates keep a stable framework order so repeated calls
// agree. An empty result means no markers were found; that is not an error.
func (d *Detector) Detect(projectPath string) ([]types.DetectedFramework, error) {
	info, err := os.Stat(projectPath)
	if err != nil {
		return nil, fmt.Errorf("project path %q: %w", projectPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %q is not a directory", projectPath)
	}

	pkg := readPackageJSON(projectPath)

	var candidates []types.DetectedFramework
	for _, framework := range types.KnownFrameworks {
		if c, ok := d.detectOne(projectPath, framework, pkg); ok {
			candidates = append(candidates, c)
		}
	}

	// KnownFrameworks already provides the secondary order; sort only needs
	// to be stable on confidence.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	d.log.Debug("framework detection finished",
		"project", projectPath, "candidates", len(candidates))
	return candidates, nil
}

func (d *Detector) detectOne(dir string, framework types.TestFramework, pkg *packageJSON) (types.DetectedFramework, bool) {
	switch framework {
	case types.FrameworkPytest:
		return d.detectPytest(dir)
	case types.FrameworkJest:
		return detectNodeFramework(dir, types.FrameworkJest, jestConfigFiles, pkg, pkg.hasJestConfig())
	case types.FrameworkVitest:
		return detectNodeFramework(dir, types.FrameworkVitest, vitestConfigFiles, pkg, false)
	case types.FrameworkCargo:
		return d.detectCargo(dir)
	case types.FrameworkMocha:
		return detectNodeFramework(dir, types.FrameworkMocha, mocharcFiles, pkg, pkg.hasMochaConfig())
	}
	return types.DetectedFramework{}, false
}

var (
	jestConfigFiles = []string{
		"jest.config.js", "jest.config.ts", "jest.config.mjs",
		"jest.config.cjs", "jest.config.json",
	}
	vitestConfigFiles = []string{
		"vitest.config.ts", "vitest.config.js", "vitest.config.mts",
		"vitest.config.mjs", "vitest.config.cts", "vitest.config.cjs",
	}
	mocharcFiles = []string{
		".mocharc.yml", ".mocharc.yaml", ".mocharc.json", ".mocharc.jsonc",
		".mocharc.js", ".mocharc.cjs",
	}
	requirementsFiles = []string{
		"requirements.txt", "requirements-dev.txt", "dev-requirements.txt",
	}
)

func (d *Detector) detectPytest(dir string) (types.DetectedFramework, bool) {
	if path, ok := fileExists(dir, "pytest.ini"); ok {
		return candidate(types.FrameworkPytest, types.ConfidenceConfigFile, path), true
	}
	if path, ok := iniSectionExists(dir, "tox.ini", "[pytest]"); ok {
		return candidate(types.FrameworkPytest, types.ConfidenceConfigFile, path), true
	}
	if path, ok := iniSectionExists(dir, "setup.cfg", "[tool:pytest]"); ok {
		return candidate(types.FrameworkPytest, types.ConfidenceConfigFile, path), true
	}

	pyprojectPath := filepath.Join(dir, "pyproject.toml")
	if data, err := os.ReadFile(pyprojectPath); err == nil {
		configured, dependency := inspectPyproject(data)
		if configured {
			return candidate(types.FrameworkPytest, types.ConfidenceConfigFile, pyprojectPath), true
		}
		if dependency {
			return candidate(types.FrameworkPytest, types.ConfidenceManifest, pyprojectPath), true
		}
	}

	for _, name := range requirementsFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			req := strings.TrimSpace(line)
			if req == "pytest" || strings.HasPrefix(req, "pytest=") ||
				strings.HasPrefix(req, "pytest>") || strings.HasPrefix(req, "pytest<") ||
				strings.HasPrefix(req, "pytest~") || strings.HasPrefix(req, "pytest ") {
				return candidate(types.FrameworkPytest, types.ConfidenceManifest, path), true
			}
		}
	}
	return types.DetectedFramework{}, false
}

// inspectPyproject reports whether pyproject.toml configures pytest and
// whether it lists pytest as a dependency.
func inspectPyproject(data []byte) (configured, dependency bool) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return false, false
	}

	if tool, ok := doc["tool"].(map[string]interface{}); ok {
		if _, ok := tool["pytest"]; ok {
			configured = true
		}
		if poetry, ok := tool["poetry"].(map[string]interface{}); ok {
			for _, key := range []string{"dev-dependencies", "dependencies"} {
				if deps, ok := poetry[key].(map[string]interface{}); ok {
					if _, ok := deps["pytest"]; ok {
						dependency = true
					}
				}
			}
		}
	}

	if project, ok := doc["project"].(map[string]interface{}); ok {
		dependency = dependency || listsPytest(project["dependencies"])
		if optional, ok := project["optional-dependencies"].(map[string]interface{}); ok {
			for _, group := range optional {
				dependency = dependency || listsPytest(group)
			}
		}
	}
	return configured, dependency
}

func listsPytest(v interface{}) bool {
	deps, ok := v.([]interface{})
	if !ok {
		return false
	}
	for _, dep := range deps {
		s, ok := dep.(string)
		if ok && strings.HasPrefix(strings.TrimSpace(s), "pytest") {
			return true
		}
	}
	return false
}

func (d *Detector) detectCargo(dir string) (types.DetectedFramework, bool) {
	path := filepath.Join(dir, "Cargo.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return types.DetectedFramework{}, false
	}
	// Any parseable Cargo manifest qualifies: `cargo test` is built in.
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		d.log.Debug("unparseable Cargo.toml ignored", "path", path, "err", err)
		return types.DetectedFramework{}, false
	}
	return candidate(types.FrameworkCargo, types.ConfidenceConfigFile, path), true
}

// detectNodeFramework covers the package.json-based frameworks: a dedicated
// config file or an inline package.json section is definitive, a
// devDependencies entry is a strong hint.
func detectNodeFramework(dir string, framework types.TestFramework, configFiles []string, pkg *packageJSON, inlineConfig bool) (types.DetectedFramework, bool) {
	for _, name := range configFiles {
		if path, ok := fileExists(dir, name); ok {
			return candidate(framework, types.ConfidenceConfigFile, path), true
		}
	}
	if inlineConfig {
		return candidate(framework, types.ConfidenceConfigFile, pkg.path), true
	}
	if pkg.dependsOn(string(framework)) {
		return candidate(framework, types.ConfidenceManifest, pkg.path), true
	}
	return types.DetectedFramework{}, false
}

// packageJSON is the subset of a Node manifest detection cares about.
type packageJSON struct {
	path            string
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Jest            json.RawMessage   `json:"jest"`
	Mocha           json.RawMessage   `json:"mocha"`
}

func readPackageJSON(dir string) *packageJSON {
	pkg := &packageJSON{}
	path := filepath.Join(dir, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return pkg
	}
	if err := json.Unmarshal(data, pkg); err != nil {
		return &packageJSON{}
	}
	pkg.path = path
	return pkg
}

func (p *packageJSON) dependsOn(name string) bool {
	if p == nil || p.path == "" {
		return false
	}
	if _, ok := p.DevDependencies[name]; ok {
		return true
	}
	_, ok := p.Dependencies[name]
	return ok
}

func (p *packageJSON) hasJestConfig() bool {
	return p != nil && p.path != "" && len(p.Jest) > 0
}

func (p *packageJSON) hasMochaConfig() bool {
	return p != nil && p.path != "" && len(p.Mocha) > 0
}

func candidate(f types.TestFramework, confidence int, configPath string) types.DetectedFramework {
	return types.DetectedFramework{Framework: f, Confidence: confidence, ConfigPath: configPath}
}

func fileExists(dir, name string) (string, bool) {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

func iniSectionExists(dir, name, section string) (string, bool) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == section {
			return path, true
		}
	}
	return "", false
}
