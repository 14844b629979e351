package runner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/polytest/polytest/types"
)

// Directories that never contain first-party tests.
var skippedDirs = map[string]bool{
	"node_modules":  true,
	"target":        true,
	"vendor":        true,
	"venv":          true,
	".venv":         true,
	"__pycache__":   true,
	".git":          true,
	"dist":          true,
	"build":         true,
	".pytest_cache": true,
}

// DiscoverTestFiles walks a project and returns the relative paths of files
// that match the framework's test naming convention, sorted for stable
// output. Hidden directories and dependency/build trees are skipped.
func DiscoverTestFiles(projectPath string, framework types.TestFramework) ([]string, error) {
	var files []string
	err := filepath.WalkDir(projectPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != projectPath && (skippedDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(projectPath, path)
		if err != nil {
			return err
		}
		if !isTestFile(rel, name, framework) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func isTestFile(rel, name string, framework types.TestFramework) bool {
	switch framework {
	case types.FrameworkPytest:
		return strings.HasSuffix(name, ".py") &&
			(strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py"))
	case types.FrameworkJest, types.FrameworkVitest:
		for _, ext := range []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"} {
			if strings.HasSuffix(name, ".test"+ext) || strings.HasSuffix(name, ".spec"+ext) {
				return true
			}
		}
		return false
	case types.FrameworkCargo:
		// Integration tests are top-level files under tests/
		return strings.HasSuffix(name, ".rs") &&
			strings.HasPrefix(filepath.ToSlash(rel), "tests/")
	case types.FrameworkMocha:
		for _, ext := range []string{".js", ".mjs", ".cjs", ".ts"} {
			if strings.HasSuffix(name, ext) {
				return strings.Contains(name, ".test") ||
					strings.Contains(name, ".spec") ||
					strings.HasPrefix(name, "test")
			}
		}
		return false
	default:
		return false
	}
}
