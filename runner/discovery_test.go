package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytest/polytest/types"
)

func touch(t *testing.T, root string, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))
}

func TestDiscoverPytestFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "tests/test_math.py")
	touch(t, dir, "tests/helpers.py")
	touch(t, dir, "src/calc_test.py")
	touch(t, dir, "venv/lib/test_ignored.py")
	touch(t, dir, "__pycache__/test_cached.py")

	files, err := DiscoverTestFiles(dir, types.FrameworkPytest)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/calc_test.py", "tests/test_math.py"}, files)
}

func TestDiscoverJestFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "src/math.test.ts")
	touch(t, dir, "src/math.spec.js")
	touch(t, dir, "src/math.ts")
	touch(t, dir, "node_modules/pkg/index.test.js")

	files, err := DiscoverTestFiles(dir, types.FrameworkJest)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/math.spec.js", "src/math.test.ts"}, files)
}

func TestDiscoverCargoFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "tests/api_test.rs")
	touch(t, dir, "src/lib.rs")
	touch(t, dir, "target/debug/generated.rs")

	files, err := DiscoverTestFiles(dir, types.FrameworkCargo)
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/api_test.rs"}, files)
}

func TestDiscoverSkipsHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, ".cache/test_hidden.py")
	touch(t, dir, "test_visible.py")

	files, err := DiscoverTestFiles(dir, types.FrameworkPytest)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_visible.py"}, files)
}

func TestDiscoverUnknownFramework(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "test_math.py")

	files, err := DiscoverTestFiles(dir, types.FrameworkUnknown)
	require.NoError(t, err)
	assert.Empty(t, files)
}
