package detector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytest/polytest/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDetectEmptyProject(t *testing.T) {
	d := New(nil)
	candidates, err := d.Detect(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDetectMissingPath(t *testing.T) {
	d := New(nil)
	_, err := d.Detect(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestDetectPathIsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "somefile", "x")
	d := New(nil)
	_, err := d.Detect(filepath.Join(dir, "somefile"))
	require.Error(t, err)
}

func TestDetectPytestConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pytest.ini", "[pytest]\n")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.FrameworkPytest, candidates[0].Framework)
	assert.Equal(t, types.ConfidenceConfigFile, candidates[0].Confidence)
	assert.Equal(t, filepath.Join(dir, "pytest.ini"), candidates[0].ConfigPath)
}

func TestDetectPytestToxSection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tox.ini", "[tox]\nenvlist = py311\n\n[pytest]\naddopts = -q\n")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.FrameworkPytest, candidates[0].Framework)
	assert.Equal(t, types.ConfidenceConfigFile, candidates[0].Confidence)
}

func TestDetectPytestPyproject(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		confidence int
	}{
		{
			name:       "tool section",
			content:    "[tool.pytest.ini_options]\naddopts = \"-q\"\n",
			confidence: types.ConfidenceConfigFile,
		},
		{
			name:       "poetry dev dependency",
			content:    "[tool.poetry.dev-dependencies]\npytest = \"^8.0\"\n",
			confidence: types.ConfidenceManifest,
		},
		{
			name:       "pep 621 dependency",
			content:    "[project]\nname = \"demo\"\ndependencies = [\"pytest>=8\"]\n",
			confidence: types.ConfidenceManifest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "pyproject.toml", tt.content)

			d := New(nil)
			candidates, err := d.Detect(dir)
			require.NoError(t, err)
			require.Len(t, candidates, 1)
			assert.Equal(t, types.FrameworkPytest, candidates[0].Framework)
			assert.Equal(t, tt.confidence, candidates[0].Confidence)
		})
	}
}

func TestDetectPytestRequirements(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "requirements.txt", "requests==2.31.0\npytest>=8.0\n")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.ConfidenceManifest, candidates[0].Confidence)
}

func TestDetectJest(t *testing.T) {
	t.Run("config file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "jest.config.js", "module.exports = {};\n")

		d := New(nil)
		candidates, err := d.Detect(dir)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, types.FrameworkJest, candidates[0].Framework)
		assert.Equal(t, types.ConfidenceConfigFile, candidates[0].Confidence)
	})

	t.Run("inline package.json config", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `{"name":"demo","jest":{"testEnvironment":"node"}}`)

		d := New(nil)
		candidates, err := d.Detect(dir)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, types.FrameworkJest, candidates[0].Framework)
		assert.Equal(t, types.ConfidenceConfigFile, candidates[0].Confidence)
	})

	t.Run("devDependency", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "package.json", `{"name":"demo","devDependencies":{"jest":"^29.0.0"}}`)

		d := New(nil)
		candidates, err := d.Detect(dir)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, types.FrameworkJest, candidates[0].Framework)
		assert.Equal(t, types.ConfidenceManifest, candidates[0].Confidence)
	})
}

func TestDetectVitest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vitest.config.ts", "export default {};\n")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.FrameworkVitest, candidates[0].Framework)
	assert.Equal(t, types.ConfidenceConfigFile, candidates[0].Confidence)
}

func TestDetectMocha(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".mocharc.yml", "reporter: spec\n")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.FrameworkMocha, candidates[0].Framework)
}

func TestDetectCargo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", "[package]\nname = \"demo\"\nversion = \"0.1.0\"\n")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, types.FrameworkCargo, candidates[0].Framework)
	assert.Equal(t, types.ConfidenceConfigFile, candidates[0].Confidence)
}

func TestDetectUnparseableCargoTomlIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", "not [valid toml ===")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDetectTieReturnsAllCandidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pytest.ini", "[pytest]\n")
	writeFile(t, dir, "Cargo.toml", "[package]\nname = \"demo\"\n")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, candidates[0].Confidence, candidates[1].Confidence)
	// Equal confidence keeps a stable framework order
	assert.Equal(t, types.FrameworkPytest, candidates[0].Framework)
	assert.Equal(t, types.FrameworkCargo, candidates[1].Framework)
}

func TestDetectSortsByConfidence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"devDependencies":{"jest":"^29.0.0"}}`)
	writeFile(t, dir, "Cargo.toml", "[package]\nname = \"demo\"\n")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, types.FrameworkCargo, candidates[0].Framework)
	assert.Equal(t, types.ConfidenceConfigFile, candidates[0].Confidence)
	assert.Equal(t, types.FrameworkJest, candidates[1].Framework)
	assert.Equal(t, types.ConfidenceManifest, candidates[1].Confidence)
}

func TestDetectMalformedPackageJSONIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", "{ not json")

	d := New(nil)
	candidates, err := d.Detect(dir)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
