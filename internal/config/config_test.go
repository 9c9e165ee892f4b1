package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "WORKSPACE.toml", `
name = "demo"
version = "v0.1.0"
allow_absolute_paths = false
workers = 2
ignore = ["*.pyc"]

[environment]
CC = "clang"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.False(t, cfg.AllowAbsolutePaths)
	// Absent booleans keep their defaults.
	assert.True(t, cfg.AllowWorkspacePaths)
	assert.True(t, cfg.LinkOutputs)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, []string{"*.pyc"}, cfg.Ignore)
	assert.Equal(t, map[string]string{"CC": "clang"}, cfg.Environment)
	assert.Equal(t, "BUILD.hcl", cfg.BuildFile)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "WORKSPACE.yaml", `
name: demo
output_folder: out
shell: ["/bin/sh", "-e"]
allow_workspace_paths: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.OutputFolder)
	assert.Equal(t, []string{"/bin/sh", "-e"}, cfg.Shell)
	assert.False(t, cfg.AllowWorkspacePaths)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoad_EmptyYAMLUsesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "WORKSPACE.yml", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		file     string
		content  string
		contains string
	}{
		{"unknown toml key", "WORKSPACE.toml", `colour = "blue"`, "unknown key"},
		{"unknown yaml key", "WORKSPACE.yaml", "colour: blue\n", "colour"},
		{"bad version", "WORKSPACE.toml", `version = "1.0"`, "not a valid semantic version"},
		{"future version", "WORKSPACE.toml", `version = "v99.0.0"`, "requires engine"},
		{"bad output folder", "WORKSPACE.toml", `output_folder = "a/b"`, "output_folder"},
		{"no workers", "WORKSPACE.toml", `workers = 0`, "workers"},
		{"bad ignore", "WORKSPACE.toml", `ignore = ["[x"]`, "ignore pattern"},
		{"unknown format", "WORKSPACE.json", `{}`, "unsupported workspace file format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tc.file, tc.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.contains)
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "WORKSPACE.toml", "")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "WORKSPACE.toml"), found)

	found, err = Find(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, found)
}
