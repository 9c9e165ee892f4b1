package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridbuild/internal/buildfile"
	"github.com/vk/gridbuild/internal/dag"
)

const rootBuild = `
task "hello" {
  requires = ["gen://lib"]
  print {
    messages = ["hello from root"]
  }
}

task "other" {
  description = "not a requirement"
}
`

const libBuild = `
task "gen" {
  write {
    path = "version.txt"
    data = "1.0"
  }
}
`

func setup(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestApp(t *testing.T, cfg Config) (*App, *bytes.Buffer) {
	t.Helper()
	c, err := NewConfig(cfg)
	require.NoError(t, err)
	out := &bytes.Buffer{}
	a, err := NewApp(out, &bytes.Buffer{}, c)
	require.NoError(t, err)
	return a, out
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{LogLevel: "DEBUG"})
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Directory)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	_, err = NewConfig(Config{LogLevel: "verbose"})
	assert.ErrorContains(t, err, "invalid log level")
	_, err = NewConfig(Config{LogFormat: "xml"})
	assert.ErrorContains(t, err, "invalid log format")
	_, err = NewConfig(Config{Workers: -1})
	assert.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	ref, err := parseTarget("build")
	require.NoError(t, err)
	assert.Equal(t, "build", ref.Name)
	assert.Nil(t, ref.Path)

	ref, err = parseTarget("build://lib")
	require.NoError(t, err)
	assert.Equal(t, "build://lib", ref.String())

	_, err = parseTarget("9lives")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestRun_BuildsRequirementsAndCaches(t *testing.T) {
	root := setup(t, map[string]string{"BUILD.hcl": rootBuild, "lib/BUILD.hcl": libBuild})
	ctx := context.Background()

	a, out := newTestApp(t, Config{Directory: root, Targets: []string{"hello"}})
	results, err := a.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "gen", results[0].Name)
	assert.Equal(t, "lib/BUILD.hcl", results[0].File)
	assert.Equal(t, dag.Done, results[0].State)
	assert.Equal(t, dag.Done, results[1].State)
	assert.Contains(t, out.String(), "hello from root")

	link := filepath.Join(root, "lib", "_output_", "gen", "version.txt")
	data, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Equal(t, "1.0", string(data))

	again, _ := newTestApp(t, Config{Directory: root, Targets: []string{"hello"}})
	results, err = again.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, dag.Cached, results[0].State)
	assert.Equal(t, dag.Cached, results[1].State)

	forced, _ := newTestApp(t, Config{Directory: root, Targets: []string{"hello"}, Force: true})
	results, err = forced.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, dag.Done, results[0].State)
}

func TestRun_AllTasksWithoutTargets(t *testing.T) {
	root := setup(t, map[string]string{"BUILD.hcl": rootBuild, "lib/BUILD.hcl": libBuild})
	a, _ := newTestApp(t, Config{Directory: root, DryRun: true})

	results, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 3)

	_, err = os.Stat(filepath.Join(root, ".gridbuild"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTargets_UnknownTask(t *testing.T) {
	root := setup(t, map[string]string{"BUILD.hcl": rootBuild})
	a, _ := newTestApp(t, Config{Directory: root, Targets: []string{"nope"}})

	_, err := a.Targets(context.Background())
	var unknown *buildfile.UnknownTaskError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)
}

func TestTasksAndHashes(t *testing.T) {
	root := setup(t, map[string]string{"BUILD.hcl": rootBuild, "lib/BUILD.hcl": libBuild})
	a, _ := newTestApp(t, Config{Directory: root})

	tasks, err := a.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "not a requirement", tasks[1].Description)

	hashes, err := a.Hashes(context.Background())
	require.NoError(t, err)
	require.Len(t, hashes, 2)
	assert.Equal(t, "BUILD.hcl", hashes[0].File)
	assert.Equal(t, "lib/BUILD.hcl", hashes[1].File)
	assert.Len(t, hashes[0].Hash, 64)
	assert.NotEqual(t, hashes[0].Hash, hashes[1].Hash)
}

func TestNewApp_WorkspaceFile(t *testing.T) {
	root := setup(t, map[string]string{
		"WORKSPACE.toml": "name = \"demo\"\noutput_folder = \"out\"\n",
		"pkg/BUILD.hcl":  libBuild,
	})
	a, _ := newTestApp(t, Config{Directory: filepath.Join(root, "pkg")})
	assert.Equal(t, "demo", a.Workspace().Name)
	assert.Equal(t, "out", a.Workspace().OutputFolder())
}
