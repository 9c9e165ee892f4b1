package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridbuild/internal/config"
)

func TestDetect_WithWorkspaceFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "WORKSPACE.toml"), []byte(`
name = "demo"
ignore = ["*.pyc"]
output_root = "cache"
`), 0o644))
	sub := filepath.Join(root, "pkg", "lib")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	ws, err := Detect(sub)
	require.NoError(t, err)

	assert.Equal(t, root, ws.Root)
	assert.Equal(t, "demo", ws.Name)
	assert.Equal(t, filepath.Join(root, "cache"), ws.OutputRoot())
	assert.Equal(t, filepath.Join(sub, "BUILD.hcl"), ws.BuildFile(sub))
	assert.Equal(t, "pkg/lib", ws.Rel(sub))
}

func TestDetect_DefaultsToDirectory(t *testing.T) {
	root := t.TempDir()

	ws, err := Detect(root)
	require.NoError(t, err)

	assert.Equal(t, root, ws.Root)
	assert.Equal(t, filepath.Base(root), ws.Name)
	assert.Equal(t, config.Default(), ws.Config)
}

func TestIgnore(t *testing.T) {
	cfg := config.Default()
	cfg.Ignore = []string{"*.pyc", "node_modules"}
	ws, err := New(t.TempDir(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"_output_", ".gridbuild", "*.pyc", "node_modules"}, ws.IgnoreNames())
	assert.True(t, ws.Ignored("_output_"))
	assert.True(t, ws.Ignored("x.pyc"))
	assert.False(t, ws.Ignored("x.py"))

	assert.True(t, ws.IgnorePattern().MatchString("/r/node_modules/a/b.js"))
	assert.True(t, ws.IgnorePattern().MatchString("/r/pkg/_output_"))
	assert.False(t, ws.IgnorePattern().MatchString("/r/pkg/src/a.py"))
	assert.True(t, ws.IgnorePattern().MatchString("/r/.gridbuild/0123/task/out.txt"))
}

func TestIgnore_OutputRootAlwaysIgnored(t *testing.T) {
	testCases := []struct {
		name       string
		outputRoot string
		want       []string
	}{
		{name: "default root", outputRoot: ".gridbuild", want: []string{"_output_", ".gridbuild", "*.tmp"}},
		{name: "custom root", outputRoot: "build/cache", want: []string{"_output_", "cache", "*.tmp"}},
		{name: "outside workspace", outputRoot: filepath.Join(os.TempDir(), "gridbuild-cache"), want: []string{"_output_", "*.tmp"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Ignore = []string{"*.tmp"}
			cfg.OutputRoot = tc.outputRoot
			ws, err := New(t.TempDir(), cfg)
			require.NoError(t, err)

			assert.Equal(t, tc.want, ws.IgnoreNames())
			name := filepath.Base(ws.OutputRoot())
			assert.Equal(t, len(tc.want) == 3, ws.Ignored(name))
			assert.Equal(t, len(tc.want) == 3, ws.IgnorePattern().MatchString("/r/"+name+"/0123/task/out.txt"))
		})
	}
}

func TestRel_OutsideWorkspace(t *testing.T) {
	ws, err := New(filepath.Join(t.TempDir(), "ws"), config.Default())
	require.NoError(t, err)
	outside := filepath.Join(filepath.Dir(ws.Root), "other")
	assert.Equal(t, outside, ws.Rel(outside))
}
