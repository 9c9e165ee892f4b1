package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/dag"
)

// Result returns the outcome of the named task, failing the test when the
// task was not part of the build.
func Result(t *testing.T, result *HarnessResult, name string) app.Result {
	t.Helper()
	for _, r := range result.Results {
		if r.Name == name {
			return r
		}
	}
	require.Failf(t, "task not built", "task %q is not in the build graph", name)
	return app.Result{}
}

// AssertTaskState checks the final state of a task.
func AssertTaskState(t *testing.T, result *HarnessResult, name string, want dag.State) {
	t.Helper()
	got := Result(t, result, name).State
	require.Equal(t, want, got, "task %q ended %s, want %s", name, got, want)
}

// AssertFileContent checks a file below the workspace root.
func AssertFileContent(t *testing.T, result *HarnessResult, name, want string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(result.Root, filepath.FromSlash(name)))
	require.NoError(t, err)
	require.Equal(t, want, string(data))
}
