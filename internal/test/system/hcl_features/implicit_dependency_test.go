package system

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/dag"
	"github.com/vk/gridbuild/internal/testutil"
)

// Test for: Referencing another task with task() in an action argument
// makes it a requirement and passes its output directory.
func TestHCLFeatures_ImplicitDependency(t *testing.T) {
	// --- Arrange ---
	build := `
task "gen" {
  write {
    path = "gen.txt"
    data = "generated"
  }
}

task "consume" {
  copy {
    source = [task("gen")]
  }
}
`

	// --- Act ---
	result := testutil.Run(t, map[string]string{"BUILD.hcl": build}, app.Config{Targets: []string{"consume"}}, nil)

	// --- Assert ---
	require.NoError(t, result.Err)
	require.Len(t, result.Results, 2)
	require.Equal(t, "gen", result.Results[0].Name)
	testutil.AssertTaskState(t, result, "gen", dag.Done)
	testutil.AssertTaskState(t, result, "consume", dag.Done)
	testutil.AssertFileContent(t, result, "_output_/gen/gen.txt", "generated")

	copied, err := filepath.Glob(filepath.Join(result.Root, "_output_", "consume", "*", "gen.txt"))
	require.NoError(t, err)
	require.Len(t, copied, 1)
}
