package system

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/dag"
	"github.com/vk/gridbuild/internal/testutil"
)

// Test for: Outputs of one task flow into the next through task references,
// across build files, and land next to the task's own artifacts.
func TestCoreExecution_DataPassing(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{
		"README.md": "# package\n",
		"proto/BUILD.hcl": `
task "schema" {
  outputs = { header = "schema.h" }
  write {
    path = "schema.h"
    data = "#define SCHEMA 2\n"
  }
}
`,
		"BUILD.hcl": `
task "package" {
  environment {
    STAGE = "final"
  }
  copy {
    source      = [task("schema", "//proto")]
    destination = "include"
  }
  archive {
    path   = "bundle.zip"
    files  = ["README.md"]
    prefix = "docs"
  }
}
`,
	}

	// --- Act ---
	result := testutil.Run(t, files, app.Config{Targets: []string{"package"}}, nil)

	// --- Assert ---
	require.NoError(t, result.Err)
	testutil.AssertTaskState(t, result, "schema", dag.Done)
	testutil.AssertTaskState(t, result, "package", dag.Done)
	testutil.AssertFileContent(t, result, "proto/_output_/schema/schema.h", "#define SCHEMA 2\n")

	headers, err := filepath.Glob(filepath.Join(result.Root, "_output_", "package", "include", "*", "schema.h"))
	require.NoError(t, err)
	require.Len(t, headers, 1)

	info, err := os.Stat(filepath.Join(result.Root, "_output_", "package", "bundle.zip"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.NotEqual(t, testutil.Result(t, result, "schema").Digest, testutil.Result(t, result, "package").Digest)
}
