package system

import (
	"context"
	"testing"
	"time"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/dag"
	"github.com/vk/gridbuild/internal/testutil"
)

// Test for: Unchanged tasks are served from the cache; changing an input
// rebuilds the task and everything downstream of it.
func TestCoreExecution_IncrementalBuild(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{
		"src/main.c": "int main() { return 0; }\n",
		"BUILD.hcl": `
task "compile" {
  requires = [glob("src/*.c")]
  execute {
    executable = "//bin/tool"
    arguments  = ["compile"]
  }
}

task "link" {
  requires = ["compile:"]
  execute {
    executable = "//bin/tool"
    arguments  = ["link"]
  }
}

task "docs" {
  execute {
    executable = "//bin/tool"
    arguments  = ["docs"]
  }
}
`,
	}
	root := testutil.Workspace(t, files)
	ctx := context.Background()
	build := func() (*testutil.HarnessResult, *testutil.SleeperLauncher) {
		launcher := testutil.NewSleeperLauncher(nil, time.Millisecond)
		result := testutil.Build(ctx, t, root, app.Config{}, launcher)
		if result.Err != nil {
			t.Fatalf("app.Run() returned an unexpected error: %v", result.Err)
		}
		return result, launcher
	}

	// --- Act & Assert ---
	first, launcher := build()
	if launcher.Ran() != 3 {
		t.Fatalf("expected 3 executions on a clean build, got %d", launcher.Ran())
	}
	for _, id := range []string{"compile", "link", "docs"} {
		testutil.AssertTaskState(t, first, id, dag.Done)
	}

	second, launcher := build()
	if launcher.Ran() != 0 {
		t.Errorf("expected a fully cached build, got %d executions", launcher.Ran())
	}
	for _, id := range []string{"compile", "link", "docs"} {
		testutil.AssertTaskState(t, second, id, dag.Cached)
	}

	testutil.WriteFile(t, root, "src/main.c", "int main() { return 1; }\n")
	third, launcher := build()
	testutil.AssertTaskState(t, third, "compile", dag.Done)
	testutil.AssertTaskState(t, third, "link", dag.Done)
	testutil.AssertTaskState(t, third, "docs", dag.Cached)
	if launcher.Record("docs") != nil {
		t.Errorf("unchanged task docs was rebuilt")
	}
}
