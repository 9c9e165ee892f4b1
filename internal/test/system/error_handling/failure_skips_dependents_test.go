package system

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/dag"
	"github.com/vk/gridbuild/internal/testutil"
)

// Test for: A failing task skips everything downstream of it while
// unrelated tasks still run.
func TestErrorHandling_FailureSkipsDependents(t *testing.T) {
	// --- Arrange ---
	build := testutil.ToolTask("A") + testutil.ToolTask("B", "A") + testutil.ToolTask("C", "B") + testutil.ToolTask("D")
	launcher := testutil.NewSleeperLauncher(nil, 20*time.Millisecond)
	launcher.ExitCodes["A"] = 3

	// --- Act ---
	result := testutil.Run(t, map[string]string{"BUILD.hcl": build}, app.Config{Workers: 2}, launcher)

	// --- Assert ---
	if result.Err == nil {
		t.Fatal("expected the run to fail, but it succeeded")
	}
	if !strings.Contains(result.Err.Error(), "execution failed for A") {
		t.Errorf("expected the error to name task A, got: %v", result.Err)
	}

	testutil.AssertTaskState(t, result, "A", dag.Failed)
	testutil.AssertTaskState(t, result, "B", dag.Skipped)
	testutil.AssertTaskState(t, result, "C", dag.Skipped)
	testutil.AssertTaskState(t, result, "D", dag.Done)

	if !errors.Is(testutil.Result(t, result, "C").Err, dag.ErrSkipped) {
		t.Errorf("expected C to carry ErrSkipped, got: %v", testutil.Result(t, result, "C").Err)
	}
	if launcher.Record("B") != nil || launcher.Record("C") != nil {
		t.Errorf("skipped tasks were executed")
	}
	if launcher.Record("D") == nil {
		t.Errorf("independent task D did not run")
	}
}
