package system

import (
	"testing"
	"time"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/testutil"
)

// Test for: Independent tasks run concurrently, limited by the worker count.
func TestDagConcurrency_IndependentExecution(t *testing.T) {
	build := testutil.ToolTask("A") + testutil.ToolTask("B") + testutil.ToolTask("C")

	t.Run("parallel", func(t *testing.T) {
		launcher := testutil.NewSleeperLauncher(nil, 150*time.Millisecond)
		result := testutil.Run(t, map[string]string{"BUILD.hcl": build}, app.Config{Workers: 3}, launcher)
		if result.Err != nil {
			t.Fatalf("app.Run() returned an unexpected error: %v", result.Err)
		}
		if launcher.Ran() != 3 {
			t.Fatalf("expected 3 executions, got %d", launcher.Ran())
		}
		if !overlaps(launcher.Record("A"), launcher.Record("B")) || !overlaps(launcher.Record("B"), launcher.Record("C")) {
			t.Errorf("independent tasks did not run concurrently")
		}
	})

	t.Run("single worker", func(t *testing.T) {
		launcher := testutil.NewSleeperLauncher(nil, 50*time.Millisecond)
		result := testutil.Run(t, map[string]string{"BUILD.hcl": build}, app.Config{Workers: 1}, launcher)
		if result.Err != nil {
			t.Fatalf("app.Run() returned an unexpected error: %v", result.Err)
		}
		ids := []string{"A", "B", "C"}
		for i := range ids {
			for j := i + 1; j < len(ids); j++ {
				if overlaps(launcher.Record(ids[i]), launcher.Record(ids[j])) {
					t.Errorf("tasks %s and %s overlapped with one worker", ids[i], ids[j])
				}
			}
		}
	})
}
