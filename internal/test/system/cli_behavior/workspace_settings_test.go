package system

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vk/gridbuild/internal/cli"
	"github.com/vk/gridbuild/internal/testutil"
)

const gridFile = `
task "stamp" {
  description = "write the build stamp"
  write {
    path = "stamp.txt"
    data = "stamped"
  }
}
`

// Test for: Settings from the workspace file apply to runs started from any
// directory below it.
func TestCLI_HonorsWorkspaceSettings(t *testing.T) {
	testCases := []struct {
		name  string
		file  string
		value string
	}{
		{"toml", "WORKSPACE.toml", "name = \"cli\"\nbuild_file = \"GRID.hcl\"\noutput_folder = \"out\"\n"},
		{"yaml", "WORKSPACE.yaml", "name: cli\nbuild_file: GRID.hcl\noutput_folder: out\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			root := testutil.Workspace(t, map[string]string{
				tc.file:           tc.value,
				"svc/GRID.hcl":    gridFile,
				"svc/BUILD.hcl":   `task "ignored" {}`,
				"svc/nested/x.md": "x",
			})
			var out, errOut bytes.Buffer

			// --- Act ---
			err := cli.Execute(context.Background(),
				[]string{"-C", filepath.Join(root, "svc"), "--no-color", "run", "stamp"}, &out, &errOut)

			// --- Assert ---
			if err != nil {
				t.Fatalf("cli.Execute() returned an unexpected error: %v\n%s", err, errOut.String())
			}
			result := &testutil.HarnessResult{Root: root}
			testutil.AssertFileContent(t, result, "svc/out/stamp/stamp.txt", "stamped")

			out.Reset()
			err = cli.Execute(context.Background(),
				[]string{"-C", filepath.Join(root, "svc"), "--no-color", "tasks"}, &out, &errOut)
			if err != nil {
				t.Fatalf("cli.Execute(tasks) returned an unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), "stamp") || strings.Contains(out.String(), "ignored") {
				t.Errorf("tasks listing should come from GRID.hcl only, got:\n%s", out.String())
			}
		})
	}
}
