package testutil

import (
	"fmt"
	"strings"
)

// ToolTask declares a task that runs the harness tool with id as its only
// argument, after the tasks named in requires.
func ToolTask(id string, requires ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %q {\n", id)
	if len(requires) > 0 {
		fmt.Fprintf(&b, "  requires = [\"%s:\"]\n", strings.Join(requires, `:", "`))
	}
	fmt.Fprintf(&b, "  execute {\n    executable = %q\n    arguments  = [%q]\n  }\n}\n", ToolPath, id)
	return b.String()
}
