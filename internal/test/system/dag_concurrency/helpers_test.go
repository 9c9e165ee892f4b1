package system

import "github.com/vk/gridbuild/internal/testutil"

// overlaps reports whether two executions ran at the same time.
func overlaps(a, b *testutil.ExecutionRecord) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}
