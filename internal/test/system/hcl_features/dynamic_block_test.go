package system

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/testutil"
)

// Test for: dynamic blocks expand into one action per element.
func TestHCLFeatures_DynamicBlock(t *testing.T) {
	// --- Arrange ---
	build := `
task "configs" {
  dynamic "write" {
    for_each = ["alpha", "beta"]
    content {
      path = "${write.value}.conf"
      data = "name=${write.value}"
    }
  }
}
`

	// --- Act ---
	result := testutil.Run(t, map[string]string{"BUILD.hcl": build}, app.Config{}, nil)

	// --- Assert ---
	require.NoError(t, result.Err)
	testutil.AssertFileContent(t, result, "_output_/configs/alpha.conf", "name=alpha")
	testutil.AssertFileContent(t, result, "_output_/configs/beta.conf", "name=beta")
}
