package process

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecLauncher_Run(t *testing.T) {
	t.Run("captures output and directory", func(t *testing.T) {
		dir := t.TempDir()
		var live bytes.Buffer
		out, err := ExecLauncher{Stdout: &live}.Run(context.Background(), Command{
			Args: []string{"/bin/sh", "-c", "pwd; echo $GREETING"},
			Env:  []string{"GREETING=hello"},
			Dir:  dir,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		lines := strings.Split(strings.TrimSpace(string(out.Stdout)), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "hello", lines[1])
		assert.Equal(t, string(out.Stdout), live.String())
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		out, err := ExecLauncher{}.Run(context.Background(), Command{
			Args: []string{"/bin/sh", "-c", "echo oops >&2; exit 3"},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, out.ExitCode)
		assert.Equal(t, "oops\n", string(out.Stderr))
	})

	t.Run("stdin is forwarded", func(t *testing.T) {
		out, err := ExecLauncher{}.Run(context.Background(), Command{
			Args:  []string{"/bin/sh"},
			Stdin: strings.NewReader("echo from-stdin\n"),
		})
		require.NoError(t, err)
		assert.Equal(t, "from-stdin\n", string(out.Stdout))
	})

	t.Run("missing program is an error", func(t *testing.T) {
		_, err := ExecLauncher{}.Run(context.Background(), Command{Args: []string{"/definitely/not/here"}})
		assert.Error(t, err)

		_, err = ExecLauncher{}.Run(context.Background(), Command{})
		assert.ErrorContains(t, err, "empty command line")
	})
}
