// Package testutil runs whole builds against temporary workspaces for the
// system tests.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/config"
	"github.com/vk/gridbuild/internal/process"
)

// ToolPath is the workspace path of the executable every harness workspace
// contains. Build files run it with `executable = "//bin/tool"`.
const ToolPath = "//bin/tool"

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a system test run.
type HarnessResult struct {
	Root      string
	Output    string
	LogOutput string
	Results   []app.Result
	Err       error
	App       *app.App
}

// Workspace writes files below a fresh temporary directory, together with
// the harness tool and a default WORKSPACE.toml, and returns the directory.
func Workspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	if !hasWorkspaceFile(files) {
		WriteFile(t, root, "WORKSPACE.toml", "name = \"system\"\n")
	}
	for name, content := range files {
		WriteFile(t, root, name, content)
	}
	tool := filepath.Join(root, "bin", "tool")
	require.NoError(t, os.MkdirAll(filepath.Dir(tool), 0o755))
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return root
}

func hasWorkspaceFile(files map[string]string) bool {
	for _, name := range config.FileNames {
		if _, ok := files[name]; ok {
			return true
		}
	}
	return false
}

// WriteFile writes content to the slash separated path name below root.
func WriteFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// Build runs the targets of cfg in root. A nil launcher runs real processes.
func Build(ctx context.Context, t *testing.T, root string, cfg app.Config, launcher process.Launcher) *HarnessResult {
	t.Helper()

	if cfg.Directory == "" {
		cfg.Directory = root
	} else if !filepath.IsAbs(cfg.Directory) {
		cfg.Directory = filepath.Join(root, cfg.Directory)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	c, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out, logs := &SafeBuffer{}, &SafeBuffer{}
	var opts []app.Option
	if launcher != nil {
		opts = append(opts, app.WithLauncher(launcher))
	}
	testApp, err := app.NewApp(out, logs, c, opts...)
	require.NoError(t, err)

	results, runErr := testApp.Run(ctx)
	if os.Getenv("GRIDBUILD_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
	}
	return &HarnessResult{
		Root:      root,
		Output:    out.String(),
		LogOutput: logs.String(),
		Results:   results,
		Err:       runErr,
		App:       testApp,
	}
}

// Run writes files into a fresh workspace and builds the targets of cfg.
func Run(t *testing.T, files map[string]string, cfg app.Config, launcher process.Launcher) *HarnessResult {
	t.Helper()
	return Build(context.Background(), t, Workspace(t, files), cfg, launcher)
}
