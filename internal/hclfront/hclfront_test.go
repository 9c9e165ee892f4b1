package hclfront

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridbuild/internal/action"
	"github.com/vk/gridbuild/internal/buildfile"
	"github.com/vk/gridbuild/internal/config"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/task"
	"github.com/vk/gridbuild/internal/workspace"
)

type fixture struct {
	ws    *workspace.Workspace
	cache *buildfile.Cache
	env   map[string]string
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), config.Default())
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(ws.Root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	fx := &fixture{ws: ws, env: map[string]string{}}
	fe := &Frontend{LookupEnv: func(name string) (string, bool) {
		v, ok := fx.env[name]
		return v, ok
	}}
	fx.cache = buildfile.NewCache(ws, fe)
	return fx
}

func (fx *fixture) load(t *testing.T, dir string) *buildfile.BuildFile {
	t.Helper()
	f, err := fx.cache.Load(context.Background(), filepath.Join(fx.ws.Root, dir))
	require.NoError(t, err)
	return f
}

func mustTask(t *testing.T, f *buildfile.BuildFile, name string) *task.Task {
	t.Helper()
	tk, ok := f.Task(name)
	require.True(t, ok, "task %s", name)
	return tk
}

func TestLoad_TaskAttributes(t *testing.T) {
	fx := newFixture(t, map[string]string{"app/BUILD.hcl": `
task "compile" {
  description = "build the app"
  requires    = ["gen:", glob("src/*.c"), task("lib", "//lib"), "VERSION"]
  path        = "//out/app"
  variants    = ["debug", "asan"]
  outputs     = ["app", "app.map"]
}

task "gen" {
  outputs = { header = "gen.h" }
}
`})
	f := fx.load(t, "app")
	require.Len(t, f.Tasks(), 2)
	assert.Equal(t, "compile", f.Tasks()[0].Name)

	tk := mustTask(t, f, "compile")
	assert.Equal(t, "build the app", tk.Description)
	assert.Equal(t, []string{"debug", "asan"}, tk.Variants)
	assert.Equal(t, filepath.Join(fx.ws.Root, "app", "BUILD.hcl"), tk.File)
	assert.Equal(t, 2, tk.Location.Line)

	require.Len(t, tk.Requires, 4)
	ref, ok := tk.Requires[0].(pathlike.TaskReference)
	require.True(t, ok)
	assert.Equal(t, "gen", ref.Name)
	assert.Nil(t, ref.Path)

	glob, ok := tk.Requires[1].(pathlike.Glob)
	require.True(t, ok)
	assert.Equal(t, "src/*.c", glob.Pattern)

	lib, ok := tk.Requires[2].(pathlike.TaskReference)
	require.True(t, ok)
	assert.Equal(t, "lib://lib", lib.String())

	version, ok := tk.Requires[3].(pathlike.Element)
	require.True(t, ok)
	assert.Equal(t, []string{"VERSION"}, version.Parts)

	path, ok := tk.Path.(pathlike.Literal)
	require.True(t, ok)
	assert.Equal(t, "//out/app", path.Value)

	assert.Len(t, tk.Outputs[task.Unnamed], 2)
	assert.Len(t, tk.Outputs["1"], 1)

	gen := mustTask(t, f, "gen")
	assert.Equal(t, []pathlike.Value{pathlike.NewElement("gen.h", gen.Location)}, gen.Outputs["header"])
}

func TestLoad_Actions(t *testing.T) {
	fx := newFixture(t, map[string]string{"app/BUILD.hcl": `
task "all" {
  environment {
    MODE = "release"
    TOOL = path("//tools/bin")
  }
  execute {
    executable = "cc"
    arguments  = ["-o", "app", glob("*.c")]
  }
  shell {
    script = ["echo one", "echo two"]
  }
  copy {
    source      = ["a.txt", find("*.h", "include")]
    destination = "out"
    exclude     = ["*.tmp"]
  }
  synchronize {
    source            = [find(regex("\\.proto$"))]
    preserve_symlinks = true
  }
  write {
    path       = "VERSION"
    data       = "1.0"
    executable = true
  }
  archive {
    path   = "bundle.zip"
    files  = ["dir"]
    prefix = "pkg"
    root   = "."
    type   = "zip"
  }
  print {
    messages = ["hello"]
  }
}
`})
	tk := mustTask(t, fx.load(t, "app"), "all")

	var kinds []action.Kind
	for _, a := range tk.Actions {
		kinds = append(kinds, a.Kind())
	}
	assert.Equal(t, []action.Kind{
		action.KindSetEnvironment, action.KindExecute, action.KindShell, action.KindCopy,
		action.KindSynchronize, action.KindWrite, action.KindArchive, action.KindPrint,
	}, kinds)

	env := tk.Actions[0].(*action.SetEnvironment)
	assert.Equal(t, "release", env.Values["MODE"].(pathlike.Literal).Value)
	assert.Equal(t, []string{"//", "tools", "bin"}, env.Values["TOOL"].(pathlike.Element).Parts)

	exec := tk.Actions[1].(*action.Execute)
	assert.Equal(t, "cc", exec.Executable.(pathlike.Literal).Value)
	require.Len(t, exec.Arguments, 3)
	assert.IsType(t, pathlike.Glob{}, exec.Arguments[2])

	shell := tk.Actions[2].(*action.Shell)
	assert.Equal(t, []string{"echo one", "echo two"}, shell.Script)

	cp := tk.Actions[3].(*action.Copy)
	require.Len(t, cp.Sources, 2)
	find := cp.Sources[1].(pathlike.Find)
	assert.Equal(t, "*.h", find.Pattern.(pathlike.Literal).Value)
	assert.Equal(t, []string{"include"}, find.Root.Parts)
	assert.Equal(t, []string{"*.tmp"}, cp.Exclude)

	sync := tk.Actions[4].(*action.Synchronize)
	assert.True(t, sync.PreserveSymlinks)
	assert.Equal(t, `\.proto$`, sync.Sources[0].(pathlike.Find).Pattern.(pathlike.Regex).Expr)

	write := tk.Actions[5].(*action.Write)
	require.NotNil(t, write.Data)
	assert.Equal(t, "1.0", *write.Data)
	assert.True(t, write.Executable)

	archive := tk.Actions[6].(*action.Archive)
	assert.Equal(t, "pkg", archive.Prefix)
	assert.Equal(t, "zip", archive.Type)

	assert.Equal(t, []string{"hello"}, tk.Actions[7].(*action.Print).Messages)
}

func TestLoad_DynamicBlocksKeepOrder(t *testing.T) {
	fx := newFixture(t, map[string]string{"BUILD.hcl": `
task "greet" {
  print { messages = ["first"] }
  dynamic "print" {
    for_each = ["a", "b"]
    content {
      messages = [upper(print.value)]
    }
  }
  print { messages = ["last"] }
}
`})
	tk := mustTask(t, fx.load(t, "."), "greet")
	var got []string
	for _, a := range tk.Actions {
		got = append(got, a.(*action.Print).Messages...)
	}
	assert.Equal(t, []string{"first", "A", "B", "last"}, got)
}

func TestLoad_MacrosAndIncludes(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"tools/macros.hcl": `
function "object_name" {
  params = [src]
  result = "${src}.o"
}
`,
		"app/BUILD.hcl": `
include "//tools/macros.hcl" {}

function "twice" {
  params = [s]
  result = "${object_name(s)}${object_name(s)}"
}

task "obj" {
  print { messages = [object_name("main"), twice("x")] }
}
`,
	})
	f := fx.load(t, "app")
	tk := mustTask(t, f, "obj")
	assert.Equal(t, []string{"main.o", "x.ox.o"}, tk.Actions[0].(*action.Print).Messages)

	require.Len(t, f.Includes, 1)
	assert.Equal(t, filepath.Join(fx.ws.Root, "tools", "macros.hcl"), f.Includes[0].Path)
	assert.Contains(t, f.Macros(), "twice")
	assert.NotContains(t, f.Macros(), "object_name")
}

func TestLoad_IncludeCycle(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"a.hcl": `include "b.hcl" {}`,
		"b.hcl": `include "a.hcl" {}`,
	})
	_, err := fx.cache.Load(context.Background(), filepath.Join(fx.ws.Root, "a.hcl"))
	assert.ErrorIs(t, err, buildfile.ErrIncludeCycle)
}

func TestLoad_EnvironmentHash(t *testing.T) {
	src := `
task "t" {
  print { messages = [env("CC", "cc")] }
}
`
	hashFor := func(value string, set bool) (string, []string) {
		fx := newFixture(t, map[string]string{"BUILD.hcl": src})
		if set {
			fx.env["CC"] = value
		}
		f := fx.load(t, ".")
		return f.EnvironmentHash, mustTask(t, f, "t").Actions[0].(*action.Print).Messages
	}

	unset, msgs := hashFor("", false)
	assert.Equal(t, []string{"cc"}, msgs)
	gcc, msgs := hashFor("gcc", true)
	assert.Equal(t, []string{"gcc"}, msgs)
	clang, _ := hashFor("clang", true)

	assert.NotEmpty(t, unset)
	assert.NotEqual(t, gcc, clang)
	assert.NotEqual(t, unset, gcc)

	fx := newFixture(t, map[string]string{"BUILD.hcl": `task "t" {}`})
	assert.Empty(t, fx.load(t, ".").EnvironmentHash)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		is   error
		msg  string
	}{
		{name: "duplicate", src: "task \"a\" {}\ntask \"a\" {}", msg: "already declared"},
		{name: "invalid name", src: `task "9a" {}`, is: task.ErrInvalidName},
		{name: "missing executable", src: "task \"a\" {\n  execute {}\n}", is: action.ErrMissingField},
		{name: "missing copy source", src: "task \"a\" {\n  copy {}\n}", is: action.ErrMissingField},
		{name: "unknown attribute", src: `task "a" { nope = 1 }`, msg: "Unsupported argument"},
		{name: "unknown block", src: "task \"a\" {\n  deploy {}\n}", msg: "Unsupported block type"},
		{name: "syntax", src: `task "a" {`, msg: "failed to parse"},
		{name: "bad regex", src: `task "a" { requires = [find(regex("("))] }`, msg: "regex"},
		{name: "bad requires", src: `task "a" { requires = [{ a = 1 }] }`, is: pathlike.ErrUnsupportedArgumentType},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t, map[string]string{"BUILD.hcl": tc.src})
			_, err := fx.cache.Load(context.Background(), fx.ws.Root)
			require.Error(t, err)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
			if tc.msg != "" {
				assert.ErrorContains(t, err, tc.msg)
			}
		})
	}
}
