// Package hclfront evaluates HCL build files.
//
// A build file declares tasks, macros and includes:
//
//	include "//tools/macros.hcl" {}
//
//	function "object_name" {
//	  params = [src]
//	  result = "${src}.o"
//	}
//
//	task "compile" {
//	  requires = ["gen:", glob("src/*.c")]
//	  execute {
//	    executable = "cc"
//	    arguments  = ["-c", glob("src/*.c")]
//	  }
//	}
//
// Typed values (paths, globs, finds, regexes and task references) travel
// through expressions as capsule values of PathType.
package hclfront

import (
	"context"
	"fmt"
	"maps"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/dynblock"
	"github.com/hashicorp/hcl/v2/ext/userfunc"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/gridbuild/internal/buildfile"
	"github.com/vk/gridbuild/internal/ctxlog"
	"github.com/vk/gridbuild/internal/pathlike"
)

var includeSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{{Type: "include", LabelNames: []string{"path"}}},
}

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{{Type: "task", LabelNames: []string{"name"}}},
}

// Frontend implements buildfile.Frontend for HCL files.
type Frontend struct {
	// LookupEnv reads environment variables for env(). Defaults to os.LookupEnv.
	LookupEnv func(name string) (string, bool)
}

// New creates a Frontend reading the process environment.
func New() *Frontend {
	return &Frontend{LookupEnv: os.LookupEnv}
}

// Load parses and evaluates the file at path, declaring its contents on b.
func (f *Frontend) Load(ctx context.Context, path string, b *buildfile.Builder) error {
	logger := ctxlog.FromContext(ctx)

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading build file: %w", err)
	}
	b.SetSource(src)

	name := path
	if ws := b.Workspace(); ws != nil {
		name = ws.Rel(path)
	}
	file, diags := hclparse.NewParser().ParseHCL(src, name)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse build file %s: %w", name, diags)
	}

	lookup := f.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	evalCtx := &hcl.EvalContext{
		Functions: functions(name, lookup, b.RecordEnv),
		Variables: map[string]cty.Value{},
	}

	includes, body, diags := file.Body.PartialContent(includeSchema)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode build file %s: %w", name, diags)
	}
	for _, block := range includes.Blocks {
		macros, err := f.include(ctx, b, block)
		if err != nil {
			return err
		}
		maps.Copy(evalCtx.Functions, macros)
	}

	macros, body, diags := userfunc.DecodeUserFunctions(body, "function", func() *hcl.EvalContext { return evalCtx })
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode macros in %s: %w", name, diags)
	}
	for macro, fn := range macros {
		if err := b.AddMacro(macro, fn); err != nil {
			return err
		}
		evalCtx.Functions[macro] = fn
	}

	content, diags := body.Content(fileSchema)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode build file %s: %w", name, diags)
	}
	for _, block := range content.Blocks {
		decl, err := decodeTask(block, dynblock.Expand(block.Body, evalCtx), evalCtx, path)
		if err != nil {
			return fmt.Errorf("task %q: %w", block.Labels[0], err)
		}
		if _, err := b.AddTask(decl); err != nil {
			return err
		}
	}

	logger.Debug("Evaluated build file.", "file", name, "tasks", len(content.Blocks), "macros", len(macros))
	return nil
}

func (f *Frontend) include(ctx context.Context, b *buildfile.Builder, block *hcl.Block) (map[string]function.Function, error) {
	if _, diags := block.Body.Content(&hcl.BodySchema{}); diags.HasErrors() {
		return nil, diags
	}
	loc := location(block.LabelRanges[0])
	target, err := pathlike.Resolve(pathlike.NewElement(block.Labels[0], loc), b.Directory(), b.Workspace())
	if err != nil {
		return nil, err
	}
	included, err := b.Include(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%s: include %q: %w", loc, block.Labels[0], err)
	}
	return included.Macros(), nil
}
