package hclfront

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/gridbuild/internal/action"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/task"
)

var taskSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "requires"},
		{Name: "path"},
		{Name: "variants"},
		{Name: "outputs"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: string(action.KindSetEnvironment)},
		{Type: string(action.KindExecute)},
		{Type: string(action.KindShell)},
		{Type: string(action.KindCopy)},
		{Type: string(action.KindSynchronize)},
		{Type: string(action.KindWrite)},
		{Type: string(action.KindArchive)},
		{Type: string(action.KindPrint)},
	},
}

// actionSchemas lists the attributes each action block accepts.
var actionSchemas = map[action.Kind]*hcl.BodySchema{
	action.KindExecute:     attrs("executable", "arguments"),
	action.KindShell:       attrs("script"),
	action.KindCopy:        attrs("source", "destination", "exclude"),
	action.KindSynchronize: attrs("source", "destination", "preserve_symlinks"),
	action.KindWrite:       attrs("path", "data", "executable"),
	action.KindArchive:     attrs("path", "files", "prefix", "root", "type"),
	action.KindPrint:       attrs("messages"),
}

func attrs(names ...string) *hcl.BodySchema {
	schema := &hcl.BodySchema{}
	for _, name := range names {
		schema.Attributes = append(schema.Attributes, hcl.AttributeSchema{Name: name})
	}
	return schema
}

// blockDecoder evaluates the attributes of one block.
type blockDecoder struct {
	ctx   *hcl.EvalContext
	attrs hcl.Attributes
	loc   pathlike.Location
	kind  string
	diags hcl.Diagnostics
}

func (d *blockDecoder) value(name string) (cty.Value, hcl.Range, bool) {
	attr, ok := d.attrs[name]
	if !ok {
		return cty.NilVal, hcl.Range{}, false
	}
	v, diags := attr.Expr.Value(d.ctx)
	d.diags = append(d.diags, diags...)
	if diags.HasErrors() {
		return cty.NilVal, attr.Expr.Range(), false
	}
	return v, attr.Expr.Range(), true
}

func (d *blockDecoder) fail(err error) error {
	if d.diags.HasErrors() {
		return d.diags
	}
	return err
}

func (d *blockDecoder) missing(name string) error {
	return d.fail(fmt.Errorf("%s: %s: %w: %s", d.loc, d.kind, action.ErrMissingField, name))
}

func (d *blockDecoder) path(name string) (pathlike.Value, error) {
	v, rng, ok := d.value(name)
	if !ok {
		return nil, d.fail(nil)
	}
	return toValue(v, rng)
}

func (d *blockDecoder) paths(name string) ([]pathlike.Value, error) {
	v, rng, ok := d.value(name)
	if !ok {
		return nil, d.fail(nil)
	}
	return toValues(v, rng)
}

func (d *blockDecoder) strings(name string) ([]string, error) {
	v, rng, ok := d.value(name)
	if !ok {
		return nil, d.fail(nil)
	}
	return toStrings(v, rng)
}

func (d *blockDecoder) str(name string) (*string, error) {
	v, rng, ok := d.value(name)
	if !ok || v.IsNull() {
		return nil, d.fail(nil)
	}
	s, err := primitiveString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", location(rng), name, err)
	}
	return &s, nil
}

func (d *blockDecoder) boolean(name string) (bool, error) {
	v, rng, ok := d.value(name)
	if !ok || v.IsNull() {
		return false, d.fail(nil)
	}
	if v.Type() != cty.Bool {
		return false, fmt.Errorf("%s: %s must be a bool", location(rng), name)
	}
	return v.True(), nil
}

func (d *blockDecoder) has(name string) bool {
	_, ok := d.attrs[name]
	return ok
}

// decodeAction turns one action block into an Action.
func decodeAction(block *hcl.Block, ctx *hcl.EvalContext) (action.Action, error) {
	kind := action.Kind(block.Type)
	loc := location(block.DefRange)

	if kind == action.KindSetEnvironment {
		return decodeEnvironment(block, ctx, loc)
	}

	content, diags := block.Body.Content(actionSchemas[kind])
	if diags.HasErrors() {
		return nil, diags
	}
	d := &blockDecoder{ctx: ctx, attrs: content.Attributes, loc: loc, kind: block.Type}
	base := action.Base{Loc: loc}
	var err error

	switch kind {
	case action.KindExecute:
		a := &action.Execute{Base: base}
		if !d.has("executable") {
			return nil, d.missing("executable")
		}
		if a.Executable, err = d.path("executable"); err != nil {
			return nil, err
		}
		if a.Arguments, err = d.paths("arguments"); err != nil {
			return nil, err
		}
		return a, nil

	case action.KindShell:
		a := &action.Shell{Base: base}
		if a.Script, err = d.strings("script"); err != nil {
			return nil, err
		}
		return a, nil

	case action.KindCopy:
		a := &action.Copy{Base: base}
		if !d.has("source") {
			return nil, d.missing("source")
		}
		if a.Sources, err = d.paths("source"); err != nil {
			return nil, err
		}
		if a.Destination, err = d.path("destination"); err != nil {
			return nil, err
		}
		if a.Exclude, err = d.strings("exclude"); err != nil {
			return nil, err
		}
		return a, nil

	case action.KindSynchronize:
		a := &action.Synchronize{Base: base}
		if !d.has("source") {
			return nil, d.missing("source")
		}
		if a.Sources, err = d.paths("source"); err != nil {
			return nil, err
		}
		if a.Destination, err = d.path("destination"); err != nil {
			return nil, err
		}
		if a.PreserveSymlinks, err = d.boolean("preserve_symlinks"); err != nil {
			return nil, err
		}
		return a, nil

	case action.KindWrite:
		a := &action.Write{Base: base}
		if !d.has("path") {
			return nil, d.missing("path")
		}
		if a.Path, err = d.path("path"); err != nil {
			return nil, err
		}
		if a.Data, err = d.str("data"); err != nil {
			return nil, err
		}
		if a.Executable, err = d.boolean("executable"); err != nil {
			return nil, err
		}
		return a, nil

	case action.KindArchive:
		a := &action.Archive{Base: base}
		if !d.has("path") {
			return nil, d.missing("path")
		}
		if a.Path, err = d.path("path"); err != nil {
			return nil, err
		}
		if a.Files, err = d.paths("files"); err != nil {
			return nil, err
		}
		if a.Root, err = d.path("root"); err != nil {
			return nil, err
		}
		var s *string
		if s, err = d.str("prefix"); err != nil {
			return nil, err
		} else if s != nil {
			a.Prefix = *s
		}
		if s, err = d.str("type"); err != nil {
			return nil, err
		} else if s != nil {
			a.Type = *s
		}
		return a, nil

	case action.KindPrint:
		a := &action.Print{Base: base}
		if a.Messages, err = d.strings("messages"); err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("%s: unknown action %q", loc, block.Type)
}

func decodeEnvironment(block *hcl.Block, ctx *hcl.EvalContext, loc pathlike.Location) (action.Action, error) {
	attributes, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	a := &action.SetEnvironment{Base: action.Base{Loc: loc}, Values: make(map[string]pathlike.Value, len(attributes))}
	d := &blockDecoder{ctx: ctx, attrs: attributes, loc: loc, kind: block.Type}
	for _, name := range slices.Sorted(maps.Keys(attributes)) {
		value, err := d.path(name)
		if err != nil {
			return nil, err
		}
		a.Values[name] = value
	}
	return a, nil
}

// decodeTask evaluates a task block into a declaration.
func decodeTask(block *hcl.Block, body hcl.Body, ctx *hcl.EvalContext, file string) (task.Declaration, error) {
	decl := task.Declaration{
		Name:     block.Labels[0],
		File:     file,
		Location: location(block.DefRange),
	}

	content, diags := body.Content(taskSchema)
	if diags.HasErrors() {
		return decl, diags
	}
	d := &blockDecoder{ctx: ctx, attrs: content.Attributes, loc: decl.Location, kind: "task"}

	if s, err := d.str("description"); err != nil {
		return decl, err
	} else if s != nil {
		decl.Description = *s
	}

	if v, rng, ok := d.value("requires"); ok {
		requires, err := toAny(v, rng)
		if err != nil {
			return decl, err
		}
		switch r := requires.(type) {
		case nil:
		case []any:
			decl.Requires = r
		default:
			decl.Requires = []any{r}
		}
	} else if err := d.fail(nil); err != nil {
		return decl, err
	}

	var err error
	if decl.Path, err = d.path("path"); err != nil {
		return decl, err
	}
	if decl.Variants, err = d.strings("variants"); err != nil {
		return decl, err
	}
	if v, rng, ok := d.value("outputs"); ok {
		if decl.Outputs, err = toAny(v, rng); err != nil {
			return decl, err
		}
	} else if err := d.fail(nil); err != nil {
		return decl, err
	}

	for _, b := range content.Blocks {
		a, err := decodeAction(b, ctx)
		if err != nil {
			return decl, err
		}
		decl.Actions = append(decl.Actions, a)
	}
	return decl, nil
}
