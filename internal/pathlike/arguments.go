package pathlike

import (
	"fmt"
	"slices"
)

// ResolvePathList resolves values to absolute paths. Globs and finds expand
// in place, sorted per value, task references become the referenced task's outputs, nil
// entries are dropped and lists are flattened one level.
func ResolvePathList(ctx *Context, values []Value, base string) ([]string, error) {
	return resolveList(ctx, values, base, false, 0)
}

// ResolveStringList resolves values to process arguments. Literals are kept
// verbatim; everything else resolves as in ResolvePathList.
func ResolveStringList(ctx *Context, values []Value, base string) ([]string, error) {
	return resolveList(ctx, values, base, true, 0)
}

// ResolvePath resolves a value that must denote exactly one path.
func ResolvePath(ctx *Context, value Value, base string) (string, error) {
	paths, err := ResolvePathList(ctx, []Value{value}, base)
	if err != nil {
		return "", err
	}
	if len(paths) != 1 {
		return "", unsupported(value, fmt.Sprintf("expected exactly one path, got %d", len(paths)))
	}
	return paths[0], nil
}

func resolveList(ctx *Context, values []Value, base string, literal bool, depth int) ([]string, error) {
	var out []string
	for _, value := range values {
		switch v := value.(type) {
		case nil:
			continue

		case Literal:
			if literal {
				out = append(out, v.Value)
				continue
			}
			path, err := Resolve(v, base, ctx.Workspace)
			if err != nil {
				return nil, err
			}
			out = append(out, path)

		case Element, Object:
			path, err := Resolve(v, base, ctx.Workspace)
			if err != nil {
				return nil, err
			}
			out = append(out, path)

		case Glob, Find:
			var expanded []string
			for path, err := range Expand(ctx, v, base) {
				if err != nil {
					return nil, err
				}
				expanded = append(expanded, path)
			}
			slices.Sort(expanded)
			out = append(out, expanded...)

		case TaskReference:
			if ctx.TaskOutputs == nil {
				return nil, unsupported(v, "task references cannot be resolved here")
			}
			paths, err := ctx.TaskOutputs(v)
			if err != nil {
				return nil, fmt.Errorf("%s: resolving outputs of %s: %w", v.Location, v, err)
			}
			out = append(out, paths...)

		case List:
			if depth > 0 {
				return nil, unsupported(v, "lists may only be nested one level")
			}
			nested, err := resolveList(ctx, v.Items, base, literal, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)

		default:
			return nil, unsupported(value, "")
		}
	}
	return out, nil
}
