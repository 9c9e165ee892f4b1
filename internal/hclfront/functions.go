package hclfront

import (
	"fmt"
	"regexp"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/vk/gridbuild/internal/pathlike"
)

// envLookup reads one environment variable.
type envLookup func(name string) (string, bool)

// functions returns the builtins available to a file. file labels the
// values the functions create; record is told about every env() read.
func functions(file string, getenv envLookup, record func(name, value string)) map[string]function.Function {
	loc := pathlike.Location{File: file}
	return map[string]function.Function{
		"glob":  globFunc(loc),
		"find":  findFunc(loc),
		"regex": regexFunc(loc),
		"path":  pathFunc(loc),
		"task":  taskFunc(loc),
		"env":   envFunc(getenv, record),

		"concat":    stdlib.ConcatFunc,
		"flatten":   stdlib.FlattenFunc,
		"format":    stdlib.FormatFunc,
		"join":      stdlib.JoinFunc,
		"length":    stdlib.LengthFunc,
		"lower":     stdlib.LowerFunc,
		"replace":   stdlib.ReplaceFunc,
		"split":     stdlib.SplitFunc,
		"trimspace": stdlib.TrimSpaceFunc,
		"upper":     stdlib.UpperFunc,
	}
}

func globFunc(loc pathlike.Location) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "pattern", Type: cty.String}},
		Type:   function.StaticReturnType(PathType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return wrap(pathlike.Glob{Pattern: args[0].AsString(), Location: loc}), nil
		},
	})
}

func regexFunc(loc pathlike.Location) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "expr", Type: cty.String}},
		Type:   function.StaticReturnType(PathType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			expr := args[0].AsString()
			if _, err := regexp.Compile(expr); err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}
			return wrap(pathlike.Regex{Expr: expr, Location: loc}), nil
		},
	})
}

func pathFunc(loc pathlike.Location) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "path", Type: cty.String}},
		Type:   function.StaticReturnType(PathType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return wrap(pathlike.NewElement(args[0].AsString(), loc)), nil
		},
	})
}

// find([pattern [, root]]): pattern is a string glob, glob() or regex();
// root is a string or path().
func findFunc(loc pathlike.Location) function.Function {
	return function.New(&function.Spec{
		VarParam: &function.Parameter{Name: "args", Type: cty.DynamicPseudoType, AllowNull: true},
		Type:     function.StaticReturnType(PathType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if len(args) > 2 {
				return cty.NilVal, fmt.Errorf("find takes at most two arguments, got %d", len(args))
			}
			find := pathlike.Find{Location: loc}
			if len(args) > 0 && !args[0].IsNull() {
				pattern, err := findPattern(args[0], loc)
				if err != nil {
					return cty.NilVal, function.NewArgError(0, err)
				}
				find.Pattern = pattern
			}
			if len(args) > 1 && !args[1].IsNull() {
				root, err := element(args[1], loc)
				if err != nil {
					return cty.NilVal, function.NewArgError(1, err)
				}
				find.Root = &root
			}
			return wrap(find), nil
		},
	})
}

func findPattern(v cty.Value, loc pathlike.Location) (pathlike.FindPattern, error) {
	if native, ok := unwrap(v); ok {
		if p, ok := native.(pathlike.FindPattern); ok {
			return p, nil
		}
		return nil, fmt.Errorf("%T is not a find pattern", native)
	}
	if v.Type() != cty.String {
		return nil, fmt.Errorf("pattern must be a string, glob() or regex()")
	}
	return pathlike.Literal{Value: v.AsString(), Location: loc}, nil
}

func element(v cty.Value, loc pathlike.Location) (pathlike.Element, error) {
	if native, ok := unwrap(v); ok {
		if e, ok := native.(pathlike.Element); ok {
			return e, nil
		}
		return pathlike.Element{}, fmt.Errorf("%T is not a path", native)
	}
	if v.Type() != cty.String {
		return pathlike.Element{}, fmt.Errorf("root must be a string or path()")
	}
	return pathlike.NewElement(v.AsString(), loc), nil
}

// task(name [, path]) references a task, in another build file when path
// is given.
func taskFunc(loc pathlike.Location) function.Function {
	return function.New(&function.Spec{
		Params:   []function.Parameter{{Name: "name", Type: cty.String}},
		VarParam: &function.Parameter{Name: "path", Type: cty.DynamicPseudoType},
		Type:     function.StaticReturnType(PathType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			ref := pathlike.TaskReference{Name: args[0].AsString(), Location: loc}
			switch len(args) {
			case 1:
			case 2:
				path, err := element(args[1], loc)
				if err != nil {
					return cty.NilVal, function.NewArgError(1, err)
				}
				ref.Path = path
			default:
				return cty.NilVal, fmt.Errorf("task takes at most two arguments, got %d", len(args))
			}
			return wrap(ref), nil
		},
	})
}

// env(name [, default]) reads an environment variable. Every read feeds
// the environment hash of the file.
func envFunc(getenv envLookup, record func(name, value string)) function.Function {
	return function.New(&function.Spec{
		Params:   []function.Parameter{{Name: "name", Type: cty.String}},
		VarParam: &function.Parameter{Name: "default", Type: cty.String},
		Type:     function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if len(args) > 2 {
				return cty.NilVal, fmt.Errorf("env takes at most two arguments, got %d", len(args))
			}
			name := args[0].AsString()
			value, ok := getenv(name)
			if !ok && len(args) == 2 {
				value = args[1].AsString()
			}
			record(name, value)
			return cty.StringVal(value), nil
		},
	})
}
