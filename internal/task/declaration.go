package task

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vk/gridbuild/internal/action"
	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/workspace"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\-._@]*$`)

// Declaration is one task statement as the front end hands it over.
//
// Requires items may be strings, pathlike values or nested []any / List
// values. Outputs is nil, a list ([]any or []pathlike.Value) or a map
// (map[string]any or map[string]pathlike.Value).
type Declaration struct {
	Name        string
	File        string
	Location    pathlike.Location
	Description string
	Path        pathlike.Value
	Requires    []any
	Actions     []action.Action
	Outputs     any
	Variants    []string
}

// ValidateName checks a task name against the allowed pattern.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidName, name, namePattern)
	}
	return nil
}

// New validates and normalizes a declaration into a Task.
func New(decl Declaration, ws *workspace.Workspace) (*Task, error) {
	if err := ValidateName(decl.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", decl.Location, err)
	}

	requires, err := NormalizeRequires(decl.Requires, decl.Location)
	if err != nil {
		return nil, err
	}
	outputs, err := NormalizeOutputs(decl.Outputs, decl.Location)
	if err != nil {
		return nil, err
	}

	return &Task{
		Name:        decl.Name,
		File:        decl.File,
		Description: decl.Description,
		Path:        decl.Path,
		Requires:    requires,
		Actions:     slices.Clone(decl.Actions),
		Outputs:     outputs,
		Variants:    slices.Clone(decl.Variants),
		Workspace:   ws,
		Location:    decl.Location,
	}, nil
}

// NormalizeRequires flattens requirement items into pathlike values.
// Strings of the form "name:path" become task references, where an empty
// path means the same build file; other strings become paths.
func NormalizeRequires(items []any, loc pathlike.Location) ([]pathlike.Value, error) {
	var out []pathlike.Value
	for _, item := range items {
		switch v := item.(type) {
		case nil:
			continue
		case string:
			out = append(out, parseRequirement(v, loc))
		case pathlike.Literal:
			out = append(out, parseRequirement(v.Value, v.Location))
		case pathlike.Element, pathlike.Object, pathlike.Glob, pathlike.Find, pathlike.TaskReference:
			out = append(out, v.(pathlike.Value))
		case pathlike.List:
			nested := make([]any, len(v.Items))
			for i, it := range v.Items {
				nested[i] = it
			}
			values, err := NormalizeRequires(nested, loc)
			if err != nil {
				return nil, err
			}
			out = append(out, values...)
		case []any:
			values, err := NormalizeRequires(v, loc)
			if err != nil {
				return nil, err
			}
			out = append(out, values...)
		default:
			return nil, &pathlike.UnsupportedArgumentTypeError{Value: item, Location: loc, Reason: "in requires"}
		}
	}
	return out, nil
}

func parseRequirement(s string, loc pathlike.Location) pathlike.Value {
	name, path, ok := strings.Cut(s, ":")
	if !ok || !namePattern.MatchString(name) {
		return pathlike.NewElement(s, loc)
	}
	ref := pathlike.TaskReference{Name: name, Location: loc}
	if path != "" {
		ref.Path = pathlike.NewElement(path, loc)
	}
	return ref
}

// NormalizeOutputs turns the list or map form into output buckets.
func NormalizeOutputs(outputs any, loc pathlike.Location) (map[OutputKey][]pathlike.Value, error) {
	result := make(map[OutputKey][]pathlike.Value)
	switch v := outputs.(type) {
	case nil:
		return result, nil
	case []pathlike.Value:
		items := make([]any, len(v))
		for i, it := range v {
			items[i] = it
		}
		return NormalizeOutputs(items, loc)
	case []any:
		for i, item := range v {
			value, err := outputValue(item, loc)
			if err != nil {
				return nil, err
			}
			result[Unnamed] = append(result[Unnamed], value)
			result[OutputKey(strconv.Itoa(i))] = []pathlike.Value{value}
		}
	case map[string]pathlike.Value:
		for key, item := range v {
			result[OutputKey(key)] = []pathlike.Value{item}
		}
	case map[string]any:
		for key, item := range v {
			value, err := outputValue(item, loc)
			if err != nil {
				return nil, err
			}
			result[OutputKey(key)] = []pathlike.Value{value}
		}
	default:
		return nil, &pathlike.UnsupportedArgumentTypeError{Value: outputs, Location: loc, Reason: "outputs must be a list or a map"}
	}
	return result, nil
}

func outputValue(item any, loc pathlike.Location) (pathlike.Value, error) {
	switch v := item.(type) {
	case string:
		return pathlike.NewElement(v, loc), nil
	case pathlike.Literal:
		return pathlike.NewElement(v.Value, v.Location), nil
	case pathlike.Element, pathlike.Glob, pathlike.Find:
		return v.(pathlike.Value), nil
	}
	return nil, &pathlike.UnsupportedArgumentTypeError{Value: item, Location: loc, Reason: "in outputs"}
}
