package hclfront

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/gridbuild/internal/pathlike"
)

// boxed is the native value behind PathType: a pathlike.Value or a
// pathlike.Regex.
type boxed struct {
	V any
}

// PathType carries typed path values (paths, globs, finds, regexes and task
// references) through HCL expressions.
var PathType = cty.Capsule("path", reflect.TypeOf(boxed{}))

func wrap(v any) cty.Value {
	return cty.CapsuleVal(PathType, &boxed{V: v})
}

func unwrap(v cty.Value) (any, bool) {
	if v.Type() != PathType || v.IsNull() || !v.IsKnown() {
		return nil, false
	}
	return v.EncapsulatedValue().(*boxed).V, true
}

func location(rng hcl.Range) pathlike.Location {
	return pathlike.Location{File: rng.Filename, Line: rng.Start.Line, Column: rng.Start.Column}
}

// toValue converts an evaluated expression into a path-like value. Strings
// become literals, sequences become lists and null becomes nil.
func toValue(v cty.Value, rng hcl.Range) (pathlike.Value, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("%s: value is not known", location(rng))
	}
	if native, ok := unwrap(v); ok {
		value, ok := native.(pathlike.Value)
		if !ok {
			return nil, fmt.Errorf("%s: %T cannot be used as a path", location(rng), native)
		}
		return value, nil
	}

	ty := v.Type()
	switch {
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		list := pathlike.List{Location: location(rng)}
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			item, err := toValue(elem, rng)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
		}
		return list, nil
	case ty.IsPrimitiveType():
		s, err := primitiveString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", location(rng), err)
		}
		return pathlike.Literal{Value: s, Location: location(rng)}, nil
	}
	return nil, &pathlike.UnsupportedArgumentTypeError{Value: ty.FriendlyName(), Location: location(rng)}
}

// toValues is toValue for attributes that take a sequence. A single value
// is a sequence of one.
func toValues(v cty.Value, rng hcl.Range) ([]pathlike.Value, error) {
	value, err := toValue(v, rng)
	if err != nil || value == nil {
		return nil, err
	}
	if list, ok := value.(pathlike.List); ok {
		return list.Items, nil
	}
	return []pathlike.Value{value}, nil
}

// toAny converts v into the loose shapes task declarations accept: strings,
// path-like values, []any and map[string]any.
func toAny(v cty.Value, rng hcl.Range) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if native, ok := unwrap(v); ok {
		return native, nil
	}
	ty := v.Type()
	switch {
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var items []any
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			item, err := toAny(elem, rng)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if items == nil {
			items = []any{}
		}
		return items, nil
	case ty.IsObjectType() || ty.IsMapType():
		items := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			item, err := toAny(elem, rng)
			if err != nil {
				return nil, err
			}
			items[key.AsString()] = item
		}
		return items, nil
	case ty.IsPrimitiveType():
		s, err := primitiveString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", location(rng), err)
		}
		return s, nil
	}
	return nil, &pathlike.UnsupportedArgumentTypeError{Value: ty.FriendlyName(), Location: location(rng)}
}

// toStrings accepts a string or a sequence of strings.
func toStrings(v cty.Value, rng hcl.Range) ([]string, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	if !(ty.IsTupleType() || ty.IsListType() || ty.IsSetType()) {
		s, err := primitiveString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", location(rng), err)
		}
		return []string{s}, nil
	}
	var out []string
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		s, err := primitiveString(elem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", location(rng), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func primitiveString(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("expected a string, got null")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		return v.AsBigFloat().Text('f', -1), nil
	case cty.Bool:
		return strconv.FormatBool(v.True()), nil
	}
	return "", fmt.Errorf("expected a string, got %s", v.Type().FriendlyName())
}
