// Package pathlike models the path-like values a build file hands to the
// engine (literals, structured paths, task output paths, globs, recursive
// finds and task references) and resolves them against a workspace.
package pathlike

import (
	"fmt"
	"path/filepath"
	"strings"
)

// WorkspaceMarker is the first part of a path anchored at the workspace root.
const WorkspaceMarker = "//"

// Location points at a statement in a build file.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Value is the closed set of path-like shapes. Only the types in this
// package implement it.
type Value interface {
	isValue()
}

// FindPattern is the pattern of a Find: a Glob, a Regex or a Literal
// (treated as a glob).
type FindPattern interface {
	isFindPattern()
}

// Literal is a plain token. In path contexts it is resolved like an Element,
// in argument contexts it is passed through untouched.
type Literal struct {
	Value    string
	Location Location
}

// Element is a structured path. Parts[0] is WorkspaceMarker for workspace
// paths and the filesystem root for absolute paths.
type Element struct {
	Parts    []string
	Resolved string
	Location Location
}

// Object is the already resolved output path of another task.
type Object struct {
	Path      string
	Reference TaskReference
}

// Glob is a pattern expanded against the filesystem at resolution time.
type Glob struct {
	Pattern  string
	Location Location
}

// Regex is a regular expression used as a Find pattern.
type Regex struct {
	Expr     string
	Location Location
}

// Find is a recursive search below Root (the base directory when nil).
type Find struct {
	Pattern  FindPattern
	Root     *Element
	Location Location
}

// TaskReference names a task, optionally in the build file at Path.
type TaskReference struct {
	Name     string
	Path     Value
	Location Location
}

// List is a nested sequence of values.
type List struct {
	Items    []Value
	Location Location
}

func (Literal) isValue()       {}
func (Element) isValue()       {}
func (Object) isValue()        {}
func (Glob) isValue()          {}
func (Find) isValue()          {}
func (TaskReference) isValue() {}
func (List) isValue()          {}

func (Glob) isFindPattern()    {}
func (Regex) isFindPattern()   {}
func (Literal) isFindPattern() {}

// NewElement splits a slash separated path into an Element.
func NewElement(path string, loc Location) Element {
	return Element{Parts: ParseParts(path), Location: loc}
}

// ParseParts splits path into parts, keeping the workspace marker or the
// filesystem root as the first part. Empty and "." segments are dropped,
// ".." segments are kept so that resolution can reject them.
func ParseParts(path string) []string {
	var parts []string
	switch {
	case strings.HasPrefix(path, WorkspaceMarker):
		parts = append(parts, WorkspaceMarker)
		path = path[len(WorkspaceMarker):]
	case filepath.IsAbs(path):
		volume := filepath.VolumeName(path)
		parts = append(parts, volume+string(filepath.Separator))
		path = path[len(volume):]
	}
	return append(parts, segments(path)...)
}

func segments(path string) []string {
	fields := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "." {
			out = append(out, f)
		}
	}
	return out
}

func (e Element) String() string {
	if len(e.Parts) == 0 {
		return "."
	}
	switch head := e.Parts[0]; {
	case head == WorkspaceMarker:
		return WorkspaceMarker + strings.Join(e.Parts[1:], "/")
	case filepath.IsAbs(head):
		return head + strings.Join(e.Parts[1:], "/")
	}
	return strings.Join(e.Parts, "/")
}

func (r TaskReference) String() string {
	switch p := r.Path.(type) {
	case nil:
		return r.Name
	case Element:
		return r.Name + ":" + p.String()
	case Literal:
		return r.Name + ":" + p.Value
	case Object:
		return r.Name + ":" + p.Path
	}
	return r.Name + ":?"
}

// LocationOf returns the source location carried by v, if any.
func LocationOf(v Value) Location {
	switch v := v.(type) {
	case Literal:
		return v.Location
	case Element:
		return v.Location
	case Object:
		return v.Reference.Location
	case Glob:
		return v.Location
	case Find:
		return v.Location
	case TaskReference:
		return v.Location
	case List:
		return v.Location
	}
	return Location{}
}

// References collects the task references embedded in values, including
// the origin of Object values and references inside lists.
func References(values ...Value) []TaskReference {
	var refs []TaskReference
	for _, v := range values {
		switch v := v.(type) {
		case TaskReference:
			refs = append(refs, v)
		case Object:
			if v.Reference.Name != "" {
				refs = append(refs, v.Reference)
			}
		case List:
			refs = append(refs, References(v.Items...)...)
		}
	}
	return refs
}
