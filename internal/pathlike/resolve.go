package pathlike

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vk/gridbuild/internal/fsutil"
	"github.com/vk/gridbuild/internal/workspace"
)

// Context carries what resolution needs beyond a single value.
type Context struct {
	Workspace *workspace.Workspace
	Finder    fsutil.Finder
	// Exclude drops expansion results whose absolute slash separated path
	// matches. Optional.
	Exclude *regexp.Regexp
	// TaskOutputs maps a task reference to the output paths of that task.
	TaskOutputs func(ref TaskReference) ([]string, error)
}

// WithExclude returns a copy of c that filters expansions with exclude.
func (c *Context) WithExclude(exclude *regexp.Regexp) *Context {
	cp := *c
	cp.Exclude = exclude
	return &cp
}

// Resolve turns a single-path value into an absolute path. base is the
// directory relative paths are joined to.
func Resolve(value Value, base string, ws *workspace.Workspace) (string, error) {
	switch v := value.(type) {
	case Literal:
		return resolveParts(ParseParts(v.Value), v.Value, v.Location, base, ws)
	case Element:
		if v.Resolved != "" {
			return v.Resolved, nil
		}
		return resolveParts(v.Parts, v.String(), v.Location, base, ws)
	case Object:
		return v.Path, nil
	case Glob, Find:
		return "", unsupported(v, "patterns expand to many paths")
	}
	return "", unsupported(value, "not a path")
}

func resolveParts(parts []string, raw string, loc Location, base string, ws *workspace.Workspace) (string, error) {
	for _, part := range parts {
		if part == ".." {
			return "", &PathError{Path: raw, Location: loc, Err: ErrPathTraversal}
		}
	}
	if len(parts) == 0 {
		return filepath.Clean(base), nil
	}

	head, rest := parts[0], parts[1:]
	switch {
	case head == WorkspaceMarker:
		if ws == nil || !ws.Config.AllowWorkspacePaths {
			return "", &PathError{Path: raw, Location: loc, Err: ErrWorkspacePathsDisabled}
		}
		return filepath.Join(append([]string{ws.Root}, rest...)...), nil
	case filepath.IsAbs(head):
		if ws != nil && !ws.Config.AllowAbsolutePaths {
			return "", &PathError{Path: raw, Location: loc, Err: ErrAbsolutePathsDisabled}
		}
		return filepath.Join(parts...), nil
	}
	return filepath.Join(append([]string{base}, parts...)...), nil
}

// Expand resolves a Glob or Find to a lazy sequence of absolute paths,
// filtered by the workspace ignore names and ctx.Exclude. A matched
// directory stands for its whole tree: nothing below it is yielded again.
func Expand(ctx *Context, value Value, base string) iter.Seq2[string, error] {
	query, err := buildQuery(ctx, value, base)
	if err != nil {
		return func(yield func(string, error) bool) { yield("", err) }
	}

	finder := ctx.Finder
	if finder == nil {
		finder = fsutil.WalkFinder{}
	}
	return func(yield func(string, error) bool) {
		// Finders walk in preorder, so everything below a yielded
		// directory follows it directly.
		covered := ""
		for path, err := range finder.Find(query) {
			if err != nil {
				yield("", err)
				return
			}
			if covered != "" && strings.HasPrefix(path, covered+string(filepath.Separator)) {
				continue
			}
			if ctx.Exclude != nil && ctx.Exclude.MatchString(filepath.ToSlash(path)) {
				continue
			}
			if query.Dirs {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					covered = path
				}
			}
			if !yield(path, nil) {
				return
			}
		}
	}
}

func buildQuery(ctx *Context, value Value, base string) (fsutil.Query, error) {
	query := fsutil.Query{}
	if ws := ctx.Workspace; ws != nil {
		query.Ignore = ws.Ignored
	}

	switch v := value.(type) {
	case Glob:
		root, pattern, err := globRoot(v, base, ctx.Workspace)
		if err != nil {
			return query, err
		}
		prefix, rest, depth := fsutil.SplitGlob(pattern)
		re, err := fsutil.GlobRegexp(rest)
		if err != nil {
			return query, &PathError{Path: v.Pattern, Location: v.Location, Err: err}
		}
		query.Root = filepath.Join(root, prefix)
		query.Pattern = re
		query.MaxDepth = depth
		query.Dirs = true
		return query, nil

	case Find:
		query.Root = base
		if v.Root != nil {
			root, err := Resolve(*v.Root, base, ctx.Workspace)
			if err != nil {
				return query, err
			}
			query.Root = root
		}
		re, err := findPattern(v.Pattern)
		if err != nil {
			return query, &PathError{Path: query.Root, Location: v.Location, Err: err}
		}
		query.Pattern = re
		return query, nil
	}
	return query, unsupported(value, "only glob and find values expand")
}

// globRoot splits a glob into the directory it is anchored at and the
// remaining relative pattern.
func globRoot(g Glob, base string, ws *workspace.Workspace) (string, string, error) {
	pattern := g.Pattern
	for _, seg := range strings.Split(pattern, "/") {
		if seg == ".." {
			return "", "", &PathError{Path: pattern, Location: g.Location, Err: ErrPathTraversal}
		}
	}

	switch {
	case strings.HasPrefix(pattern, WorkspaceMarker):
		if ws == nil || !ws.Config.AllowWorkspacePaths {
			return "", "", &PathError{Path: pattern, Location: g.Location, Err: ErrWorkspacePathsDisabled}
		}
		return ws.Root, strings.TrimLeft(pattern, "/"), nil
	case filepath.IsAbs(pattern):
		if ws != nil && !ws.Config.AllowAbsolutePaths {
			return "", "", &PathError{Path: pattern, Location: g.Location, Err: ErrAbsolutePathsDisabled}
		}
		volume := filepath.VolumeName(pattern)
		return volume + string(filepath.Separator), strings.TrimLeft(filepath.ToSlash(pattern[len(volume):]), "/"), nil
	}
	return base, strings.TrimPrefix(pattern, "./"), nil
}

func findPattern(p FindPattern) (*regexp.Regexp, error) {
	switch p := p.(type) {
	case nil:
		return nil, nil
	case Glob:
		return globMatcher(p.Pattern)
	case Literal:
		return globMatcher(p.Value)
	case Regex:
		return regexp.Compile(p.Expr)
	}
	return nil, errors.New("unknown find pattern")
}

func globMatcher(pattern string) (*regexp.Regexp, error) {
	if strings.Contains(pattern, "/") {
		return fsutil.GlobRegexp(pattern)
	}
	return fsutil.NameRegexp(pattern)
}
