package fsutil

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// GlobRegexp translates a slash separated glob into an anchored regular
// expression. `*` and `?` never cross a separator, `**` matches any number of
// directories and `[!...]` negates a class.
func GlobRegexp(pattern string) (*regexp.Regexp, error) {
	expr, err := translateGlob(pattern)
	if err != nil {
		return nil, err
	}
	return regexp.Compile("^" + expr + "$")
}

// NameRegexp is like GlobRegexp, but the result matches a relative path whose
// last segment matches the glob.
func NameRegexp(pattern string) (*regexp.Regexp, error) {
	expr, err := translateGlob(pattern)
	if err != nil {
		return nil, err
	}
	return regexp.Compile("^(?:.*/)?" + expr + "$")
}

// CombineGlobs joins several globs into one regexp matched against absolute
// slash separated paths. A glob without a separator matches any path segment
// (and everything below it). It returns nil for an empty list.
func CombineGlobs(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	alternatives := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		expr, err := translateGlob(strings.TrimPrefix(pattern, "/"))
		if err != nil {
			return nil, err
		}
		alternatives = append(alternatives, "(?:"+expr+")")
	}
	return regexp.Compile("(?:^|/)(?:" + strings.Join(alternatives, "|") + ")(?:/|$)")
}

// HasMeta reports whether a path segment contains glob syntax.
func HasMeta(segment string) bool {
	return strings.ContainsAny(segment, "*?[")
}

// SplitGlob separates the literal directory prefix of a glob from its
// pattern part. The depth is the number of pattern segments, or zero when the
// pattern contains `**`.
func SplitGlob(pattern string) (prefix, rest string, depth int) {
	segments := strings.Split(pattern, "/")
	i := 0
	for i < len(segments)-1 && !HasMeta(segments[i]) {
		i++
	}
	prefix = filepath.FromSlash(strings.Join(segments[:i], "/"))
	rest = strings.Join(segments[i:], "/")
	if !strings.Contains(rest, "**") {
		depth = len(segments) - i
	}
	return prefix, rest, depth
}

func translateGlob(pattern string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					i++
					sb.WriteString("(?:.*/)?")
				} else {
					sb.WriteString(".*")
				}
				continue
			}
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end <= 0 {
				return "", fmt.Errorf("%w: %q", filepath.ErrBadPattern, pattern)
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			sb.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i += end + 1
		default:
			sb.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	return sb.String(), nil
}
