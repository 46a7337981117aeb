package lang

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolverStep rewrites a candidate path into another candidate path.
type ResolverStep func(candidate string) string

// AppendExt tries the candidate with ext appended ("./util" -> "./util.js").
func AppendExt(ext string) ResolverStep {
	return func(candidate string) string {
		return candidate + ext
	}
}

// Partial rewrites the last path segment to the partial-file convention:
// "dir/base" or "dir/base.scss" -> "dir/_base.scss".
func Partial(ext string) ResolverStep {
	return func(candidate string) string {
		dir, base := filepath.Split(candidate)
		base = strings.TrimSuffix(base, ext)
		return filepath.Join(dir, "_"+base+ext)
	}
}

// Index treats the candidate as a directory and looks for name inside it.
func Index(name string) ResolverStep {
	return func(candidate string) string {
		return filepath.Join(candidate, name)
	}
}

// ParseStep builds a step from its textual form: "ext:.js", "partial:.scss"
// or "index:_index.scss".
func ParseStep(raw string) (ResolverStep, error) {
	kind, arg, ok := strings.Cut(raw, ":")
	if !ok || arg == "" {
		return nil, fmt.Errorf("resolver %q: want kind:argument", raw)
	}
	switch kind {
	case "ext":
		return AppendExt(arg), nil
	case "partial":
		return Partial(arg), nil
	case "index":
		return Index(arg), nil
	default:
		return nil, fmt.Errorf("resolver %q: unknown kind %q", raw, kind)
	}
}

// namedFuncs are the function extractors reachable from configuration files.
var namedFuncs = map[string]func(string) string{
	// strip_query drops "?v=3" and "#frag" suffixes from a reference.
	"strip_query": func(s string) string {
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			return s[:i]
		}
		return s
	},
	"trim_space":  strings.TrimSpace,
	"uncommented": uncommented,
	// relative_only keeps references that start with ./ or ../
	"relative_only": func(s string) string {
		if strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
			return s
		}
		return ""
	},
}

// uncommented drops statements that start right after a "/", as in
// "//@import 'x';".
func uncommented(s string) string {
	if strings.HasPrefix(s, "/") {
		return ""
	}
	return s
}

// NamedFunc returns the function extractor registered under name.
func NamedFunc(name string) (Extractor, error) {
	fn, ok := namedFuncs[name]
	if !ok {
		return Extractor{}, fmt.Errorf("unknown function extractor %q", name)
	}
	return Func(fn), nil
}
