package convert

import "strings"

// RelativizePath rewrites an absolute path under cwd to a ./-prefixed
// relative one. Paths outside cwd (and already-relative paths) pass
// through unchanged.
func RelativizePath(cwd, path string) string {
	if cwd == "" || path == "" {
		return path
	}
	cwd = strings.TrimSuffix(cwd, "/")
	if path == cwd {
		return "."
	}
	if rest, ok := strings.CutPrefix(path, cwd+"/"); ok {
		return "./" + rest
	}
	return path
}

// RelativizeValue walks a decoded JSON value and relativizes every
// string that points under cwd. This is the generic rewriting applied
// to unrecognized tool shapes.
func RelativizeValue(v any, cwd string) any {
	if cwd == "" {
		return v
	}
	switch node := v.(type) {
	case string:
		return RelativizePath(cwd, node)
	case map[string]any:
		for key, val := range node {
			node[key] = RelativizeValue(val, cwd)
		}
		return node
	case []any:
		for i, val := range node {
			node[i] = RelativizeValue(val, cwd)
		}
		return node
	default:
		return v
	}
}
