// Package pathutil provides path manipulation for slash-separated archive paths.
package pathutil

import (
	"path"
	"strings"
)

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(p string) string {
	if p == "" || p == "." {
		return "."
	}
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Dir returns all but the last element of a slash-separated path.
func Dir(p string) string {
	d := path.Dir(strings.TrimSuffix(p, "/"))
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// Normalize converts an archive member name to canonical form: backslashes
// become slashes, leading slashes and "./" segments are removed, and empty
// names become ".". Parent-traversal segments are preserved; rejecting them
// is a filter policy decision, not a normalization one.
func Normalize(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimLeft(name, "/")
	// path.Clean drops the trailing slash that marks directory entries in
	// several formats; callers keep kind information separately.
	name = path.Clean(name)
	if name == "/" || name == "." {
		return "."
	}
	return name
}

// Resolve normalizes target interpreted relative to the directory holding
// name, the way symlink targets are recorded in archives.
func Resolve(name, target string) string {
	if strings.HasPrefix(target, "/") {
		return Normalize(target)
	}
	return Normalize(path.Join(path.Dir(Normalize(name)), target))
}

// HasTraversal reports whether the normalized path escapes upward through
// a ".." segment.
func HasTraversal(p string) bool {
	if p == ".." {
		return true
	}
	return strings.HasPrefix(p, "../")
}
