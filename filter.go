package arc

import (
	"io/fs"
	"strings"

	"github.com/substrail/arc/internal/pathutil"
)

// FilterFunc decides whether and how a member is written to disk during
// extraction. It receives the member and the destination directory, and
// returns the member to extract — possibly a modified copy with a changed
// name or mode — or nil to skip it. Returning an error records a
// per-member failure instead of a silent skip.
//
// A returned copy must keep the original member's identity.
type FilterFunc func(m *Member, destDir string) (*Member, error)

// FilterFullyTrusted performs no sanitization. The caller accepts all risk,
// including path traversal outside the destination.
func FilterFullyTrusted(m *Member, destDir string) (*Member, error) {
	return m, nil
}

// FilterTar mirrors the permissive semantics of conventional archive
// tools: member paths and link targets must stay inside the destination,
// and modes are clamped to permission bits, but special files and
// executable bits pass through.
func FilterTar(m *Member, destDir string) (*Member, error) {
	return sanitize(m, false)
}

// FilterData is the conservative default for archives whose contents are
// plain data. On top of FilterTar's path checks it rejects device and
// other special members, strips executable bits, and guarantees files are
// readable and writable by their owner.
func FilterData(m *Member, destDir string) (*Member, error) {
	if m.Kind == KindOther {
		return nil, nil // device or special file
	}
	return sanitize(m, true)
}

// sanitize applies path-safety checks and mode clamping shared by the tar
// and data filters. Unsafe members are skipped, not failed: a hostile
// archive should not abort extraction of its harmless members.
func sanitize(m *Member, forData bool) (*Member, error) {
	if isUnsafePath(m.Name) {
		return nil, nil
	}
	name := pathutil.Normalize(m.Name)
	if pathutil.HasTraversal(name) || name == "." && m.Kind != KindDir {
		return nil, nil
	}
	if m.IsLink() && isUnsafeLinkTarget(name, m) {
		return nil, nil
	}

	mode := m.Mode & fs.ModePerm
	if forData && m.IsFile() {
		mode &^= 0o111
		mode |= 0o600
	}

	if name == m.Name && mode == m.Mode {
		return m, nil
	}
	clean := *m
	clean.Name = name
	clean.Mode = mode | (m.Mode &^ fs.ModePerm &^ fs.ModeSetuid &^ fs.ModeSetgid &^ fs.ModeSticky)
	return &clean, nil
}

// isUnsafePath flags absolute paths before normalization strips them.
func isUnsafePath(name string) bool {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return true
	}
	// Windows drive-letter absolute paths.
	if len(name) >= 2 && name[1] == ':' {
		return true
	}
	return false
}

// isUnsafeLinkTarget flags link targets that escape the destination.
func isUnsafeLinkTarget(name string, m *Member) bool {
	if m.LinkTarget == "" {
		return false
	}
	if isUnsafePath(m.LinkTarget) {
		return true
	}
	var resolved string
	if m.Kind == KindSymlink {
		// Symlink targets are relative to the link's own directory.
		resolved = pathutil.Resolve(name, m.LinkTarget)
	} else {
		resolved = pathutil.Normalize(m.LinkTarget)
	}
	return pathutil.HasTraversal(resolved)
}
