package arc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// OverwriteMode controls what happens when an extraction destination
// already exists.
type OverwriteMode int

const (
	// OverwriteError records existing destinations as per-member
	// failures. The default.
	OverwriteError OverwriteMode = iota

	// OverwriteSkip leaves existing destinations untouched.
	OverwriteSkip

	// OverwriteAlways replaces existing destinations.
	OverwriteAlways
)

// ExtractOption configures an extraction run.
type ExtractOption func(*extractor)

// ExtractWithMembers restricts extraction to the given members, each a
// *Member or a name string.
func ExtractWithMembers(refs ...any) ExtractOption {
	return func(x *extractor) {
		x.memberRefs = refs
	}
}

// ExtractWithSelect restricts extraction to members for which fn returns
// true.
func ExtractWithSelect(fn func(*Member) bool) ExtractOption {
	return func(x *extractor) {
		x.include = fn
	}
}

// ExtractWithFilter overrides the reader's extraction filter for this run.
func ExtractWithFilter(filter FilterFunc) ExtractOption {
	return func(x *extractor) {
		x.filter = filter
	}
}

// ExtractWithOverwrite overrides the reader's overwrite mode for this run.
func ExtractWithOverwrite(mode OverwriteMode) ExtractOption {
	return func(x *extractor) {
		x.overwrite = mode
	}
}

// ExtractWithPassword overrides the archive-level password for this run.
func ExtractWithPassword(password string) ExtractOption {
	return func(x *extractor) {
		x.password = password
	}
}

// ExtractResult reports the outcome of an extraction run.
type ExtractResult struct {
	// Written maps each destination path actually written to the member
	// written there. Skipped members do not appear.
	Written map[string]*Member

	// Skipped lists members excluded by the filter or the overwrite
	// policy.
	Skipped []*Member

	// Failed lists members whose extraction failed without aborting the
	// run: broken links, existing destinations under OverwriteError,
	// individual decode failures.
	Failed []*MemberError
}

// ExtractAll extracts the selected members (default: all) under destDir.
//
// With random access the full filtered plan is built first and link members
// are written last, after their possible targets. On a streaming-only
// reader extraction happens during the single forward pass, in archive
// order, and counts as the reader's one iteration.
//
// Per-member failures are collected in the result; only a destination
// directory that cannot be created aborts the whole run.
func (r *Reader) ExtractAll(destDir string, opts ...ExtractOption) (*ExtractResult, error) {
	if r.closed {
		return nil, r.closedErr()
	}
	x := r.newExtractor(destDir, opts)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, archiveErr(r.path, "", fmt.Errorf("create destination: %w", err))
	}

	var err error
	if r.HasRandomAccess() {
		err = x.runPlanned()
	} else {
		err = x.runStreaming()
	}
	if err != nil {
		return nil, err
	}
	x.applyMetadata()
	return x.result, nil
}

// ExtractOne extracts a single member under destDir and returns the
// written path. Unlike OpenMember it extracts the named member itself: a
// symlink is written as a symlink, not as its target's content. Only
// available with random access.
func (r *Reader) ExtractOne(ref any, destDir string, opts ...ExtractOption) (string, error) {
	if r.closed {
		return "", r.closedErr()
	}
	if !r.HasRandomAccess() {
		return "", archiveErr(r.path, refName(ref), fmt.Errorf("%w: single-member extraction needs random access; use ExtractAll or Iterate", ErrIllegalState))
	}
	m, err := r.Member(ref)
	if err != nil {
		return "", err
	}

	if _, err := r.Members(); err != nil {
		return "", err
	}

	x := r.newExtractor(destDir, opts)
	x.filter = FilterFullyTrusted // single explicit member, no sanitization
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", archiveErr(r.path, m.Name, fmt.Errorf("create destination: %w", err))
	}
	var stream *MemberFile
	if m.IsFile() {
		stream = r.newMemberFile(m, x.password)
		defer stream.Close()
	}
	x.extractMember(m, stream)
	x.applyMetadata()

	if len(x.result.Failed) > 0 {
		return "", archiveErr(r.path, m.Name, x.result.Failed[0].Err)
	}
	for path := range x.result.Written {
		return path, nil
	}
	return "", nil // skipped by overwrite policy
}

// extractor drives one extraction run. It mirrors the reader's split
// between planned (random access) and streaming modes and owns all
// bookkeeping: written paths, skips, per-member failures, deferred link
// creation.
type extractor struct {
	r       *Reader
	destDir string

	memberRefs []any
	include    func(*Member) bool
	filter     FilterFunc
	overwrite  OverwriteMode
	password   string

	result *ExtractResult

	// pathByIndex maps member index to its written path, for hardlinks.
	pathByIndex map[int]string
}

func (r *Reader) newExtractor(destDir string, opts []ExtractOption) *extractor {
	x := &extractor{
		r:           r,
		destDir:     destDir,
		filter:      r.filter,
		overwrite:   r.overwrite,
		password:    r.password,
		result:      &ExtractResult{Written: make(map[string]*Member)},
		pathByIndex: make(map[int]string),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.memberRefs != nil {
		x.include = r.buildSelection(x.memberRefs, x.include)
	}
	return x
}

// buildSelection turns an explicit member list into an inclusion predicate.
func (r *Reader) buildSelection(refs []any, base func(*Member) bool) func(*Member) bool {
	names := make(map[string]bool)
	indices := make(map[int]bool)
	for _, ref := range refs {
		switch v := ref.(type) {
		case *Member:
			indices[v.ID.index] = true
		case string:
			names[v] = true
		}
	}
	return func(m *Member) bool {
		if base != nil && base(m) {
			return true
		}
		return names[m.Name] || indices[m.ID.index]
	}
}

// runPlanned builds the full filtered plan first, then writes content
// members, then links, so every link target exists before its link.
func (x *extractor) runPlanned() error {
	members, err := x.r.Members()
	if err != nil {
		return err
	}

	var plan, links []*Member
	for _, m := range members {
		fm, ok := x.applyFilter(m)
		if !ok {
			continue
		}
		if fm.IsLink() {
			links = append(links, fm)
		} else {
			plan = append(plan, fm)
		}
	}

	for _, m := range plan {
		var stream *MemberFile
		if m.IsFile() {
			stream = x.r.newMemberFile(m, x.password)
		}
		x.extractMember(m, stream)
		if stream != nil {
			_ = stream.Close()
		}
	}
	for _, m := range links {
		x.extractMember(m, nil)
	}
	return nil
}

// runStreaming applies the filter and writes during the reader's single
// iteration pass, in archive order.
func (x *extractor) runStreaming() error {
	var iterOpts []IterOption
	if x.include != nil {
		iterOpts = append(iterOpts, IterWithSelect(x.include))
	}
	if x.password != "" {
		iterOpts = append(iterOpts, IterWithPassword(x.password))
	}
	it, err := x.r.Iterate(iterOpts...)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		m := it.Member()
		fm, ok := x.applyFilter(m)
		if !ok {
			continue
		}
		var stream *MemberFile
		if fm.IsFile() {
			stream = it.File()
		}
		x.extractMember(fm, stream)
	}
	return it.Err()
}

// applyFilter runs the selection predicate and the filter. The returned
// member may be a sanitized copy; ok is false when the member is excluded.
func (x *extractor) applyFilter(m *Member) (*Member, bool) {
	if x.include != nil && !x.include(m) {
		return nil, false
	}
	fm, err := x.filter(m, x.destDir)
	if err != nil {
		x.fail(m, err)
		return nil, false
	}
	if fm == nil {
		x.skip(m)
		return nil, false
	}
	if fm.ID != m.ID {
		x.fail(m, fmt.Errorf("filter returned a member with a different identity: %q", fm.Name))
		return nil, false
	}
	return fm, true
}

func (x *extractor) outputPath(m *Member) string {
	return filepath.Join(x.destDir, filepath.FromSlash(m.Name))
}

func (x *extractor) skip(m *Member) {
	x.result.Skipped = append(x.result.Skipped, m)
}

func (x *extractor) fail(m *Member, err error) {
	x.r.log().Warn("member extraction failed", "member", m.Name, "error", err)
	x.result.Failed = append(x.result.Failed, &MemberError{Member: m, Err: err})
}

func (x *extractor) markWritten(m *Member, path string) {
	x.result.Written[path] = m
	x.pathByIndex[m.ID.index] = path
}

// extractMember writes one member to disk according to its kind.
func (x *extractor) extractMember(m *Member, stream *MemberFile) {
	path := x.outputPath(m)
	switch {
	case m.IsDir():
		x.createDir(m, path)
	case m.IsFile():
		x.createFile(m, stream, path)
	case m.IsLink():
		x.createLink(m, path)
	default:
		x.skip(m)
	}
}

// checkOverwrite applies the overwrite policy. It reports whether writing
// may proceed; when it does and something was in the way, the obstacle has
// been removed.
func (x *extractor) checkOverwrite(m *Member, path string) bool {
	fi, err := os.Lstat(path)
	if err != nil {
		return true // nothing there
	}
	existingIsDir := fi.IsDir()

	if m.IsDir() && existingIsDir {
		return true // directory over directory is fine
	}

	if _, createdByUs := x.result.Written[path]; !createdByUs {
		switch x.overwrite {
		case OverwriteSkip:
			x.skip(m)
			return false
		case OverwriteError:
			x.fail(m, fmt.Errorf("%w: %s", ErrExists, path))
			return false
		}
	}

	if m.IsDir() {
		x.fail(m, fmt.Errorf("%w: cannot create directory over file %s", ErrExists, path))
		return false
	}
	if existingIsDir {
		x.fail(m, fmt.Errorf("%w: cannot create %s over directory %s", ErrExists, m.Kind, path))
		return false
	}
	if err := os.Remove(path); err != nil {
		x.fail(m, fmt.Errorf("remove existing %s: %w", path, err))
		return false
	}
	return true
}

func (x *extractor) createDir(m *Member, path string) {
	if !x.checkOverwrite(m, path) {
		return
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		x.fail(m, err)
		return
	}
	x.markWritten(m, path)
}

func (x *extractor) createFile(m *Member, stream *MemberFile, path string) {
	if !x.checkOverwrite(m, path) {
		return
	}
	if stream == nil {
		x.fail(m, fmt.Errorf("%w: no content stream", ErrNotOpenable))
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		x.fail(m, err)
		return
	}
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		x.fail(m, err)
		return
	}
	_, err = io.Copy(dst, stream)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		x.fail(m, err)
		return
	}
	x.markWritten(m, path)
}

// createLink writes a symlink or hardlink member. The target must resolve
// within the archive; broken and cyclic chains are per-member failures.
func (x *extractor) createLink(m *Member, path string) {
	target := x.r.reg.resolveLink(m)
	if target == nil {
		x.fail(m, fmt.Errorf("%w: link target %q is broken or cyclic", ErrNotOpenable, m.LinkTarget))
		return
	}

	// Archives occasionally contain links pointing at themselves; there
	// is nothing useful to write, and removing an existing file first
	// would leave the link dangling.
	if target.ID == m.ID || x.pathByIndex[target.ID.index] == path {
		x.skip(m)
		return
	}

	if !x.checkOverwrite(m, path) {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		x.fail(m, err)
		return
	}

	if m.Kind == KindSymlink {
		if err := os.Symlink(filepath.FromSlash(m.LinkTarget), path); err != nil {
			x.fail(m, err)
			return
		}
		x.markWritten(m, path)
		return
	}

	// Hardlink: link against the path the target was extracted to, falling
	// back to copying content when linking is not possible.
	targetPath, extracted := x.pathByIndex[x.directHardlinkIndex(m, target)]
	if !extracted {
		x.fail(m, fmt.Errorf("hardlink target %q was not extracted", m.LinkTarget))
		return
	}
	if err := os.Link(targetPath, path); err != nil {
		x.r.log().Debug("hardlink failed, copying content", "member", m.Name, "error", err)
		if copyErr := copyFile(targetPath, path); copyErr != nil {
			x.fail(m, copyErr)
			return
		}
	}
	x.markWritten(m, path)
}

// directHardlinkIndex returns the index whose extracted path a hardlink
// should point at: the immediate target when it was written, otherwise the
// final chain target.
func (x *extractor) directHardlinkIndex(m, final *Member) int {
	if direct := x.r.reg.hardlinkTarget(m); direct != nil {
		if _, ok := x.pathByIndex[direct.ID.index]; ok {
			return direct.ID.index
		}
	}
	return final.ID.index
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}

// applyMetadata restores permissions and times on everything written.
// Symlinks are left alone: neither chmod nor chtimes follows them
// portably.
func (x *extractor) applyMetadata() {
	for path, m := range x.result.Written {
		if m.Kind == KindSymlink {
			continue
		}
		if perm := m.Mode.Perm(); perm != 0 {
			if err := os.Chmod(path, perm); err != nil && !errors.Is(err, os.ErrNotExist) {
				x.r.log().Debug("chmod failed", "path", path, "error", err)
			}
		}
		if !m.ModTime.IsZero() {
			atime := m.AccessTime
			if atime.IsZero() {
				atime = m.ModTime
			}
			if err := os.Chtimes(path, atime, m.ModTime); err != nil {
				x.r.log().Debug("chtimes failed", "path", path, "error", err)
			}
		}
	}
}
