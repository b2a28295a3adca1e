package arc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/substrail/arc/internal/compression"
)

// Reader provides uniform access to the members of one archive.
//
// A reader moves through a fixed lifecycle: opened, then iterated or
// accessed randomly, then closed. The access mode is decided once at open
// time by the backend's capability: random-access readers may open any
// member in any order and iterate repeatedly; streaming-only readers get a
// single forward pass.
//
// A Reader is not safe for concurrent use; callers must serialize access.
// Member values handed out by a reader are immutable and freely shareable.
type Reader struct {
	path    string
	format  Format
	backend Backend
	reg     *registry
	streams *streamSet

	logger    *slog.Logger
	password  string
	overwrite OverwriteMode
	filter    FilterFunc
	codec     compression.Options

	forceStreaming bool
	streamingOnly  bool

	iterStarted bool
	activeIter  *Iter
	closed      bool
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.logger
}

// Path returns the archive path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Format returns the archive's format.
func (r *Reader) Format() Format { return r.format }

// HasRandomAccess reports whether members can be opened independently of
// iteration order. The capability is fixed for the reader's lifetime.
func (r *Reader) HasRandomAccess() bool { return !r.streamingOnly }

// Info returns archive-level metadata.
func (r *Reader) Info() (*Info, error) {
	if r.closed {
		return nil, r.closedErr()
	}
	info, err := r.backend.Info()
	if err != nil {
		return nil, r.wrap("", err)
	}
	return info, nil
}

// Members returns all members in registration order, draining the
// backend's entry iterator if discovery has not finished. On a
// streaming-only reader this consumes the remainder of the single pass.
// Calling it again returns the same list.
func (r *Reader) Members() ([]*Member, error) {
	if r.closed {
		return nil, r.closedErr()
	}
	ms, err := r.reg.forceComplete()
	if err != nil {
		return nil, r.wrap("", err)
	}
	return ms, nil
}

// MembersIfAvailable returns the full member list only when it is cheaply
// available: discovery has already finished, or the backend supports
// upfront listing. It returns nil (with no error) otherwise; callers must
// then iterate.
func (r *Reader) MembersIfAvailable() ([]*Member, error) {
	if r.closed {
		return nil, r.closedErr()
	}
	ms, err := r.reg.snapshotIfComplete()
	if err != nil {
		return nil, r.wrap("", err)
	}
	return ms, nil
}

// Member resolves a member reference: pass a *Member obtained from this
// reader, or a name string. Name lookups return the most recently
// registered member with that name.
func (r *Reader) Member(ref any) (*Member, error) {
	if r.closed {
		return nil, r.closedErr()
	}
	m, err := r.reg.resolve(ref)
	if err != nil {
		return nil, r.wrap(refName(ref), err)
	}
	return m, nil
}

// ResolveLink follows a member's link chain to its final non-link target.
// It returns (nil, nil) when the chain is broken, cyclic, or deeper than
// the resolution limit. Non-link members resolve to themselves.
func (r *Reader) ResolveLink(ref any) (*Member, error) {
	if r.closed {
		return nil, r.closedErr()
	}
	m, err := r.Member(ref)
	if err != nil {
		return nil, err
	}
	if !m.IsLink() {
		return m, nil
	}
	// Targets may appear later in the archive than the link itself, so
	// lookups need the full registry. On a streaming reader mid-pass this
	// resolves against what has been discovered so far.
	if r.HasRandomAccess() || r.reg.listSupported {
		if _, err := r.reg.forceComplete(); err != nil {
			return nil, r.wrap(m.Name, err)
		}
	}
	return r.reg.resolveLink(m), nil
}

// OpenMember opens a member's content for reading. Link members are
// resolved to their target first. For streaming-only readers, only the
// member currently positioned in an active iteration can be opened.
func (r *Reader) OpenMember(ref any) (*MemberFile, error) {
	return r.openMember(ref, r.password)
}

func (r *Reader) openMember(ref any, password string) (*MemberFile, error) {
	if r.closed {
		return nil, r.closedErr()
	}
	m, err := r.Member(ref)
	if err != nil {
		return nil, err
	}
	target := m
	if m.IsLink() {
		resolved, err := r.ResolveLink(m)
		if err != nil {
			return nil, err
		}
		if resolved == nil {
			return nil, r.wrap(m.Name, fmt.Errorf("%w: link target %q cannot be resolved", ErrNotOpenable, m.LinkTarget))
		}
		target = resolved
	}
	if !target.IsFile() {
		return nil, r.wrap(target.Name, fmt.Errorf("%w: member is a %s", ErrNotOpenable, target.Kind))
	}
	if r.streamingOnly {
		if r.activeIter == nil || r.activeIter.cur != target {
			return nil, r.wrap(target.Name, fmt.Errorf("%w: streaming-only reader can only open the member at the current iteration position", ErrIllegalState))
		}
	}
	return r.newMemberFile(target, password), nil
}

// newMemberFile builds a tracked, lazily-opened stream for a file member.
func (r *Reader) newMemberFile(m *Member, password string) *MemberFile {
	f := &MemberFile{
		member:    m,
		archive:   r.path,
		translate: r.backend.TranslateError,
		release:   r.streams.untrack,
		open: func() (io.ReadCloser, error) {
			return r.backend.OpenEntry(m.raw.(*RawEntry), password)
		},
	}
	r.streams.track(f)
	return f
}

// Close releases the archive and every stream still held by the caller.
// It is idempotent; all other operations fail once the reader is closed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.activeIter = nil

	streamErr := r.streams.closeAll()
	backendErr := r.backend.Close()
	if streamErr != nil {
		return streamErr
	}
	if backendErr != nil {
		return r.wrap("", backendErr)
	}
	return nil
}

func (r *Reader) closedErr() error {
	return archiveErr(r.path, "", fmt.Errorf("%w: reader is closed", ErrIllegalState))
}

// wrap translates backend errors and adds archive context.
func (r *Reader) wrap(member string, err error) error {
	if err == nil {
		return nil
	}
	if translated := r.backend.TranslateError(err); translated != nil {
		err = translated
	}
	return archiveErr(r.path, member, err)
}

func refName(ref any) string {
	switch v := ref.(type) {
	case *Member:
		if v != nil {
			return v.Name
		}
	case string:
		return v
	}
	return ""
}

// drawEntry is the registry's pull function: it fetches the next raw entry
// from the backend, translating non-EOF failures.
func (r *Reader) drawEntry() (*RawEntry, error) {
	e, err := r.backend.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		if translated := r.backend.TranslateError(err); translated != nil {
			err = translated
		}
		return nil, err
	}
	return e, err
}
