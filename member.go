package arc

import (
	"io/fs"
	"time"
)

// Kind classifies an archive member.
type Kind int

// Member kinds.
const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindHardlink
	KindOther
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindHardlink:
		return "hardlink"
	default:
		return "other"
	}
}

// MemberID identifies a member within one open archive. IDs are assigned
// sequentially in registration order and are only meaningful for the reader
// that produced them; filenames are not unique, IDs are.
type MemberID struct {
	archive uint64
	index   int
}

// Index returns the member's position in registration order.
func (id MemberID) Index() int { return id.index }

// SizeUnknown marks an absent size value (directories, links, streaming
// formats that do not record sizes upfront).
const SizeUnknown int64 = -1

// Member describes one entry in an archive.
//
// Members are immutable once registered: readers hand out pointers to the
// same underlying value, which is safe to share across goroutines for
// reading. A Member belongs to exactly one Reader and becomes invalid when
// that reader is closed.
type Member struct {
	// ID is the member's stable identity within its archive.
	ID MemberID

	// Name is the normalized member path: forward-slash separated, with
	// no leading slash. Names are not unique within an archive.
	Name string

	// Size and CompressedSize are SizeUnknown when the format does not
	// record them (non-file kinds, some streaming formats).
	Size           int64
	CompressedSize int64

	Kind Kind

	// ModTime, AccessTime and ChangeTime are zero when absent. They carry
	// a location when the format stores timezone information.
	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time

	// Mode is zero when the format does not record permissions.
	Mode fs.FileMode

	// UID and GID are -1 when absent.
	UID   int
	GID   int
	Uname string
	Gname string

	// LinkTarget is the raw target path recorded for symlinks and
	// hardlinks. It is not resolved at registration time; use
	// Reader.ResolveLink to map it to a Member.
	LinkTarget string

	Encrypted bool

	// CRC32 is valid only when HasCRC32 is set.
	CRC32    uint32
	HasCRC32 bool

	// Method names the compression method, e.g. "deflate" or "lzma2".
	Method  string
	Comment string
	Extra   map[string]any

	// raw is the registered entry, holding the backend's handle. The core
	// never interprets the handle.
	raw any
}

// IsFile reports whether the member is a regular file.
func (m *Member) IsFile() bool { return m.Kind == KindFile }

// IsDir reports whether the member is a directory.
func (m *Member) IsDir() bool { return m.Kind == KindDir }

// IsLink reports whether the member is a symlink or hardlink.
func (m *Member) IsLink() bool { return m.Kind == KindSymlink || m.Kind == KindHardlink }

// Raw returns the backend-specific handle for this entry. Callers outside
// format backends should not depend on its type.
func (m *Member) Raw() any {
	if e, ok := m.raw.(*RawEntry); ok {
		return e.Handle
	}
	return m.raw
}

// Info holds archive-level metadata.
type Info struct {
	Format Format

	// Version is format-specific, e.g. "4" or "5" for RAR.
	Version string

	// Solid reports whether members are compressed as one stream, making
	// isolated single-member access costly.
	Solid bool

	Comment string
	Extra   map[string]any
}
