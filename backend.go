package arc

import (
	"io"
	"io/fs"
	"time"
)

// RawEntry is one archive entry as supplied by a format backend, before
// registration. Field semantics match Member; Name may still be in the
// format's native form and is normalized during registration.
type RawEntry struct {
	Name           string
	Size           int64
	CompressedSize int64
	Kind           Kind
	ModTime        time.Time
	AccessTime     time.Time
	ChangeTime     time.Time
	Mode           fs.FileMode
	UID            int
	GID            int
	Uname          string
	Gname          string
	LinkTarget     string
	Encrypted      bool
	CRC32          uint32
	HasCRC32       bool
	Method         string
	Comment        string
	Extra          map[string]any

	// Handle is the backend's private handle for this entry, carried into
	// the registered Member untouched.
	Handle any
}

// Backend is the format-specific half of a Reader. One implementation
// exists per container format; the set is closed and selected once at open
// time.
//
// A backend is driven by a single goroutine. Next is the raw-entry
// iterator: it returns entries in archive physical order and io.EOF at the
// end. For streaming-only backends, OpenEntry may only be called for the
// entry most recently returned by Next, and reading must finish before the
// next call to Next.
type Backend interface {
	// Next returns the next raw entry, or io.EOF when exhausted.
	Next() (*RawEntry, error)

	// OpenEntry returns a reader for the entry's content. password
	// overrides the archive-level password when non-empty.
	OpenEntry(e *RawEntry, password string) (io.ReadCloser, error)

	// Info returns archive-level metadata.
	Info() (*Info, error)

	// Close releases the backend's underlying handles.
	Close() error

	// StreamingOnly reports whether entries can only be visited once,
	// forward. Fixed at construction.
	StreamingOnly() bool

	// MembersListSupported reports whether the full entry list can be
	// produced upfront without scanning the whole archive. Fixed at
	// construction.
	MembersListSupported() bool

	// TranslateError maps a backend-library failure to one of the core
	// error kinds, or returns nil for errors it does not recognize, which
	// then propagate unchanged.
	TranslateError(err error) error
}
