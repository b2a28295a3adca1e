package arc

import (
	"errors"
	"fmt"
)

// Error kinds. Backend failures are translated to these at the stream and
// iteration boundary; anything a backend's translator does not recognize
// propagates unchanged.
var (
	// ErrFormat is returned when an archive's signature is unrecognized
	// or the format is unsupported.
	ErrFormat = errors.New("unsupported or unrecognized archive format")

	// ErrCorrupted is returned on structural inconsistencies: malformed
	// headers, failed checksums, impossible field values.
	ErrCorrupted = errors.New("archive corrupted")

	// ErrEncrypted is returned when a password is missing, wrong, or the
	// encryption scheme is unsupported.
	ErrEncrypted = errors.New("archive encrypted")

	// ErrTruncated is returned when a stream ends mid-read.
	ErrTruncated = errors.New("archive truncated")

	// ErrMemberNotFound is returned when a lookup by name fails.
	ErrMemberNotFound = errors.New("member not found")

	// ErrIllegalState is returned for operations invalid in the reader's
	// current state, such as re-iterating a streaming-only archive or
	// calling any method after Close.
	ErrIllegalState = errors.New("operation invalid in current reader state")

	// ErrExists is returned when extraction would overwrite an existing
	// path and the overwrite mode forbids it.
	ErrExists = errors.New("destination already exists")

	// ErrNotOpenable is returned when opening a member kind that has no
	// content stream, or a link whose target cannot be resolved.
	ErrNotOpenable = errors.New("member cannot be opened")
)

// ArchiveError decorates an error with the archive path and, when known,
// the member name involved, so failures can be diagnosed without reopening
// the archive.
type ArchiveError struct {
	Archive string
	Member  string
	Err     error
}

// Error implements error.
func (e *ArchiveError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("%s: %s: %v", e.Archive, e.Member, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Archive, e.Err)
}

// Unwrap returns the underlying error.
func (e *ArchiveError) Unwrap() error { return e.Err }

// MemberError records one non-fatal per-member extraction failure.
type MemberError struct {
	Member *Member
	Err    error
}

// Error implements error.
func (e *MemberError) Error() string {
	return fmt.Sprintf("%s: %v", e.Member.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *MemberError) Unwrap() error { return e.Err }

// archiveErr wraps err with archive context unless it already carries one.
func archiveErr(archive, member string, err error) error {
	if err == nil {
		return nil
	}
	var ae *ArchiveError
	if errors.As(err, &ae) {
		return err
	}
	return &ArchiveError{Archive: archive, Member: member, Err: err}
}
