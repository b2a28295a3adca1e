package arc

import (
	"fmt"
	"io"
	"sync"
)

// MemberFile is a readable stream for one member's content.
//
// The backing stream is opened lazily on first Read, so iteration over
// members whose content is never consumed costs nothing. Errors raised by
// the backend during Read or Close pass through the backend's error
// translator; recognized failures surface as one of the core error kinds,
// anything else propagates unchanged.
//
// Close is idempotent. The owning Reader tracks every live MemberFile and
// force-closes them all when the reader itself is closed.
type MemberFile struct {
	member  *Member
	archive string

	open      func() (io.ReadCloser, error)
	translate func(error) error
	release   func(*MemberFile)

	rc     io.ReadCloser
	opened bool
	closed bool
}

// Member returns the member this stream belongs to.
func (f *MemberFile) Member() *Member { return f.member }

func (f *MemberFile) init() error {
	if f.opened {
		return nil
	}
	rc, err := f.open()
	if err != nil {
		return f.wrap(err)
	}
	f.rc = rc
	f.opened = true
	return nil
}

// Read implements io.Reader.
func (f *MemberFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("%w: read on closed member stream", ErrIllegalState)
	}
	if err := f.init(); err != nil {
		return 0, err
	}
	n, err := f.rc.Read(p)
	if err != nil && err != io.EOF {
		err = f.wrap(err)
	}
	return n, err
}

// Close releases the backing stream. It may be called more than once.
func (f *MemberFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.release != nil {
		f.release(f)
	}
	if f.rc == nil {
		return nil
	}
	err := f.rc.Close()
	f.rc = nil
	if err != nil {
		return f.wrap(err)
	}
	return nil
}

// wrap runs err through the backend translator and adds archive context.
func (f *MemberFile) wrap(err error) error {
	if f.translate != nil {
		if translated := f.translate(err); translated != nil {
			err = translated
		}
	}
	return archiveErr(f.archive, f.member.Name, err)
}

// streamSet tracks every stream handed to a caller so the reader can
// guarantee release on Close. It is the one place in the core guarded by a
// mutex: Close must be safe to call while a stale stream is still held
// somewhere else.
type streamSet struct {
	mu   sync.Mutex
	live map[*MemberFile]struct{}
}

func newStreamSet() *streamSet {
	return &streamSet{live: make(map[*MemberFile]struct{})}
}

func (s *streamSet) track(f *MemberFile) {
	s.mu.Lock()
	s.live[f] = struct{}{}
	s.mu.Unlock()
}

func (s *streamSet) untrack(f *MemberFile) {
	s.mu.Lock()
	delete(s.live, f)
	s.mu.Unlock()
}

// closeAll force-closes every live stream, returning the first error.
func (s *streamSet) closeAll() error {
	s.mu.Lock()
	streams := make([]*MemberFile, 0, len(s.live))
	for f := range s.live {
		streams = append(streams, f)
	}
	s.live = make(map[*MemberFile]struct{})
	s.mu.Unlock()

	var first error
	for _, f := range streams {
		f.release = nil // already removed
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
