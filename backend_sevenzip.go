package arc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/bodgit/sevenzip"
)

// sevenZipBackend reads 7z archives through bodgit/sevenzip. The central
// directory is decoded up front, so members are listed eagerly and any
// member can be reopened at will.
type sevenZipBackend struct {
	rc    *sevenzip.ReadCloser
	pos   int
	solid bool
}

func newSevenZipBackend(path, password string) (*sevenZipBackend, error) {
	var (
		rc  *sevenzip.ReadCloser
		err error
	)
	if password != "" {
		rc, err = sevenzip.OpenReaderWithPassword(path, password)
	} else {
		rc, err = sevenzip.OpenReader(path)
	}
	if err != nil {
		if translated := translateSevenZipError(err); translated != nil {
			return nil, translated
		}
		return nil, err
	}
	return &sevenZipBackend{rc: rc, solid: sevenZipIsSolid(rc)}, nil
}

// sevenZipIsSolid reports whether any substream holds more than one file,
// which is what makes sequential extraction cheaper than member-by-member
// access.
func sevenZipIsSolid(rc *sevenzip.ReadCloser) bool {
	seen := make(map[int]int)
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		seen[f.Stream]++
		if seen[f.Stream] > 1 {
			return true
		}
	}
	return false
}

func (b *sevenZipBackend) Next() (*RawEntry, error) {
	if b.pos >= len(b.rc.File) {
		return nil, io.EOF
	}
	f := b.rc.File[b.pos]
	b.pos++
	return b.entry(f), nil
}

func (b *sevenZipBackend) entry(f *sevenzip.File) *RawEntry {
	fi := f.FileInfo()
	mode := fi.Mode()
	kind := KindFile
	switch {
	case fi.IsDir():
		kind = KindDir
	case mode&fs.ModeSymlink != 0:
		kind = KindSymlink
	case !mode.IsRegular():
		kind = KindOther
	}

	e := &RawEntry{
		Name:     f.Name,
		Size:     int64(f.UncompressedSize),
		Kind:     kind,
		ModTime:  f.Modified,
		Mode:     mode,
		UID:      -1,
		GID:      -1,
		CRC32:    f.CRC32,
		HasCRC32: f.CRC32 != 0 && kind == KindFile,
		Handle:   f,
	}
	if !f.Created.IsZero() {
		e.ChangeTime = f.Created
	}
	if !f.Accessed.IsZero() {
		e.AccessTime = f.Accessed
	}
	if kind != KindFile {
		e.Size = SizeUnknown
	}
	if kind == KindSymlink {
		if target, err := readSevenZipLinkTarget(f); err == nil {
			e.LinkTarget = target
		}
	}
	return e
}

// 7z stores a symlink's target as the member's content.
func readSevenZipLinkTarget(f *sevenzip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	target, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", err
	}
	return string(target), nil
}

func (b *sevenZipBackend) OpenEntry(e *RawEntry, password string) (io.ReadCloser, error) {
	f, ok := e.Handle.(*sevenzip.File)
	if !ok {
		return nil, fmt.Errorf("%w: entry %q has no readable content", ErrNotOpenable, e.Name)
	}
	rc, err := f.Open()
	if err != nil {
		if translated := translateSevenZipError(err); translated != nil {
			return nil, translated
		}
		return nil, err
	}
	return rc, nil
}

func (b *sevenZipBackend) Info() (*Info, error) {
	return &Info{Format: FormatSevenZip, Solid: b.solid}, nil
}

func (b *sevenZipBackend) Close() error { return b.rc.Close() }

func (b *sevenZipBackend) StreamingOnly() bool        { return false }
func (b *sevenZipBackend) MembersListSupported() bool { return true }

func (b *sevenZipBackend) TranslateError(err error) error {
	return translateSevenZipError(err)
}

func translateSevenZipError(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return nil
}
