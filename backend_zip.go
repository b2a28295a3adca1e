package arc

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// zipFlagEncrypted is the general-purpose bit flag marking an encrypted
// entry.
const zipFlagEncrypted = 0x1

// zipBackend reads zip archives through the standard library. The central
// directory gives it random access and an upfront member list.
type zipBackend struct {
	rc  *zip.ReadCloser
	pos int
}

func newZipBackend(path string) (*zipBackend, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		if translated := translateZipError(err); translated != nil {
			return nil, translated
		}
		return nil, err
	}
	return &zipBackend{rc: rc}, nil
}

func (b *zipBackend) Next() (*RawEntry, error) {
	if b.pos >= len(b.rc.File) {
		return nil, io.EOF
	}
	f := b.rc.File[b.pos]
	b.pos++
	return b.entry(f), nil
}

func (b *zipBackend) entry(f *zip.File) *RawEntry {
	mode := f.Mode()
	kind := KindFile
	switch {
	case f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/"):
		kind = KindDir
	case mode&fs.ModeSymlink != 0:
		kind = KindSymlink
	case !mode.IsRegular():
		kind = KindOther
	}

	e := &RawEntry{
		Name:           f.Name,
		Size:           int64(f.UncompressedSize64),
		CompressedSize: int64(f.CompressedSize64),
		Kind:           kind,
		ModTime:        f.Modified,
		Mode:           mode,
		UID:            -1,
		GID:            -1,
		Encrypted:      f.Flags&zipFlagEncrypted != 0,
		CRC32:          f.CRC32,
		HasCRC32:       kind == KindFile || kind == KindSymlink,
		Method:         zipMethodName(f.Method),
		Comment:        f.Comment,
		Handle:         f,
	}
	if kind == KindDir {
		e.Size = SizeUnknown
		e.CompressedSize = SizeUnknown
		e.HasCRC32 = false
	}
	// Zip stores a symlink's target as the entry's content.
	if kind == KindSymlink && !e.Encrypted {
		if target, err := readZipSymlinkTarget(f); err == nil {
			e.LinkTarget = target
		}
	}
	return e
}

func readZipSymlinkTarget(f *zip.File) (string, error) {
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

func (b *zipBackend) OpenEntry(e *RawEntry, password string) (io.ReadCloser, error) {
	f := e.Handle.(*zip.File)
	if e.Encrypted {
		return nil, fmt.Errorf("%w: entry %q uses zip encryption, which is not supported", ErrEncrypted, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		if translated := translateZipError(err); translated != nil {
			return nil, translated
		}
		return nil, err
	}
	return rc, nil
}

func (b *zipBackend) Info() (*Info, error) {
	return &Info{
		Format:  FormatZip,
		Comment: b.rc.Comment,
	}, nil
}

func (b *zipBackend) Close() error { return b.rc.Close() }

func (b *zipBackend) StreamingOnly() bool        { return false }
func (b *zipBackend) MembersListSupported() bool { return true }

func (b *zipBackend) TranslateError(err error) error {
	return translateZipError(err)
}

// translateZipError maps standard-library zip and flate failures onto the
// core error kinds. Unrecognized errors return nil and propagate as-is.
func translateZipError(err error) error {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, zip.ErrFormat):
		return fmt.Errorf("%w: %v", ErrFormat, err)
	case errors.Is(err, zip.ErrAlgorithm):
		return fmt.Errorf("%w: %v", ErrFormat, err)
	case errors.Is(err, zip.ErrChecksum):
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	case errors.As(err, &corrupt):
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return nil
}

func zipMethodName(method uint16) string {
	switch method {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	default:
		return fmt.Sprintf("method-%d", method)
	}
}
