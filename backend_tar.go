package arc

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/substrail/arc/internal/compression"
)

// tarBackend reads tar archives, optionally layered over a stream
// compression format. Tar has no central directory, so the backend is
// streaming-only: entries are visited once, forward, and content can only
// be read for the entry currently positioned.
type tarBackend struct {
	format Format
	file   *os.File
	dec    io.ReadCloser // nil for plain tar
	tr     *tar.Reader

	serial int // identity of the current entry
}

func newTarBackend(path string, format Format, codec compression.Options) (*tarBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	b := &tarBackend{format: format, file: f}

	var stream io.Reader = f
	if c := format.tarCompression(); c != FormatUnknown {
		dec, err := compression.NewReader(c.String(), f, codec)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		b.dec = dec
		stream = dec
	}
	b.tr = tar.NewReader(stream)
	return b, nil
}

func (b *tarBackend) Next() (*RawEntry, error) {
	for {
		hdr, err := b.tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		b.serial++
		return b.entry(hdr), nil
	}
}

func (b *tarBackend) entry(hdr *tar.Header) *RawEntry {
	kind := KindOther
	switch hdr.Typeflag {
	case tar.TypeReg:
		kind = KindFile
	case tar.TypeDir:
		kind = KindDir
	case tar.TypeSymlink:
		kind = KindSymlink
	case tar.TypeLink:
		kind = KindHardlink
	}

	e := &RawEntry{
		Name:           hdr.Name,
		Size:           hdr.Size,
		CompressedSize: SizeUnknown,
		Kind:           kind,
		ModTime:        hdr.ModTime,
		AccessTime:     hdr.AccessTime,
		ChangeTime:     hdr.ChangeTime,
		Mode:           hdr.FileInfo().Mode(),
		UID:            hdr.Uid,
		GID:            hdr.Gid,
		Uname:          hdr.Uname,
		Gname:          hdr.Gname,
		LinkTarget:     hdr.Linkname,
		Handle:         b.serial,
	}
	if kind != KindFile {
		e.Size = SizeUnknown
	}
	if len(hdr.PAXRecords) > 0 {
		e.Extra = make(map[string]any, len(hdr.PAXRecords))
		for k, v := range hdr.PAXRecords {
			e.Extra[k] = v
		}
	}
	return e
}

// OpenEntry returns the current entry's content. The tar reader is the
// stream cursor itself, so only the most recently returned entry can be
// opened, and it must be consumed before the next call to Next.
func (b *tarBackend) OpenEntry(e *RawEntry, password string) (io.ReadCloser, error) {
	if e.Handle.(int) != b.serial {
		return nil, fmt.Errorf("%w: entry %q is no longer at the stream position", ErrIllegalState, e.Name)
	}
	return io.NopCloser(b.tr), nil
}

func (b *tarBackend) Info() (*Info, error) {
	return &Info{Format: b.format}, nil
}

func (b *tarBackend) Close() error {
	var decErr error
	if b.dec != nil {
		decErr = b.dec.Close()
	}
	fileErr := b.file.Close()
	if decErr != nil {
		return decErr
	}
	return fileErr
}

func (b *tarBackend) StreamingOnly() bool        { return true }
func (b *tarBackend) MembersListSupported() bool { return false }

func (b *tarBackend) TranslateError(err error) error {
	switch {
	case errors.Is(err, tar.ErrHeader):
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return nil
}
