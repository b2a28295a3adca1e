package arc

import (
	stdgzip "compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/substrail/arc/internal/compression"
)

// singleFileBackend presents a bare compressed stream (gzip, bzip2, xz,
// zstd, lz4, brotli) as an archive holding exactly one file member. The
// stream can be reopened from the start, so the backend supports random
// access even though the formats themselves are purely sequential.
type singleFileBackend struct {
	path   string
	format Format
	codec  compression.Options

	memberName string
	modTime    time.Time
	size       int64

	done bool
}

func newSingleFileBackend(path string, format Format, codec compression.Options) (*singleFileBackend, error) {
	b := &singleFileBackend{
		path:   path,
		format: format,
		codec:  codec,
		size:   SizeUnknown,
	}

	base := filepath.Base(path)
	if inner, ok := compression.StripSuffix(format.String(), base); ok {
		b.memberName = inner
	} else {
		b.memberName = base
	}

	// Gzip optionally records the original filename and mtime; prefer
	// those when present.
	if format == FormatGzip {
		b.readGzipMetadata()
	}

	// Fail early on an unreadable or misformatted stream.
	rc, err := b.openStream()
	if err != nil {
		return nil, err
	}
	_ = rc.Close()
	return b, nil
}

func (b *singleFileBackend) readGzipMetadata() {
	f, err := os.Open(b.path)
	if err != nil {
		return
	}
	defer f.Close()
	zr, err := stdgzip.NewReader(f)
	if err != nil {
		return
	}
	defer zr.Close()
	if zr.Name != "" {
		b.memberName = zr.Name
	}
	if !zr.ModTime.IsZero() {
		b.modTime = zr.ModTime
	}
}

func (b *singleFileBackend) openStream() (io.ReadCloser, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, err
	}
	dec, err := compression.NewReader(b.format.String(), f, b.codec)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return &singleFileStream{dec: dec, file: f}, nil
}

func (b *singleFileBackend) Next() (*RawEntry, error) {
	if b.done {
		return nil, io.EOF
	}
	b.done = true
	return &RawEntry{
		Name:           b.memberName,
		Size:           b.size,
		CompressedSize: SizeUnknown,
		Kind:           KindFile,
		ModTime:        b.modTime,
		UID:            -1,
		GID:            -1,
		Method:         b.format.String(),
		Handle:         b.path,
	}, nil
}

func (b *singleFileBackend) OpenEntry(e *RawEntry, password string) (io.ReadCloser, error) {
	return b.openStream()
}

func (b *singleFileBackend) Info() (*Info, error) {
	return &Info{Format: b.format}, nil
}

func (b *singleFileBackend) Close() error { return nil }

func (b *singleFileBackend) StreamingOnly() bool        { return false }
func (b *singleFileBackend) MembersListSupported() bool { return true }

func (b *singleFileBackend) TranslateError(err error) error {
	switch {
	case errors.Is(err, stdgzip.ErrHeader), errors.Is(err, stdgzip.ErrChecksum):
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return nil
}

// singleFileStream closes both the decompressor and the file beneath it.
type singleFileStream struct {
	dec  io.ReadCloser
	file *os.File
}

func (s *singleFileStream) Read(p []byte) (int, error) { return s.dec.Read(p) }

func (s *singleFileStream) Close() error {
	decErr := s.dec.Close()
	fileErr := s.file.Close()
	if decErr != nil {
		return decErr
	}
	return fileErr
}
