package arc

import (
	"archive/tar"
	stdgzip "compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarTestEntry struct {
	hdr     tar.Header
	content string
}

// writeTestTar builds a tar archive on disk, optionally gzip or zstd
// compressed depending on format.
func writeTestTar(t *testing.T, format Format, entries []tarTestEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test."+format.String())
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.WriteCloser
	switch format {
	case FormatTar:
		w = f
	case FormatTarGz:
		w = stdgzip.NewWriter(f)
	case FormatTarZstd:
		zw, err := zstd.NewWriter(f)
		require.NoError(t, err)
		w = zw
	default:
		t.Fatalf("unsupported test format %s", format)
	}

	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := e.hdr
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.content))
		}
		require.NoError(t, tw.WriteHeader(&hdr))
		if e.content != "" {
			_, err := tw.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	if w != io.WriteCloser(f) {
		require.NoError(t, w.Close())
	}
	return path
}

func tarFile(name, content string) tarTestEntry {
	return tarTestEntry{
		hdr:     tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644},
		content: content,
	}
}

func TestTarBackend(t *testing.T) {
	t.Parallel()

	entries := []tarTestEntry{
		{hdr: tar.Header{Name: "docs/", Typeflag: tar.TypeDir, Mode: 0o755}},
		tarFile("docs/a.txt", "aaa"),
		tarFile("b.txt", "bbb"),
		{hdr: tar.Header{Name: "link.txt", Typeflag: tar.TypeSymlink, Linkname: "b.txt"}},
		{hdr: tar.Header{Name: "hard.txt", Typeflag: tar.TypeLink, Linkname: "b.txt"}},
	}

	for _, format := range []Format{FormatTar, FormatTarGz, FormatTarZstd} {
		format := format
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()
			path := writeTestTar(t, format, entries)

			r, err := Open(path, format)
			require.NoError(t, err)
			defer r.Close()

			assert.False(t, r.HasRandomAccess())

			it, err := r.Iterate()
			require.NoError(t, err)
			defer it.Close()

			var names []string
			var kinds []Kind
			contents := make(map[string]string)
			for it.Next() {
				m := it.Member()
				names = append(names, m.Name)
				kinds = append(kinds, m.Kind)
				if f := it.File(); f != nil {
					data, err := io.ReadAll(f)
					require.NoError(t, err)
					contents[m.Name] = string(data)
				}
			}
			require.NoError(t, it.Err())

			assert.Equal(t, []string{"docs", "docs/a.txt", "b.txt", "link.txt", "hard.txt"}, names)
			assert.Equal(t, []Kind{KindDir, KindFile, KindFile, KindSymlink, KindHardlink}, kinds)
			assert.Equal(t, "aaa", contents["docs/a.txt"])
			assert.Equal(t, "bbb", contents["b.txt"])
		})
	}
}

func TestTarBackendMetadata(t *testing.T) {
	t.Parallel()

	mtime := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	path := writeTestTar(t, FormatTar, []tarTestEntry{
		{
			hdr: tar.Header{
				Name:     "owned.txt",
				Typeflag: tar.TypeReg,
				Mode:     0o640,
				Uid:      1000,
				Gid:      1000,
				Uname:    "alice",
				Gname:    "staff",
				ModTime:  mtime,
			},
			content: "data",
		},
	})

	r, err := Open(path, FormatTar)
	require.NoError(t, err)
	defer r.Close()

	it, err := r.Iterate()
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	m := it.Member()
	assert.Equal(t, int64(4), m.Size)
	assert.Equal(t, 1000, m.UID)
	assert.Equal(t, "alice", m.Uname)
	assert.Equal(t, "staff", m.Gname)
	assert.True(t, m.ModTime.Equal(mtime))
	assert.Equal(t, "tar", r.Format().String())
}

func TestTarBackendStreamPosition(t *testing.T) {
	t.Parallel()

	path := writeTestTar(t, FormatTar, []tarTestEntry{
		tarFile("a.txt", "aaa"),
		tarFile("b.txt", "bbb"),
	})

	r, err := Open(path, FormatTar)
	require.NoError(t, err)
	defer r.Close()

	t.Run("second pass is rejected", func(t *testing.T) {
		it, err := r.Iterate()
		require.NoError(t, err)
		for it.Next() {
		}
		require.NoError(t, it.Err())
		require.NoError(t, it.Close())

		_, err = r.Iterate()
		assert.ErrorIs(t, err, ErrIllegalState)
	})
}

func TestTarBackendExtract(t *testing.T) {
	t.Parallel()

	path := writeTestTar(t, FormatTarGz, []tarTestEntry{
		{hdr: tar.Header{Name: "docs/", Typeflag: tar.TypeDir, Mode: 0o755}},
		tarFile("docs/a.txt", "aaa"),
		{hdr: tar.Header{Name: "link.txt", Typeflag: tar.TypeSymlink, Linkname: "docs/a.txt"}},
	})

	r, err := Open(path, FormatTarGz)
	require.NoError(t, err)
	defer r.Close()

	dest := t.TempDir()
	res, err := r.ExtractAll(dest)
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Equal(t, "aaa", readExtracted(t, filepath.Join(dest, "docs", "a.txt")))

	target, err := os.Readlink(filepath.Join(dest, "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("docs/a.txt"), target)
}

func TestTarBackendCorrupted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.tar")
	require.NoError(t, os.WriteFile(path, []byte("this is not a tar header at all, nowhere near 512 bytes of it"), 0o644))

	r, err := Open(path, FormatTar)
	require.NoError(t, err) // tar cannot be validated before the first read
	defer r.Close()

	_, err = r.Members()
	require.Error(t, err)
}
