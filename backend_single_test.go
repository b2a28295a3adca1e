package arc

import (
	stdgzip "compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGzipFile(t *testing.T, path, innerName, content string, modTime time.Time) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := stdgzip.NewWriter(f)
	zw.Name = innerName
	zw.ModTime = modTime
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestSingleFileBackendGzip(t *testing.T) {
	t.Parallel()

	t.Run("member name and mtime from the gzip header", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "archive.gz")
		mtime := time.Date(2022, 7, 8, 9, 10, 11, 0, time.UTC)
		writeGzipFile(t, path, "report.csv", "col1,col2\n1,2\n", mtime)

		r, err := Open(path, FormatGzip)
		require.NoError(t, err)
		defer r.Close()

		members, err := r.Members()
		require.NoError(t, err)
		require.Len(t, members, 1)
		m := members[0]
		assert.Equal(t, "report.csv", m.Name)
		assert.Equal(t, KindFile, m.Kind)
		assert.True(t, m.ModTime.Equal(mtime))

		f, err := r.OpenMember(m)
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "col1,col2\n1,2\n", string(data))
	})

	t.Run("member name falls back to the stripped filename", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "notes.txt.gz")
		writeGzipFile(t, path, "", "some notes", time.Time{})

		r, err := Open(path, FormatGzip)
		require.NoError(t, err)
		defer r.Close()

		m, err := r.Member("notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", m.Name)
	})

	t.Run("random access reopens the stream", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "data.gz")
		writeGzipFile(t, path, "data", "repeatable", time.Time{})

		r, err := Open(path, FormatGzip)
		require.NoError(t, err)
		defer r.Close()
		assert.True(t, r.HasRandomAccess())

		for i := 0; i < 2; i++ {
			f, err := r.OpenMember("data")
			require.NoError(t, err)
			data, err := io.ReadAll(f)
			require.NoError(t, err)
			require.NoError(t, f.Close())
			assert.Equal(t, "repeatable", string(data))
		}
	})

	t.Run("garbage input fails at open", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.gz")
		require.NoError(t, os.WriteFile(path, []byte("plainly not gzip"), 0o644))

		_, err := Open(path, FormatGzip)
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestSingleFileBackendZstd(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.bin.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = zw.Write([]byte("zstd payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	r, err := Open(path, FormatZstd)
	require.NoError(t, err)
	defer r.Close()

	m, err := r.Member("payload.bin")
	require.NoError(t, err)
	assert.Equal(t, "zst", m.Method)

	mf, err := r.OpenMember(m)
	require.NoError(t, err)
	defer mf.Close()
	data, err := io.ReadAll(mf)
	require.NoError(t, err)
	assert.Equal(t, "zstd payload", string(data))
}

func TestSingleFileBackendLz4(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.bin.lz4")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := lz4.NewWriter(f)
	_, err = zw.Write([]byte("lz4 payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	r, err := Open(path, FormatLz4)
	require.NoError(t, err)
	defer r.Close()

	mf, err := r.OpenMember("payload.bin")
	require.NoError(t, err)
	defer mf.Close()
	data, err := io.ReadAll(mf)
	require.NoError(t, err)
	assert.Equal(t, "lz4 payload", string(data))
}

func TestSingleFileBackendExtract(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doc.txt.gz")
	writeGzipFile(t, path, "", "extract me", time.Time{})

	r, err := Open(path, FormatGzip)
	require.NoError(t, err)
	defer r.Close()

	dest := t.TempDir()
	res, err := r.ExtractAll(dest)
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Equal(t, "extract me", readExtracted(t, filepath.Join(dest, "doc.txt")))
}
