package arc

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestZip builds a zip archive on disk with files, a directory and a
// symlink.
func writeTestZip(t *testing.T, files map[string]string, symlinks map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	for name, target := range symlinks {
		hdr := &zip.FileHeader{Name: name, Method: zip.Store}
		hdr.SetMode(fs.ModeSymlink | 0o777)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(target))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestZipBackend(t *testing.T) {
	t.Parallel()

	t.Run("lists and reads members", func(t *testing.T) {
		t.Parallel()
		path := writeTestZip(t, map[string]string{
			"a.txt":      "hello zip",
			"docs/b.txt": "nested",
		}, nil)

		r, err := Open(path, FormatZip)
		require.NoError(t, err)
		defer r.Close()

		assert.True(t, r.HasRandomAccess())

		members, err := r.Members()
		require.NoError(t, err)
		require.Len(t, members, 2)

		f, err := r.OpenMember("a.txt")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "hello zip", string(data))
	})

	t.Run("member metadata", func(t *testing.T) {
		t.Parallel()
		path := writeTestZip(t, map[string]string{"a.txt": "hello zip"}, nil)

		r, err := Open(path, FormatZip)
		require.NoError(t, err)
		defer r.Close()

		m, err := r.Member("a.txt")
		require.NoError(t, err)
		assert.Equal(t, KindFile, m.Kind)
		assert.Equal(t, int64(len("hello zip")), m.Size)
		assert.True(t, m.HasCRC32)
		assert.Equal(t, "deflate", m.Method)
		assert.False(t, m.Encrypted)
	})

	t.Run("symlink target comes from the entry content", func(t *testing.T) {
		t.Parallel()
		path := writeTestZip(t,
			map[string]string{"real.txt": "payload"},
			map[string]string{"link.txt": "real.txt"},
		)

		r, err := Open(path, FormatZip)
		require.NoError(t, err)
		defer r.Close()

		m, err := r.Member("link.txt")
		require.NoError(t, err)
		assert.Equal(t, KindSymlink, m.Kind)
		assert.Equal(t, "real.txt", m.LinkTarget)

		target, err := r.ResolveLink(m)
		require.NoError(t, err)
		require.NotNil(t, target)
		assert.Equal(t, "real.txt", target.Name)

		// Opening the link reads the target's content.
		f, err := r.OpenMember("link.txt")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("iterates repeatedly", func(t *testing.T) {
		t.Parallel()
		path := writeTestZip(t, map[string]string{"a.txt": "x", "b.txt": "y"}, nil)

		r, err := Open(path, FormatZip)
		require.NoError(t, err)
		defer r.Close()

		for pass := 0; pass < 2; pass++ {
			it, err := r.Iterate()
			require.NoError(t, err)
			count := 0
			for it.Next() {
				count++
			}
			require.NoError(t, it.Err())
			require.NoError(t, it.Close())
			assert.Equal(t, 2, count)
		}
	})

	t.Run("extracts to disk", func(t *testing.T) {
		t.Parallel()
		path := writeTestZip(t, map[string]string{
			"a.txt":      "hello zip",
			"docs/b.txt": "nested",
		}, nil)

		r, err := Open(path, FormatZip)
		require.NoError(t, err)
		defer r.Close()

		dest := t.TempDir()
		res, err := r.ExtractAll(dest)
		require.NoError(t, err)
		assert.Empty(t, res.Failed)
		assert.Equal(t, "hello zip", readExtracted(t, filepath.Join(dest, "a.txt")))
		assert.Equal(t, "nested", readExtracted(t, filepath.Join(dest, "docs", "b.txt")))
	})

	t.Run("not a zip file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "garbage.zip")
		require.NoError(t, os.WriteFile(path, []byte("not a zip archive at all"), 0o644))

		_, err := Open(path, FormatZip)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated archive", func(t *testing.T) {
		t.Parallel()
		full := writeTestZip(t, map[string]string{"a.txt": "hello zip"}, nil)
		data, err := os.ReadFile(full)
		require.NoError(t, err)
		cut := filepath.Join(t.TempDir(), "cut.zip")
		require.NoError(t, os.WriteFile(cut, data[:len(data)/2], 0o644))

		_, err = Open(cut, FormatZip)
		require.Error(t, err)
	})
}
