package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "subdir")
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "var0.bin")
	f, err := lfs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("abc"), 2)
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	buf := make([]byte, 5)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 'a', 'b', 'c'}, buf)
	require.NoError(t, f.Close())

	data, err := lfs.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 5)

	require.NoError(t, lfs.Remove(path))
	_, err = lfs.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFaultyFS_WriteLimit(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("var1", Fault{FailAfterBytes: 4})
	dir := t.TempDir()

	f, err := ffs.OpenFile(filepath.Join(dir, "var1.bin"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("de"), 3)
	assert.ErrorIs(t, err, ErrInjected)
	require.NoError(t, f.Close())

	// Files without a rule are untouched.
	g, err := ffs.OpenFile(filepath.Join(dir, "var2.bin"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = g.WriteAt(make([]byte, 64), 0)
	require.NoError(t, err)
	require.NoError(t, g.Close())
}

func TestFaultyFS_SyncCloseRemove(t *testing.T) {
	boom := errors.New("boom")
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule("bad", Fault{FailAfterBytes: -1, FailOnSync: true, FailOnClose: true, FailOnRemove: true, Err: boom})
	path := filepath.Join(t.TempDir(), "bad.bin")

	f, err := ffs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), boom)
	assert.ErrorIs(t, f.Close(), boom)
	assert.ErrorIs(t, ffs.Remove(path), boom)

	ffs.ClearRules()
	require.NoError(t, ffs.Remove(path))
}
