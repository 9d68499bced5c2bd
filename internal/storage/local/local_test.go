package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/storage"
)

func newTestDriver(t *testing.T) (*Driver, string) {
	t.Helper()
	root := t.TempDir()
	d, err := New(root)
	require.NoError(t, err)
	return d, root
}

func TestPutAndGet(t *testing.T) {
	d, root := newTestDriver(t)
	ctx := context.Background()

	key := storage.Key("u1", "abc.png")
	require.NoError(t, d.Put(ctx, key, []byte("hello")))

	got, err := d.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	_, err = os.Stat(filepath.Join(root, "u1", "abc.png"))
	assert.NoError(t, err)
}

func TestPutOverwritesAndLeavesNoTempFiles(t *testing.T) {
	d, root := newTestDriver(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "u1/a", []byte("first")))
	require.NoError(t, d.Put(ctx, "u1/a", []byte("second")))

	got, err := d.Get(ctx, "u1/a")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Join(root, "u1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMissingBlob(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	_, err := d.Get(ctx, "u1/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, d.Delete(ctx, "u1/missing"), storage.ErrNotFound)
}

func TestDelete(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "u1/a", []byte("x")))
	require.NoError(t, d.Delete(ctx, "u1/a"))
	_, err := d.Get(ctx, "u1/a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKeyCannotEscapeRoot(t *testing.T) {
	d, _ := newTestDriver(t)
	ctx := context.Background()

	for _, key := range []string{"../outside", "u1/../../outside", ""} {
		assert.Error(t, d.Put(ctx, key, []byte("x")), key)
	}
}
