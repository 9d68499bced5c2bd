package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/storage"
)

func TestPutGetDelete(t *testing.T) {
	d := New()
	ctx := context.Background()

	data := []byte("pixels")
	require.NoError(t, d.Put(ctx, "u1/abc.png", data))
	data[0] = 'X'

	got, err := d.Get(ctx, "u1/abc.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), got)

	require.NoError(t, d.Delete(ctx, "u1/abc.png"))
	_, err = d.Get(ctx, "u1/abc.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, d.Delete(ctx, "u1/abc.png"), storage.ErrNotFound)
}

func TestCanceledContext(t *testing.T) {
	d := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, d.Put(ctx, "k", []byte("v")), context.Canceled)
	assert.Equal(t, 0, d.Len())
}
