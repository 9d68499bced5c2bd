package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/apperr"
	"mediavault/internal/events"
	"mediavault/internal/models"
	"mediavault/internal/storage"
)

func TestLoad(t *testing.T) {
	f := newFixture(t)
	f.store(t, "u1", "abc.png", 100)

	rec, blob, err := f.images.Load(context.Background(), "u1", "abc.png")
	require.NoError(t, err)
	assert.Equal(t, "abc.png", rec.Identifier)
	assert.Empty(t, rec.ID)
	assert.Equal(t, []byte("blob-abc.png"), blob)
}

func TestDeleteRemovesRecordAndBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store(t, "u1", "abc.png", 100)

	require.NoError(t, f.images.Delete(ctx, "u1", "abc.png"))

	_, err := f.metadata.Get(ctx, "u1", "abc.png")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = f.images.Load(ctx, "u1", "abc.png")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.blobs.Get(ctx, storage.Key("u1", "abc.png"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Equal(t, []events.Type{events.ImageStored, events.ImageDeleted}, f.events.types())
}

func TestDeleteMissing(t *testing.T) {
	f := newFixture(t)
	err := f.images.Delete(context.Background(), "u1", "missing.png")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteToleratesMissingBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store(t, "u1", "abc.png", 100)
	require.NoError(t, f.blobs.Delete(ctx, storage.Key("u1", "abc.png")))

	require.NoError(t, f.images.Delete(ctx, "u1", "abc.png"))
	_, err := f.images.Record(ctx, "u1", "abc.png")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLoadMissingBlobIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store(t, "u1", "abc.png", 100)
	require.NoError(t, f.blobs.Delete(ctx, storage.Key("u1", "abc.png")))

	_, _, err := f.images.Load(ctx, "u1", "abc.png")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestBlankKeyNeverTouchesOtherImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store(t, "u1", "abc.png", 100)

	_, err := f.metadata.Get(ctx, "u1", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.images.Record(ctx, "", "abc.png")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = f.metadata.Update(ctx, "u1", "", models.Metadata{"x": 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	err = f.metadata.Replace(ctx, "u1", " ", models.Metadata{"x": 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	err = f.metadata.Delete(ctx, "", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = f.images.Delete(ctx, "u1", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	err = f.images.Delete(ctx, "", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	md, err := f.metadata.Get(ctx, "u1", "abc.png")
	require.NoError(t, err)
	assert.Empty(t, md)

	n, err := f.queries.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.blobs.Len())
	assert.Equal(t, []events.Type{events.ImageStored}, f.events.types())
}
