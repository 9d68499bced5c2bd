package badgerdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/config"
	"mediavault/internal/database"
	"mediavault/internal/database/databasetest"
	"mediavault/internal/models"
)

func TestDriverContract(t *testing.T) {
	databasetest.Run(t, func(t *testing.T) database.Driver {
		d, err := Open(config.BadgerConfig{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = d.Close() })
		return d
	})
}

func TestRecordsSurviveReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")
	ctx := context.Background()

	d, err := Open(config.BadgerConfig{Dir: dir})
	require.NoError(t, err)
	rec := databasetest.Record("u1", "abc.png", 100)
	rec.Metadata = models.Metadata{"k": "v"}
	require.NoError(t, d.Insert(ctx, rec))
	require.NoError(t, d.Close())

	d, err = Open(config.BadgerConfig{Dir: dir})
	require.NoError(t, err)
	defer d.Close()

	got, err := d.FindOne(ctx, database.ByKey("u1", "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "v", got.Metadata["k"])
	assert.Equal(t, int64(100), got.Added.Unix())
}

func TestAccountPrefixDoesNotLeak(t *testing.T) {
	d, err := Open(config.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer d.Close()
	ctx := context.Background()

	require.NoError(t, d.Insert(ctx, databasetest.Record("u1", "a.png", 100)))
	require.NoError(t, d.Insert(ctx, databasetest.Record("u10", "b.png", 100)))

	n, err := d.Count(ctx, database.ByAccount("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
