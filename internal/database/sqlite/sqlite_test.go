package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/database"
	"mediavault/internal/database/databasetest"
	"mediavault/internal/models"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "images.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDriverContract(t *testing.T) {
	databasetest.Run(t, func(t *testing.T) database.Driver {
		return newTestDriver(t)
	})
}

func TestWhereClauseBuildsExclusiveBounds(t *testing.T) {
	from := databasetest.Record("u1", "x", 150).Added
	to := databasetest.Record("u1", "x", 350).Added

	where, args := whereClause(database.Filter{Account: "u1", AddedAfter: &from, AddedBefore: &to})
	assert.Equal(t, " WHERE account = ? AND added > ? AND added < ?", where)
	assert.Equal(t, []any{"u1", int64(150), int64(350)}, args)
}

func TestNestedMetadataPredicate(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	rec := databasetest.Record("u1", "abc.png", 100)
	rec.Metadata = models.Metadata{"nested": map[string]any{"a": 1}}
	require.NoError(t, d.Insert(ctx, rec))

	got, err := d.Find(ctx, database.Filter{Account: "u1", Metadata: models.Metadata{"nested": map[string]any{"a": 1}}}, database.Projection{}, models.Paging{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInMemory(t *testing.T) {
	d, err := Open(":memory:")
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Insert(context.Background(), databasetest.Record("u1", "abc.png", 100)))
	n, err := d.Count(context.Background(), database.ByAccount("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
