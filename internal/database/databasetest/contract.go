// Package databasetest holds the behaviour every database.Driver must show.
// Driver packages call Run from their own tests.
package databasetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/database"
	"mediavault/internal/models"
)

type Factory func(t *testing.T) database.Driver

func Record(account, identifier string, added int64) models.ImageRecord {
	return models.ImageRecord{
		Account:    account,
		Identifier: identifier,
		Checksum:   "d41d8cd98f00b204e9800998ecf8427e",
		Size:       1024,
		Width:      100,
		Height:     80,
		Mime:       "image/png",
		Extension:  "png",
		Metadata:   models.Metadata{},
		Added:      time.Unix(added, 0).UTC(),
		Updated:    time.Unix(added, 0).UTC(),
	}
}

func Run(t *testing.T, newDriver Factory) {
	t.Run("InsertFindOne", func(t *testing.T) { testInsertFindOne(t, newDriver(t)) })
	t.Run("DuplicateInsert", func(t *testing.T) { testDuplicateInsert(t, newDriver(t)) })
	t.Run("ConcurrentDuplicateInsert", func(t *testing.T) { testConcurrentDuplicateInsert(t, newDriver(t)) })
	t.Run("UpdateMergesMetadata", func(t *testing.T) { testUpdateMerge(t, newDriver(t)) })
	t.Run("UpdateReplaceKeepsUpdated", func(t *testing.T) { testUpdateReplace(t, newDriver(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newDriver(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newDriver(t)) })
	t.Run("IncompleteKey", func(t *testing.T) { testIncompleteKey(t, newDriver(t)) })
	t.Run("FindSortsNewestFirst", func(t *testing.T) { testSort(t, newDriver(t)) })
	t.Run("FindSortsByUpdated", func(t *testing.T) { testSortUpdated(t, newDriver(t)) })
	t.Run("FindRangeIsExclusive", func(t *testing.T) { testRange(t, newDriver(t)) })
	t.Run("FindPaging", func(t *testing.T) { testPaging(t, newDriver(t)) })
	t.Run("FindMetadataPredicate", func(t *testing.T) { testMetadataPredicate(t, newDriver(t)) })
	t.Run("FindProjection", func(t *testing.T) { testProjection(t, newDriver(t)) })
	t.Run("CountByAccount", func(t *testing.T) { testCount(t, newDriver(t)) })
}

func testInsertFindOne(t *testing.T, d database.Driver) {
	ctx := context.Background()
	rec := Record("u1", "abc.png", 100)
	rec.Metadata = models.Metadata{"title": "cat"}
	require.NoError(t, d.Insert(ctx, rec))

	got, err := d.FindOne(ctx, database.ByKey("u1", "abc.png"))
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, rec.Checksum, got.Checksum)
	assert.Equal(t, rec.Size, got.Size)
	assert.Equal(t, 100, got.Width)
	assert.Equal(t, 80, got.Height)
	assert.Equal(t, "image/png", got.Mime)
	assert.Equal(t, "png", got.Extension)
	assert.Equal(t, int64(100), got.Added.Unix())
	assert.Equal(t, "cat", got.Metadata["title"])

	_, err = d.FindOne(ctx, database.ByKey("u2", "abc.png"))
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func testDuplicateInsert(t *testing.T, d database.Driver) {
	ctx := context.Background()
	first := Record("u1", "abc.png", 100)
	require.NoError(t, d.Insert(ctx, first))

	second := Record("u1", "abc.png", 200)
	second.Size = 1
	assert.ErrorIs(t, d.Insert(ctx, second), database.ErrDuplicateKey)

	got, err := d.FindOne(ctx, database.ByKey("u1", "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, int64(1024), got.Size)
	assert.Equal(t, int64(100), got.Added.Unix())

	require.NoError(t, d.Insert(ctx, Record("u2", "abc.png", 100)), "same identifier under another account")
}

func testConcurrentDuplicateInsert(t *testing.T, d database.Driver) {
	ctx := context.Background()
	const workers = 8

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, dupes  int
		unexpected []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := d.Insert(ctx, Record("u1", "race.png", int64(100+i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, database.ErrDuplicateKey):
				dupes++
			default:
				unexpected = append(unexpected, err)
			}
		}(i)
	}
	wg.Wait()

	// A driver may surface contention as a transient error, but never as a
	// second successful insert.
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers, ok+dupes+len(unexpected))

	n, err := d.Count(ctx, database.ByAccount("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testUpdateMerge(t *testing.T, d database.Driver) {
	ctx := context.Background()
	rec := Record("u1", "abc.png", 100)
	rec.Metadata = models.Metadata{"a": 1, "b": 2}
	require.NoError(t, d.Insert(ctx, rec))

	now := time.Unix(500, 0)
	require.NoError(t, d.Update(ctx, database.ByKey("u1", "abc.png"), database.Patch{
		Metadata: models.Metadata{"b": 3, "c": 4},
		Updated:  &now,
	}))

	got, err := d.FindOne(ctx, database.ByKey("u1", "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "1", fmt.Sprint(got.Metadata["a"]))
	assert.Equal(t, "3", fmt.Sprint(got.Metadata["b"]))
	assert.Equal(t, "4", fmt.Sprint(got.Metadata["c"]))
	assert.Len(t, got.Metadata, 3)
	assert.Equal(t, int64(500), got.Updated.Unix())
	assert.Equal(t, int64(100), got.Added.Unix())
}

func testUpdateReplace(t *testing.T, d database.Driver) {
	ctx := context.Background()
	rec := Record("u1", "abc.png", 100)
	rec.Metadata = models.Metadata{"a": 1}
	require.NoError(t, d.Insert(ctx, rec))

	require.NoError(t, d.Update(ctx, database.ByKey("u1", "abc.png"), database.Patch{
		Metadata: models.Metadata{},
		Replace:  true,
	}))

	got, err := d.FindOne(ctx, database.ByKey("u1", "abc.png"))
	require.NoError(t, err)
	assert.Empty(t, got.Metadata)
	assert.Equal(t, int64(100), got.Updated.Unix())
}

func testUpdateMissing(t *testing.T, d database.Driver) {
	err := d.Update(context.Background(), database.ByKey("u1", "missing.png"), database.Patch{Metadata: models.Metadata{"a": 1}})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func testRemove(t *testing.T, d database.Driver) {
	ctx := context.Background()
	require.NoError(t, d.Insert(ctx, Record("u1", "abc.png", 100)))

	require.NoError(t, d.Remove(ctx, database.ByKey("u1", "abc.png")))
	_, err := d.FindOne(ctx, database.ByKey("u1", "abc.png"))
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.ErrorIs(t, d.Remove(ctx, database.ByKey("u1", "abc.png")), database.ErrNotFound)
}

func testIncompleteKey(t *testing.T, d database.Driver) {
	ctx := context.Background()
	require.NoError(t, d.Insert(ctx, Record("u1", "abc.png", 100)))

	for _, filter := range []database.Filter{
		database.ByAccount("u1"),
		database.ByKey("", "abc.png"),
		{},
	} {
		_, err := d.FindOne(ctx, filter)
		assert.ErrorIs(t, err, database.ErrIncompleteKey)
		err = d.Update(ctx, filter, database.Patch{Metadata: models.Metadata{"x": 1}})
		assert.ErrorIs(t, err, database.ErrIncompleteKey)
		assert.ErrorIs(t, d.Remove(ctx, filter), database.ErrIncompleteKey)
	}

	rec, err := d.FindOne(ctx, database.ByKey("u1", "abc.png"))
	require.NoError(t, err)
	assert.Empty(t, rec.Metadata)
	n, err := d.Count(ctx, database.ByAccount("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func added(records []models.ImageRecord) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.Added.Unix())
	}
	return out
}

func testSort(t *testing.T, d database.Driver) {
	ctx := context.Background()
	for i, ts := range []int64{100, 300, 200} {
		require.NoError(t, d.Insert(ctx, Record("u1", fmt.Sprintf("img%d.png", i), ts)))
	}

	got, err := d.Find(ctx, database.ByAccount("u1"), database.Projection{}, models.Paging{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200, 100}, added(got))
}

func testSortUpdated(t *testing.T, d database.Driver) {
	ctx := context.Background()
	for i, ts := range []int64{100, 200, 300} {
		require.NoError(t, d.Insert(ctx, Record("u1", fmt.Sprintf("img%d.png", i), ts)))
	}
	touched := time.Unix(900, 0)
	require.NoError(t, d.Update(ctx, database.ByKey("u1", "img0.png"), database.Patch{Updated: &touched}))

	got, err := d.Find(ctx, database.ByAccount("u1"), database.Projection{}, models.Paging{Sort: models.SortUpdatedDesc, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "img0.png", got[0].Identifier)
	assert.Equal(t, int64(900), got[0].Updated.Unix())
}

func testRange(t *testing.T, d database.Driver) {
	ctx := context.Background()
	for i, ts := range []int64{100, 150, 200, 300, 350, 400} {
		require.NoError(t, d.Insert(ctx, Record("u1", fmt.Sprintf("img%d.png", i), ts)))
	}

	from, to := time.Unix(150, 0), time.Unix(350, 0)
	got, err := d.Find(ctx, database.Filter{Account: "u1", AddedAfter: &from, AddedBefore: &to}, database.Projection{}, models.Paging{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200}, added(got))

	got, err = d.Find(ctx, database.Filter{Account: "u1", AddedAfter: &to}, database.Projection{}, models.Paging{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{400}, added(got))
}

func testPaging(t *testing.T, d database.Driver) {
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		require.NoError(t, d.Insert(ctx, Record("u1", fmt.Sprintf("img%02d.png", i), int64(i*10))))
	}

	page3, err := d.Find(ctx, database.ByAccount("u1"), database.Projection{}, models.Paging{Limit: 10, Skip: 20})
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 40, 30, 20, 10}, added(page3))

	beyond, err := d.Find(ctx, database.ByAccount("u1"), database.Projection{}, models.Paging{Limit: 10, Skip: 30})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func testMetadataPredicate(t *testing.T, d database.Driver) {
	ctx := context.Background()
	cat := Record("u1", "cat.png", 100)
	cat.Metadata = models.Metadata{"animal": "cat", "legs": 4}
	bird := Record("u1", "bird.png", 200)
	bird.Metadata = models.Metadata{"animal": "bird", "legs": 2}
	other := Record("u2", "cat.png", 300)
	other.Metadata = models.Metadata{"animal": "cat"}
	for _, r := range []models.ImageRecord{cat, bird, other} {
		require.NoError(t, d.Insert(ctx, r))
	}

	got, err := d.Find(ctx, database.Filter{Account: "u1", Metadata: models.Metadata{"animal": "cat"}}, database.Projection{}, models.Paging{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "cat.png", got[0].Identifier)

	got, err = d.Find(ctx, database.Filter{Account: "u1", Metadata: models.Metadata{"legs": float64(2)}}, database.Projection{}, models.Paging{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bird.png", got[0].Identifier)

	got, err = d.Find(ctx, database.Filter{Account: "u1", Metadata: models.Metadata{"animal": "dog"}}, database.Projection{}, models.Paging{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testProjection(t *testing.T, d database.Driver) {
	ctx := context.Background()
	rec := Record("u1", "abc.png", 100)
	rec.Metadata = models.Metadata{"k": "v"}
	require.NoError(t, d.Insert(ctx, rec))

	without, err := d.Find(ctx, database.ByAccount("u1"), database.Projection{}, models.Paging{Limit: 10})
	require.NoError(t, err)
	require.Len(t, without, 1)
	assert.Empty(t, without[0].ID)
	assert.Nil(t, without[0].Metadata)
	assert.Equal(t, "abc.png", without[0].Identifier)

	with, err := d.Find(ctx, database.ByAccount("u1"), database.Projection{Metadata: true}, models.Paging{Limit: 10})
	require.NoError(t, err)
	require.Len(t, with, 1)
	assert.Empty(t, with[0].ID)
	assert.Equal(t, "v", with[0].Metadata["k"])
}

func testCount(t *testing.T, d database.Driver) {
	ctx := context.Background()
	for i, ts := range []int64{100, 200, 300} {
		require.NoError(t, d.Insert(ctx, Record("u1", fmt.Sprintf("img%d.png", i), ts)))
	}
	require.NoError(t, d.Insert(ctx, Record("u2", "img.png", 100)))

	n, err := d.Count(ctx, database.ByAccount("u1"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = d.Count(ctx, database.ByAccount("nobody"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
