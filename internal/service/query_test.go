package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/apperr"
	"mediavault/internal/models"
)

func addedOf(records []models.ImageRecord) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.Added.Unix())
	}
	return out
}

func unix(ts int64) *time.Time {
	t := time.Unix(ts, 0)
	return &t
}

func TestFindSortsNewestFirst(t *testing.T) {
	f := newFixture(t)
	for i, ts := range []int64{100, 300, 200} {
		f.store(t, "u1", fmt.Sprintf("img%d.png", i), ts)
	}

	got, err := f.queries.Find(context.Background(), "u1", models.QuerySpec{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200, 100}, addedOf(got))
	for _, r := range got {
		assert.Empty(t, r.ID)
		assert.Nil(t, r.Metadata)
	}
}

func TestFindRangeIsExclusive(t *testing.T) {
	f := newFixture(t)
	for i, ts := range []int64{100, 150, 200, 300, 350, 400} {
		f.store(t, "u1", fmt.Sprintf("img%d.png", i), ts)
	}

	got, err := f.queries.Find(context.Background(), "u1", models.QuerySpec{From: unix(150), To: unix(350), Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200}, addedOf(got))
}

func TestFindPaging(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 25; i++ {
		f.store(t, "u1", fmt.Sprintf("img%02d.png", i), int64(i*10))
	}
	ctx := context.Background()

	page1, err := f.queries.Find(ctx, "u1", models.QuerySpec{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{250, 240, 230, 220, 210, 200, 190, 180, 170, 160}, addedOf(page1))

	page3, err := f.queries.Find(ctx, "u1", models.QuerySpec{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 40, 30, 20, 10}, addedOf(page3))
}

func TestFindMetadataPredicateAndProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store(t, "u1", "cat.png", 100)
	f.store(t, "u1", "dog.png", 200)
	require.NoError(t, f.metadata.Update(ctx, "u1", "cat.png", models.Metadata{"animal": "cat"}))
	require.NoError(t, f.metadata.Update(ctx, "u1", "dog.png", models.Metadata{"animal": "dog"}))

	got, err := f.queries.Find(ctx, "u1", models.QuerySpec{
		MetadataQuery:  models.Metadata{"animal": "cat"},
		Page:           1,
		PageSize:       10,
		ReturnMetadata: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "cat.png", got[0].Identifier)
	assert.Equal(t, models.Metadata{"animal": "cat"}, got[0].Metadata)
}

func TestFindValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, spec := range []models.QuerySpec{
		{Page: 0, PageSize: 10},
		{Page: 1, PageSize: 0},
	} {
		_, err := f.queries.Find(ctx, "u1", spec)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}
	_, err := f.queries.Find(ctx, "", models.QuerySpec{Page: 1, PageSize: 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCountIgnoresQueryFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, ts := range []int64{100, 150, 200, 300, 400} {
		f.store(t, "u1", fmt.Sprintf("img%d.png", i), ts)
	}
	f.store(t, "u2", "other.png", 100)

	narrowed, err := f.queries.Find(ctx, "u1", models.QuerySpec{From: unix(150), To: unix(350), Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, narrowed, 1)

	n, err := f.queries.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCountStorageFailure(t *testing.T) {
	f := newFixtureWith(t, failingDriver{err: context.DeadlineExceeded})

	_, err := f.queries.Count(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))
	assert.True(t, apperr.IsTransient(err))
}

func TestLastModified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(5000)
	empty, err := f.queries.LastModified(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), empty.Unix())

	f.store(t, "u1", "a.png", 100)
	f.store(t, "u1", "b.png", 200)
	f.clock.Set(700)
	require.NoError(t, f.metadata.Update(ctx, "u1", "a.png", models.Metadata{"x": 1}))

	one, err := f.queries.LastModified(ctx, "u1", "b.png")
	require.NoError(t, err)
	assert.Equal(t, int64(200), one.Unix())

	latest, err := f.queries.LastModified(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(700), latest.Unix())

	_, err = f.queries.LastModified(ctx, "u1", "missing.png")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
