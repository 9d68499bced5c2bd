package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mediavault/internal/database"
	dbmemory "mediavault/internal/database/memory"
	"mediavault/internal/events"
	"mediavault/internal/models"
	blobmemory "mediavault/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(unix int64) *fakeClock {
	return &fakeClock{now: time.Unix(unix, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(unix, 0).UTC()
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db       *dbmemory.Driver
	blobs    *blobmemory.Driver
	clock    *fakeClock
	events   *recorder
	uploads  *UploadService
	metadata *MetadataService
	queries  *QueryService
	images   *ImageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, dbmemory.New())
}

func newFixtureWith(t *testing.T, db database.Driver) *fixture {
	t.Helper()
	f := &fixture{
		blobs:  blobmemory.New(),
		clock:  newClock(1000),
		events: &recorder{},
	}
	if mem, ok := db.(*dbmemory.Driver); ok {
		f.db = mem
	}
	opts := Options{
		DatabaseTimeout: time.Second,
		StorageTimeout:  time.Second,
		Now:             f.clock.Now,
		Events:          f.events,
		Logger:          zerolog.Nop(),
	}
	f.uploads = NewUploadService(db, f.blobs, opts)
	f.metadata = NewMetadataService(db, f.blobs, opts)
	f.queries = NewQueryService(db, f.blobs, opts)
	f.images = NewImageService(db, f.blobs, opts)
	return f
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// store puts a record with the given added time through the guard.
func (f *fixture) store(t *testing.T, account, identifier string, added int64) models.ImageRecord {
	t.Helper()
	f.clock.Set(added)
	rec, err := f.uploads.StoreImage(context.Background(), account, identifier, []byte("blob-"+identifier),
		models.DerivedFields{Width: 10, Height: 10, Mime: "image/png", Extension: "png"})
	require.NoError(t, err)
	return rec
}

// slowDriver blocks FindOne until the context gives up.
type slowDriver struct {
	database.Driver
}

func (slowDriver) FindOne(ctx context.Context, _ database.Filter) (models.ImageRecord, error) {
	<-ctx.Done()
	return models.ImageRecord{}, ctx.Err()
}

// blindDriver hides existing records from FindOne, as if a concurrent writer
// slipped in between the lookup and the insert.
type blindDriver struct {
	database.Driver
}

func (blindDriver) FindOne(context.Context, database.Filter) (models.ImageRecord, error) {
	return models.ImageRecord{}, database.ErrNotFound
}

type failingDriver struct {
	database.Driver
	err error
}

func (d failingDriver) Update(context.Context, database.Filter, database.Patch) error {
	return d.err
}

func (d failingDriver) Count(context.Context, database.Filter) (int, error) {
	return 0, d.err
}

var errBoom = errors.New("boom")
