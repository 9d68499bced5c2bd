package service

import (
	"context"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/apperr"
	"mediavault/internal/models"
	"mediavault/internal/storage"
	"mediavault/internal/transform"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]models.ImageState
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]models.ImageState{}}
}

func (c *mapCache) Get(_ context.Context, key string) (models.ImageState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	return s, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, state models.ImageState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = state
	c.sets++
	return nil
}

func newRenderFixture(t *testing.T, renditions RenditionCache) (*fixture, *RenderService, string) {
	t.Helper()
	f := newFixture(t)
	content := pngBytes(t, 100, 100, color.NRGBA{G: 200, A: 255})
	identifier := Checksum(content) + ".png"
	_, err := f.uploads.Upload(context.Background(), "u1", identifier, content)
	require.NoError(t, err)

	opts := Options{Now: f.clock.Now, Logger: zerolog.Nop()}
	return f, NewRenderService(f.db, f.blobs, transform.Pipeline{MaxPixels: 1_000_000}, 90, renditions, opts), identifier
}

func TestRenderWithoutTransformationsReturnsOriginal(t *testing.T) {
	f, render, identifier := newRenderFixture(t, nil)

	out, err := render.Render(context.Background(), RenderRequest{Account: "u1", Identifier: identifier})
	require.NoError(t, err)

	_, blob, err := f.images.Load(context.Background(), "u1", identifier)
	require.NoError(t, err)
	assert.Equal(t, blob, out.Blob)
	assert.Equal(t, 100, out.Width)
	assert.Equal(t, "image/png", out.Mime)
	assert.False(t, out.Cached)
}

func TestRenderCrop(t *testing.T) {
	_, render, identifier := newRenderFixture(t, nil)

	out, err := render.Render(context.Background(), RenderRequest{
		Account:         "u1",
		Identifier:      identifier,
		Transformations: []string{"crop:x=0,y=0,width=50,height=50"},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, out.Width)
	assert.Equal(t, 50, out.Height)
	assert.NotEmpty(t, out.Blob)
	assert.Equal(t, 100, out.Record.Width)
}

func TestRenderExtensionConverts(t *testing.T) {
	_, render, identifier := newRenderFixture(t, nil)

	out, err := render.Render(context.Background(), RenderRequest{Account: "u1", Identifier: identifier, Extension: "jpg"})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.Mime)

	_, err = render.Render(context.Background(), RenderRequest{Account: "u1", Identifier: identifier, Extension: "svg"})
	assert.True(t, apperr.Is(err, apperr.KindTransformation))
	assert.Equal(t, apperr.ClassClient, apperr.ClassOf(err))
}

func TestRenderUsesCache(t *testing.T) {
	renditions := newMapCache()
	_, render, identifier := newRenderFixture(t, renditions)
	req := RenderRequest{Account: "u1", Identifier: identifier, Transformations: []string{"flipVertically"}}

	first, err := render.Render(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := render.Render(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Blob, second.Blob)
	assert.Equal(t, 1, renditions.sets)
}

func TestRenderFailures(t *testing.T) {
	f, render, identifier := newRenderFixture(t, newMapCache())
	ctx := context.Background()

	_, err := render.Render(ctx, RenderRequest{Account: "u1", Identifier: "missing.png"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = render.Render(ctx, RenderRequest{Account: "u1", Identifier: identifier, Transformations: []string{"explode"}})
	assert.True(t, apperr.Is(err, apperr.KindTransformation))
	assert.Equal(t, apperr.ClassClient, apperr.ClassOf(err))

	_, err = render.Render(ctx, RenderRequest{
		Account:         "u1",
		Identifier:      identifier,
		Transformations: []string{"flipVertically", "crop:x=500,y=500,width=10,height=10"},
	})
	assert.True(t, apperr.Is(err, apperr.KindTransformation))
	assert.Equal(t, apperr.ClassClient, apperr.ClassOf(err))

	require.NoError(t, f.images.Delete(ctx, "u1", identifier))
	_, err = render.Render(ctx, RenderRequest{Account: "u1", Identifier: identifier, Transformations: []string{"flipVertically"}})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

// gatedBlobs holds Get until release is closed or the context ends.
type gatedBlobs struct {
	storage.Driver
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	ctxErr error
}

func (g *gatedBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	g.mu.Lock()
	g.ctxErr = ctx.Err()
	g.mu.Unlock()
	return g.Driver.Get(ctx, key)
}

func TestRenderSharedWorkOutlivesCancelledCaller(t *testing.T) {
	f, _, identifier := newRenderFixture(t, nil)
	blobs := &gatedBlobs{Driver: f.blobs, entered: make(chan struct{}, 1), release: make(chan struct{})}
	renditions := newMapCache()
	render := NewRenderService(f.db, blobs, transform.Pipeline{MaxPixels: 1_000_000}, 90, renditions,
		Options{Now: f.clock.Now, Logger: zerolog.Nop()})
	req := RenderRequest{Account: "u1", Identifier: identifier, Transformations: []string{"flipVertically"}}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := render.Render(ctx, req)
		firstErr <- err
	}()
	select {
	case <-blobs.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("render never reached blob storage")
	}

	type result struct {
		out Rendition
		err error
	}
	second := make(chan result, 1)
	go func() {
		out, err := render.Render(context.Background(), req)
		second <- result{out, err}
	}()

	cancel()
	err := <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(blobs.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 100, res.out.Width)
	assert.NotEmpty(t, res.out.Blob)

	blobs.mu.Lock()
	assert.NoError(t, blobs.ctxErr)
	blobs.mu.Unlock()
	assert.Equal(t, 1, renditions.sets)
}
