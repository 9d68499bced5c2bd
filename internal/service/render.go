package service

import (
	"context"

	"golang.org/x/sync/singleflight"

	"mediavault/internal/apperr"
	"mediavault/internal/cache"
	"mediavault/internal/database"
	"mediavault/internal/media/sniffer"
	"mediavault/internal/models"
	"mediavault/internal/storage"
	"mediavault/internal/transform"
)

type RenditionCache interface {
	Get(ctx context.Context, key string) (models.ImageState, bool, error)
	Set(ctx context.Context, key string, state models.ImageState) error
}

type RenderService struct {
	backend
	pipeline transform.Pipeline
	quality  int
	cache    RenditionCache
	group    singleflight.Group
}

// NewRenderService wires the pipeline. renditions may be nil to disable
// caching.
func NewRenderService(db database.Driver, blobs storage.Driver, pipeline transform.Pipeline, quality int, renditions RenditionCache, opts Options) *RenderService {
	return &RenderService{
		backend:  newBackend(db, blobs, opts),
		pipeline: pipeline,
		quality:  quality,
		cache:    renditions,
	}
}

type RenderRequest struct {
	Account         string
	Identifier      string
	Transformations []string
	// Extension requests an output format; empty keeps the stored one.
	Extension string
}

type Rendition struct {
	models.ImageState
	Record models.ImageRecord
	Cached bool
}

func (s *RenderService) Render(ctx context.Context, req RenderRequest) (Rendition, error) {
	const op = "render image"

	rec, err := s.findRecord(ctx, op, req.Account, req.Identifier)
	if err != nil {
		return Rendition{}, err
	}
	rec.ID = ""

	chain := append([]string(nil), req.Transformations...)
	if req.Extension != "" {
		target, ok := sniffer.ByExtension(req.Extension)
		if !ok {
			return Rendition{}, apperr.Transformation(op, "unsupported output type "+req.Extension, apperr.ClassClient, nil)
		}
		if target.Extension != rec.Extension {
			chain = append(chain, "convert:type="+target.Extension)
		}
	}

	ops, err := transform.Parse(chain, s.quality)
	if err != nil {
		return Rendition{}, err
	}

	if len(ops) == 0 {
		data, err := s.loadBlob(ctx, op, req.Account, req.Identifier)
		if err != nil {
			return Rendition{}, err
		}
		return Rendition{ImageState: stateOf(rec, data), Record: rec}, nil
	}

	key := cache.RenditionKey(req.Account, req.Identifier, chain, "")
	if state, ok := s.cached(ctx, key); ok {
		return Rendition{ImageState: state, Record: rec, Cached: true}, nil
	}

	// Identical concurrent renders share one decode and encode. The shared
	// work is detached from any single caller, each caller waits on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		data, err := s.loadBlob(shared, op, req.Account, req.Identifier)
		if err != nil {
			return nil, err
		}
		state, err := s.pipeline.Run(stateOf(rec, data), ops)
		if err != nil {
			return nil, err
		}
		s.store(shared, key, state)
		return state, nil
	})

	var v any
	select {
	case res := <-ch:
		if res.Err != nil {
			return Rendition{}, res.Err
		}
		v = res.Val
	case <-ctx.Done():
		return Rendition{}, apperr.StorageTransient(op, "render abandoned", ctx.Err())
	}
	return Rendition{ImageState: v.(models.ImageState), Record: rec}, nil
}

func stateOf(rec models.ImageRecord, data []byte) models.ImageState {
	return models.ImageState{
		Blob:      data,
		Width:     rec.Width,
		Height:    rec.Height,
		Mime:      rec.Mime,
		Extension: rec.Extension,
	}
}

func (s *RenderService) cached(ctx context.Context, key string) (models.ImageState, bool) {
	if s.cache == nil {
		return models.ImageState{}, false
	}
	state, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("rendition cache read failed")
		return models.ImageState{}, false
	}
	return state, ok
}

func (s *RenderService) store(ctx context.Context, key string, state models.ImageState) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, state); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("rendition cache write failed")
	}
}
