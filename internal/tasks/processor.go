package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mediavault/internal/apperr"
	"mediavault/internal/events"
	"mediavault/internal/models"
	"mediavault/internal/service"
)

type RenditionInvalidator interface {
	Invalidate(ctx context.Context, account, identifier string) (int, error)
}

type ImageLoader interface {
	Load(ctx context.Context, account, identifier string) (models.ImageRecord, []byte, error)
}

type StreamTrimmer interface {
	XTrimMaxLenApprox(ctx context.Context, key string, maxLen, limit int64) *redis.IntCmd
}

type Options struct {
	Renditions RenditionInvalidator
	Images     ImageLoader
	Streams    StreamTrimmer
	Stream     string
	// RetainEvents is how many entries cleanup keeps on the stream.
	RetainEvents int64
}

// Processor reacts to image lifecycle events. Returning an error leaves the
// message pending so the consumer retries it later.
type Processor struct {
	logger zerolog.Logger
	opts   Options
}

func NewProcessor(logger zerolog.Logger, opts Options) *Processor {
	return &Processor{
		logger: logger,
		opts:   opts,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	e, err := events.FromValues(msg.Values)
	if err != nil {
		// A malformed entry will never decode; ack it.
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed event")
		return nil
	}

	switch e.Type {
	case events.ImageStored:
		return p.handleStored(ctx, e)
	case events.ImageDeleted:
		return p.handleDeleted(ctx, e)
	case events.MetadataUpdated, events.MetadataDeleted:
		p.logger.Debug().
			Str("event", string(e.Type)).
			Str("account", e.Account).
			Str("image_identifier", e.Identifier).
			Msg("metadata changed")
		return nil
	case events.Cleanup:
		return p.handleCleanup(ctx)
	default:
		p.logger.Warn().Str("type", string(e.Type)).Msg("unknown event type")
		return nil
	}
}

// handleStored re-reads the blob and checks it against the recorded checksum.
func (p *Processor) handleStored(ctx context.Context, e events.Event) error {
	if p.opts.Images == nil {
		return nil
	}

	rec, data, err := p.opts.Images.Load(ctx, e.Account, e.Identifier)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		p.logger.Debug().
			Str("account", e.Account).
			Str("image_identifier", e.Identifier).
			Msg("stored image already gone")
		return nil
	case err != nil:
		return fmt.Errorf("load image: %w", err)
	}

	if sum := service.Checksum(data); sum != rec.Checksum {
		p.logger.Error().
			Str("account", e.Account).
			Str("image_identifier", e.Identifier).
			Str("expected", rec.Checksum).
			Str("actual", sum).
			Msg("stored blob checksum mismatch")
	}
	return nil
}

func (p *Processor) handleDeleted(ctx context.Context, e events.Event) error {
	if p.opts.Renditions == nil {
		return nil
	}

	n, err := p.opts.Renditions.Invalidate(ctx, e.Account, e.Identifier)
	if err != nil {
		return fmt.Errorf("invalidate renditions: %w", err)
	}
	p.logger.Info().
		Str("account", e.Account).
		Str("image_identifier", e.Identifier).
		Int("renditions", n).
		Msg("renditions purged")
	return nil
}

func (p *Processor) handleCleanup(ctx context.Context) error {
	if p.opts.Streams == nil || p.opts.RetainEvents <= 0 {
		return nil
	}

	trimmed, err := p.opts.Streams.XTrimMaxLenApprox(ctx, p.opts.Stream, p.opts.RetainEvents, 0).Result()
	if err != nil {
		return fmt.Errorf("trim stream: %w", err)
	}
	p.logger.Info().Str("stream", p.opts.Stream).Int64("trimmed", trimmed).Msg("event stream trimmed")
	return nil
}
