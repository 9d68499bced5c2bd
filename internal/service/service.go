package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mediavault/internal/apperr"
	"mediavault/internal/database"
	"mediavault/internal/events"
	"mediavault/internal/models"
	"mediavault/internal/storage"
)

type Options struct {
	// DatabaseTimeout and StorageTimeout bound every driver call on top of
	// the caller's own deadline. Zero leaves the caller's deadline alone.
	DatabaseTimeout time.Duration
	StorageTimeout  time.Duration
	Now             func() time.Time
	Events          events.Publisher
	Logger          zerolog.Logger
}

type backend struct {
	db     database.Driver
	blobs  storage.Driver
	opts   Options
	log    zerolog.Logger
	events events.Publisher
}

func newBackend(db database.Driver, blobs storage.Driver, opts Options) backend {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	publisher := opts.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	return backend{
		db:     db,
		blobs:  blobs,
		opts:   opts,
		log:    opts.Logger,
		events: publisher,
	}
}

func (b backend) now() time.Time {
	return b.opts.Now().UTC().Truncate(time.Second)
}

func (b backend) dbContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, b.opts.DatabaseTimeout)
}

func (b backend) blobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, b.opts.StorageTimeout)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// requireKey rejects a blank account or identifier before it reaches a driver,
// where an empty filter field would match every record.
func requireKey(op, account, identifier string) error {
	if strings.TrimSpace(account) == "" {
		return apperr.Validation(op, "account required")
	}
	if strings.TrimSpace(identifier) == "" {
		return apperr.Validation(op, "image identifier required")
	}
	return nil
}

func (b backend) findRecord(ctx context.Context, op, account, identifier string) (models.ImageRecord, error) {
	if err := requireKey(op, account, identifier); err != nil {
		return models.ImageRecord{}, err
	}

	dbCtx, cancel := b.dbContext(ctx)
	defer cancel()

	rec, err := b.db.FindOne(dbCtx, database.ByKey(account, identifier))
	if err != nil {
		return models.ImageRecord{}, databaseError(op, err)
	}
	return rec, nil
}

func (b backend) loadBlob(ctx context.Context, op, account, identifier string) ([]byte, error) {
	blobCtx, cancel := b.blobContext(ctx)
	defer cancel()

	data, err := b.blobs.Get(blobCtx, storage.Key(account, identifier))
	if err != nil {
		return nil, blobError(op, err)
	}
	return data, nil
}

// publish never fails the caller. It runs detached from ctx so a request that
// has just finished still gets its event out.
func (b backend) publish(ctx context.Context, typ events.Type, account, identifier string) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	e := events.Event{Type: typ, Account: account, Identifier: identifier, At: b.now()}
	if err := b.events.Publish(pubCtx, e); err != nil {
		b.log.Warn().
			Err(err).
			Str("event", string(typ)).
			Str("account", account).
			Str("image_identifier", identifier).
			Msg("publish event failed")
	}
}

func databaseError(op string, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return apperr.NotFound(op, "image not found")
	case errors.Is(err, database.ErrDuplicateKey):
		return apperr.Duplicate(op, "image already exists")
	case errors.Is(err, database.ErrIncompleteKey):
		return apperr.Validation(op, "account and image identifier required")
	}
	return apperr.Storage(op, "database request failed", err)
}

func blobError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(op, "image not found")
	}
	return apperr.Storage(op, "blob storage request failed", err)
}
