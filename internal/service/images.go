package service

import (
	"context"
	"errors"

	"mediavault/internal/database"
	"mediavault/internal/events"
	"mediavault/internal/models"
	"mediavault/internal/storage"
)

type ImageService struct {
	backend
}

func NewImageService(db database.Driver, blobs storage.Driver, opts Options) *ImageService {
	return &ImageService{backend: newBackend(db, blobs, opts)}
}

func (s *ImageService) Record(ctx context.Context, account, identifier string) (models.ImageRecord, error) {
	rec, err := s.findRecord(ctx, "load image", account, identifier)
	if err != nil {
		return models.ImageRecord{}, err
	}
	rec.ID = ""
	return rec, nil
}

// Load returns the record together with the stored blob.
func (s *ImageService) Load(ctx context.Context, account, identifier string) (models.ImageRecord, []byte, error) {
	rec, err := s.Record(ctx, account, identifier)
	if err != nil {
		return models.ImageRecord{}, nil, err
	}
	data, err := s.loadBlob(ctx, "load image", account, identifier)
	if err != nil {
		return models.ImageRecord{}, nil, err
	}
	return rec, data, nil
}

// Delete removes the record first, then its blob. A blob that is already gone
// does not fail the delete.
func (s *ImageService) Delete(ctx context.Context, account, identifier string) error {
	const op = "delete image"
	if err := requireKey(op, account, identifier); err != nil {
		return err
	}

	dbCtx, cancel := s.dbContext(ctx)
	err := s.db.Remove(dbCtx, database.ByKey(account, identifier))
	cancel()
	if err != nil {
		return databaseError(op, err)
	}

	blobCtx, cancel := s.blobContext(ctx)
	err = s.blobs.Delete(blobCtx, storage.Key(account, identifier))
	cancel()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return blobError(op, err)
	}

	s.log.Info().
		Str("account", account).
		Str("image_identifier", identifier).
		Msg("image deleted")
	s.publish(ctx, events.ImageDeleted, account, identifier)
	return nil
}
