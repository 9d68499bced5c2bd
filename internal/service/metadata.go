package service

import (
	"context"

	"mediavault/internal/database"
	"mediavault/internal/events"
	"mediavault/internal/models"
	"mediavault/internal/storage"
)

type MetadataService struct {
	backend
}

func NewMetadataService(db database.Driver, blobs storage.Driver, opts Options) *MetadataService {
	return &MetadataService{backend: newBackend(db, blobs, opts)}
}

func (s *MetadataService) Get(ctx context.Context, account, identifier string) (models.Metadata, error) {
	rec, err := s.findRecord(ctx, "get metadata", account, identifier)
	if err != nil {
		return nil, err
	}
	if rec.Metadata == nil {
		return models.Metadata{}, nil
	}
	return rec.Metadata, nil
}

// Update shallow-merges patch into the stored metadata and advances updated.
func (s *MetadataService) Update(ctx context.Context, account, identifier string, patch models.Metadata) error {
	now := s.now()
	err := s.apply(ctx, "update metadata", account, identifier, database.Patch{Metadata: patch, Updated: &now})
	if err != nil {
		return err
	}
	s.publish(ctx, events.MetadataUpdated, account, identifier)
	return nil
}

// Replace swaps the whole mapping and advances updated.
func (s *MetadataService) Replace(ctx context.Context, account, identifier string, metadata models.Metadata) error {
	if metadata == nil {
		metadata = models.Metadata{}
	}
	now := s.now()
	err := s.apply(ctx, "replace metadata", account, identifier, database.Patch{Metadata: metadata, Replace: true, Updated: &now})
	if err != nil {
		return err
	}
	s.publish(ctx, events.MetadataUpdated, account, identifier)
	return nil
}

// Delete resets metadata to an empty mapping. updated is left as it was.
func (s *MetadataService) Delete(ctx context.Context, account, identifier string) error {
	err := s.apply(ctx, "delete metadata", account, identifier, database.Patch{Metadata: models.Metadata{}, Replace: true})
	if err != nil {
		return err
	}
	s.publish(ctx, events.MetadataDeleted, account, identifier)
	return nil
}

func (s *MetadataService) apply(ctx context.Context, op, account, identifier string, patch database.Patch) error {
	if err := requireKey(op, account, identifier); err != nil {
		return err
	}

	dbCtx, cancel := s.dbContext(ctx)
	defer cancel()

	if err := s.db.Update(dbCtx, database.ByKey(account, identifier), patch); err != nil {
		return databaseError(op, err)
	}
	return nil
}
