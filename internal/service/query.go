package service

import (
	"context"
	"time"

	"mediavault/internal/apperr"
	"mediavault/internal/database"
	"mediavault/internal/models"
	"mediavault/internal/query"
	"mediavault/internal/storage"
)

type QueryService struct {
	backend
}

func NewQueryService(db database.Driver, blobs storage.Driver, opts Options) *QueryService {
	return &QueryService{backend: newBackend(db, blobs, opts)}
}

func (s *QueryService) Find(ctx context.Context, account string, spec models.QuerySpec) ([]models.ImageRecord, error) {
	const op = "query images"

	canonical, paging, err := query.Build(account, spec)
	if err != nil {
		return nil, err
	}

	dbCtx, cancel := s.dbContext(ctx)
	defer cancel()

	records, err := s.db.Find(dbCtx, database.FromCanonical(canonical), database.Projection{Metadata: spec.ReturnMetadata}, paging)
	if err != nil {
		return nil, databaseError(op, err)
	}
	for i := range records {
		records[i].ID = ""
	}
	return records, nil
}

// Count is scoped by account only; query filters never narrow it.
func (s *QueryService) Count(ctx context.Context, account string) (int, error) {
	const op = "count images"

	if account == "" {
		return 0, apperr.Validation(op, "account required")
	}

	dbCtx, cancel := s.dbContext(ctx)
	defer cancel()

	n, err := s.db.Count(dbCtx, database.ByAccount(account))
	if err != nil {
		return 0, databaseError(op, err)
	}
	return n, nil
}

// LastModified returns the updated timestamp of one image, or of the most
// recently modified image in the account when identifier is empty. An empty
// account reports the current time.
func (s *QueryService) LastModified(ctx context.Context, account, identifier string) (time.Time, error) {
	const op = "last modified"

	if identifier != "" {
		rec, err := s.findRecord(ctx, op, account, identifier)
		if err != nil {
			return time.Time{}, err
		}
		return rec.Updated, nil
	}

	dbCtx, cancel := s.dbContext(ctx)
	defer cancel()

	latest, err := s.db.Find(dbCtx, database.ByAccount(account), database.Projection{}, models.Paging{Sort: models.SortUpdatedDesc, Limit: 1})
	if err != nil {
		return time.Time{}, databaseError(op, err)
	}
	if len(latest) == 0 {
		return s.now(), nil
	}
	return latest[0].Updated, nil
}
