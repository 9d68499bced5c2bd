package database

import (
	"context"
	"errors"
	"time"

	"mediavault/internal/models"
)

var (
	// ErrDuplicateKey is returned by Insert when (account, identifier) is
	// already taken. Drivers must enforce this atomically.
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrNotFound      = errors.New("record not found")
	// ErrIncompleteKey is returned by FindOne, Update and Remove when the
	// filter does not name both account and identifier.
	ErrIncompleteKey = errors.New("filter requires account and identifier")
)

// Filter selects records. Zero fields do not constrain the match; bounds on
// added are exclusive.
type Filter struct {
	Account     string
	Identifier  string
	AddedAfter  *time.Time
	AddedBefore *time.Time
	Metadata    models.Metadata
}

func ByKey(account, identifier string) Filter {
	return Filter{Account: account, Identifier: identifier}
}

// HasKey reports whether f addresses exactly one record.
func (f Filter) HasKey() bool {
	return f.Account != "" && f.Identifier != ""
}

func ByAccount(account string) Filter {
	return Filter{Account: account}
}

func FromCanonical(q models.CanonicalQuery) Filter {
	return Filter{
		Account:     q.Account,
		AddedAfter:  q.AddedAfter,
		AddedBefore: q.AddedBefore,
		Metadata:    q.Metadata,
	}
}

type Projection struct {
	Metadata bool
}

// Patch is applied atomically by Update. With Replace the stored metadata is
// swapped for Metadata, otherwise Metadata is shallow-merged into it. A nil
// Updated leaves the stored timestamp alone.
type Patch struct {
	Metadata models.Metadata
	Replace  bool
	Updated  *time.Time
}

func (p Patch) Apply(rec *models.ImageRecord) {
	if p.Replace {
		rec.Metadata = p.Metadata.Clone()
	} else {
		rec.Metadata = rec.Metadata.Merge(p.Metadata)
	}
	if p.Updated != nil {
		rec.Updated = p.Updated.Truncate(time.Second)
	}
}

// Driver persists image records. FindOne, Update and Remove address a single
// record and fail with ErrIncompleteKey unless the filter has both keys.
type Driver interface {
	Insert(ctx context.Context, rec models.ImageRecord) error
	FindOne(ctx context.Context, filter Filter) (models.ImageRecord, error)
	Update(ctx context.Context, filter Filter, patch Patch) error
	Remove(ctx context.Context, filter Filter) error
	Find(ctx context.Context, filter Filter, projection Projection, paging models.Paging) ([]models.ImageRecord, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
