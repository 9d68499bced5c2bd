package memory

import (
	"context"
	"sync"
	"time"

	"mediavault/internal/database"
	"mediavault/internal/ids"
	"mediavault/internal/models"
)

var _ database.Driver = (*Driver)(nil)

type key struct {
	account    string
	identifier string
}

// Driver keeps records in process. The mutex gives it the atomic
// check-and-insert and read-modify-write the core expects from a backend.
type Driver struct {
	mu      sync.RWMutex
	records map[key]models.ImageRecord
	order   []key
}

func New() *Driver {
	return &Driver{records: make(map[key]models.ImageRecord)}
}

func (d *Driver) Insert(ctx context.Context, rec models.ImageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	k := key{rec.Account, rec.Identifier}
	if _, exists := d.records[k]; exists {
		return database.ErrDuplicateKey
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	d.records[k] = normalize(rec)
	d.order = append(d.order, k)
	return nil
}

func (d *Driver) FindOne(ctx context.Context, filter database.Filter) (models.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.ImageRecord{}, err
	}
	if !filter.HasKey() {
		return models.ImageRecord{}, database.ErrIncompleteKey
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, k := range d.order {
		rec := d.records[k]
		if database.Matches(filter, rec) {
			rec.Metadata = rec.Metadata.Clone()
			return rec, nil
		}
	}
	return models.ImageRecord{}, database.ErrNotFound
}

func (d *Driver) Update(ctx context.Context, filter database.Filter, patch database.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filter.HasKey() {
		return database.ErrIncompleteKey
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, k := range d.order {
		rec := d.records[k]
		if !database.Matches(filter, rec) {
			continue
		}
		patch.Apply(&rec)
		d.records[k] = rec
		return nil
	}
	return database.ErrNotFound
}

func (d *Driver) Remove(ctx context.Context, filter database.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filter.HasKey() {
		return database.ErrIncompleteKey
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, k := range d.order {
		if !database.Matches(filter, d.records[k]) {
			continue
		}
		delete(d.records, k)
		d.order = append(d.order[:i], d.order[i+1:]...)
		return nil
	}
	return database.ErrNotFound
}

func (d *Driver) Find(ctx context.Context, filter database.Filter, projection database.Projection, paging models.Paging) ([]models.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	matched := make([]models.ImageRecord, 0)
	for _, k := range d.order {
		rec := d.records[k]
		if database.Matches(filter, rec) {
			matched = append(matched, database.Project(rec, projection))
		}
	}
	d.mu.RUnlock()

	return database.SortAndPage(matched, paging), nil
}

func (d *Driver) Count(ctx context.Context, filter database.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, k := range d.order {
		if database.Matches(filter, d.records[k]) {
			n++
		}
	}
	return n, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (d *Driver) Close() error {
	return nil
}

func normalize(rec models.ImageRecord) models.ImageRecord {
	rec.Metadata = rec.Metadata.Clone()
	rec.Added = rec.Added.Truncate(time.Second).UTC()
	rec.Updated = rec.Updated.Truncate(time.Second).UTC()
	return rec
}
