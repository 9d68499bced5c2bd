package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"mediavault/internal/apperr"
	"mediavault/internal/config"
	"mediavault/internal/database"
	"mediavault/internal/ids"
	"mediavault/internal/models"
)

var _ database.Driver = (*Driver)(nil)

const keyPrefix = "image\x00"

// Driver stores one JSON document per image keyed by account and identifier.
// Badger's optimistic transactions give the conflict detection needed for
// check-and-insert and metadata read-modify-write.
type Driver struct {
	db *badger.DB
}

func Open(cfg config.BadgerConfig) (*Driver, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Driver{db: db}, nil
}

func recordKey(account, identifier string) []byte {
	return []byte(keyPrefix + account + "\x00" + identifier)
}

func accountPrefix(account string) []byte {
	if account == "" {
		return []byte(keyPrefix)
	}
	return []byte(keyPrefix + account + "\x00")
}

func (d *Driver) Insert(ctx context.Context, rec models.ImageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	value, err := json.Marshal(database.ToDocument(rec))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	key := recordKey(rec.Account, rec.Identifier)

	err = d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return database.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, value)
	})
	if errors.Is(err, badger.ErrConflict) {
		// Another writer committed the same key first; report what it means.
		exists, lookupErr := d.exists(key)
		if lookupErr == nil && exists {
			return database.ErrDuplicateKey
		}
		return apperr.MarkTransient(err)
	}
	return err
}

func (d *Driver) exists(key []byte) (bool, error) {
	found := false
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (d *Driver) FindOne(ctx context.Context, filter database.Filter) (models.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.ImageRecord{}, err
	}

	if !filter.HasKey() {
		return models.ImageRecord{}, database.ErrIncompleteKey
	}

	var rec models.ImageRecord
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(filter.Account, filter.Identifier))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return database.ErrNotFound
		}
		if err != nil {
			return err
		}
		rec, err = decode(item)
		return err
	})
	if err != nil {
		return models.ImageRecord{}, err
	}
	if !database.Matches(filter, rec) {
		return models.ImageRecord{}, database.ErrNotFound
	}
	return rec, nil
}

func (d *Driver) Update(ctx context.Context, filter database.Filter, patch database.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filter.HasKey() {
		return database.ErrIncompleteKey
	}
	key := recordKey(filter.Account, filter.Identifier)

	err := d.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return database.ErrNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decode(item)
		if err != nil {
			return err
		}
		patch.Apply(&rec)
		value, err := json.Marshal(database.ToDocument(rec))
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		return txn.Set(key, value)
	})
	if errors.Is(err, badger.ErrConflict) {
		return apperr.MarkTransient(err)
	}
	return err
}

func (d *Driver) Remove(ctx context.Context, filter database.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filter.HasKey() {
		return database.ErrIncompleteKey
	}
	key := recordKey(filter.Account, filter.Identifier)

	err := d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return database.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrConflict) {
		return apperr.MarkTransient(err)
	}
	return err
}

func (d *Driver) Find(ctx context.Context, filter database.Filter, projection database.Projection, paging models.Paging) ([]models.ImageRecord, error) {
	matched := make([]models.ImageRecord, 0)
	err := d.scan(ctx, filter, func(rec models.ImageRecord) bool {
		matched = append(matched, database.Project(rec, projection))
		return true
	})
	if err != nil {
		return nil, err
	}
	return database.SortAndPage(matched, paging), nil
}

func (d *Driver) Count(ctx context.Context, filter database.Filter) (int, error) {
	n := 0
	err := d.scan(ctx, filter, func(models.ImageRecord) bool {
		n++
		return true
	})
	return n, err
}

// scan walks every record under the filter's account prefix, calling fn for
// the ones that match until fn returns false.
func (d *Driver) scan(ctx context.Context, filter database.Filter, fn func(models.ImageRecord) bool) error {
	return d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := accountPrefix(filter.Account)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := decode(it.Item())
			if err != nil {
				return err
			}
			if database.Matches(filter, rec) && !fn(rec) {
				return nil
			}
		}
		return nil
	})
}

func decode(item *badger.Item) (models.ImageRecord, error) {
	var doc database.Document
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	if err != nil {
		return models.ImageRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return doc.Record(), nil
}

func (d *Driver) Ping(ctx context.Context) error {
	if d.db.IsClosed() {
		return errors.New("badger closed")
	}
	return ctx.Err()
}

func (d *Driver) Close() error {
	return d.db.Close()
}
