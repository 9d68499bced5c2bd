package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"mediavault/internal/apperr"
	"mediavault/internal/database"
	"mediavault/internal/ids"
	"mediavault/internal/models"
)

var _ database.Driver = (*Driver)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	account TEXT NOT NULL,
	identifier TEXT NOT NULL,
	checksum TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	mime TEXT NOT NULL,
	extension TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	added INTEGER NOT NULL,
	updated INTEGER NOT NULL,
	UNIQUE (account, identifier)
);

CREATE INDEX IF NOT EXISTS idx_images_account_added ON images(account, added);
`

const baseColumns = `account, identifier, checksum, size, width, height, mime, extension, added, updated`

// Driver implements database.Driver on a single SQLite connection. With one
// connection every transaction is serialised, which is what makes the
// metadata read-modify-write atomic.
type Driver struct {
	conn *sql.DB
}

// Open creates (if needed) and migrates the database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Driver, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	d := &Driver{conn: conn}
	if err := d.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return d, nil
}

// Migrate creates the images table and its indexes if they don't exist.
func (d *Driver) Migrate(ctx context.Context) error {
	_, err := d.conn.ExecContext(ctx, schema)
	return err
}

// Insert adds a new image record. The unique index on (account, identifier)
// turns a concurrent second insert into database.ErrDuplicateKey.
func (d *Driver) Insert(ctx context.Context, rec models.ImageRecord) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO images (id, account, identifier, checksum, size, width, height, mime, extension, metadata, added, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Account, rec.Identifier, rec.Checksum, rec.Size, rec.Width, rec.Height,
		rec.Mime, rec.Extension, metadata, rec.Added.Unix(), rec.Updated.Unix())
	if err != nil {
		return translate(err)
	}
	return nil
}

// FindOne returns the first record matching filter.
func (d *Driver) FindOne(ctx context.Context, filter database.Filter) (models.ImageRecord, error) {
	if !filter.HasKey() {
		return models.ImageRecord{}, database.ErrIncompleteKey
	}
	where, args := whereClause(filter)
	row := d.conn.QueryRowContext(ctx,
		`SELECT id, `+baseColumns+`, metadata FROM images`+where+` LIMIT 1`, args...)

	var (
		rec      models.ImageRecord
		metadata string
		added    int64
		updated  int64
	)
	err := row.Scan(&rec.ID, &rec.Account, &rec.Identifier, &rec.Checksum, &rec.Size, &rec.Width,
		&rec.Height, &rec.Mime, &rec.Extension, &added, &updated, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ImageRecord{}, database.ErrNotFound
	}
	if err != nil {
		return models.ImageRecord{}, translate(err)
	}
	rec.Added = time.Unix(added, 0).UTC()
	rec.Updated = time.Unix(updated, 0).UTC()
	if rec.Metadata, err = decodeMetadata(metadata); err != nil {
		return models.ImageRecord{}, err
	}
	return rec, nil
}

// Update applies patch to the record selected by filter inside a single
// transaction.
func (d *Driver) Update(ctx context.Context, filter database.Filter, patch database.Patch) error {
	if !filter.HasKey() {
		return database.ErrIncompleteKey
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}

	var (
		raw     string
		updated int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT metadata, updated FROM images WHERE account = ? AND identifier = ?`,
		filter.Account, filter.Identifier).Scan(&raw, &updated)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrNotFound
		}
		return translate(err)
	}

	current, err := decodeMetadata(raw)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	rec := models.ImageRecord{Metadata: current, Updated: time.Unix(updated, 0)}
	patch.Apply(&rec)

	encoded, err := encodeMetadata(rec.Metadata)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE images SET metadata = ?, updated = ? WHERE account = ? AND identifier = ?`,
		encoded, rec.Updated.Unix(), filter.Account, filter.Identifier); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("update failed: %v, rollback failed: %v", err, rbErr)
		}
		return translate(err)
	}

	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	return nil
}

// Remove deletes the record selected by filter.
func (d *Driver) Remove(ctx context.Context, filter database.Filter) error {
	if !filter.HasKey() {
		return database.ErrIncompleteKey
	}
	where, args := whereClause(filter)
	result, err := d.conn.ExecContext(ctx, `DELETE FROM images`+where, args...)
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Find retrieves records based on filter criteria, newest first.
func (d *Driver) Find(ctx context.Context, filter database.Filter, projection database.Projection, paging models.Paging) ([]models.ImageRecord, error) {
	where, args := whereClause(filter)

	columns := baseColumns
	if projection.Metadata {
		columns += ", metadata"
	}
	order := " ORDER BY added DESC"
	if paging.Sort == models.SortUpdatedDesc {
		order = " ORDER BY updated DESC"
	}

	query := `SELECT ` + columns + ` FROM images` + where + order
	if paging.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, paging.Limit, paging.Skip)
	} else if paging.Skip > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, paging.Skip)
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	records := make([]models.ImageRecord, 0)
	for rows.Next() {
		var (
			rec      models.ImageRecord
			added    int64
			updated  int64
			metadata string
		)
		dest := []any{&rec.Account, &rec.Identifier, &rec.Checksum, &rec.Size, &rec.Width,
			&rec.Height, &rec.Mime, &rec.Extension, &added, &updated}
		if projection.Metadata {
			dest = append(dest, &metadata)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, translate(err)
		}
		rec.Added = time.Unix(added, 0).UTC()
		rec.Updated = time.Unix(updated, 0).UTC()
		if projection.Metadata {
			if rec.Metadata, err = decodeMetadata(metadata); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return records, nil
}

// Count returns the number of records matching filter.
func (d *Driver) Count(ctx context.Context, filter database.Filter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`+where, args...).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.conn.Close()
}

func whereClause(filter database.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Account != "" {
		conds = append(conds, "account = ?")
		args = append(args, filter.Account)
	}
	if filter.Identifier != "" {
		conds = append(conds, "identifier = ?")
		args = append(args, filter.Identifier)
	}
	if filter.AddedAfter != nil {
		conds = append(conds, "added > ?")
		args = append(args, filter.AddedAfter.Unix())
	}
	if filter.AddedBefore != nil {
		conds = append(conds, "added < ?")
		args = append(args, filter.AddedBefore.Unix())
	}
	for key, value := range filter.Metadata {
		encoded, err := json.Marshal(value)
		if err != nil {
			// Unencodable values can never match a stored document.
			conds = append(conds, "0")
			continue
		}
		conds = append(conds, "json_extract(metadata, ?) IS json_extract(?, '$')")
		args = append(args, jsonPath(key), string(encoded))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

func encodeMetadata(md models.Metadata) (string, error) {
	if md == nil {
		md = models.Metadata{}
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(raw string) (models.Metadata, error) {
	md := models.Metadata{}
	if raw == "" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}

// translate maps sqlite errors onto the driver sentinels and marks lock
// contention as retryable.
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return database.ErrDuplicateKey
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return apperr.MarkTransient(err)
		}
	}
	return err
}
