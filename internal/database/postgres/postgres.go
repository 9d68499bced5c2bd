package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediavault/internal/apperr"
	"mediavault/internal/database"
	"mediavault/internal/ids"
	"mediavault/internal/models"
)

var _ database.Driver = (*Driver)(nil)

const Schema = `
CREATE TABLE IF NOT EXISTS images (
	id         TEXT PRIMARY KEY,
	account    TEXT NOT NULL,
	identifier TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	size       BIGINT NOT NULL DEFAULT 0,
	width      INTEGER NOT NULL DEFAULT 0,
	height     INTEGER NOT NULL DEFAULT 0,
	mime       TEXT NOT NULL,
	extension  TEXT NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	added      BIGINT NOT NULL,
	updated    BIGINT NOT NULL,
	CONSTRAINT images_account_identifier_key UNIQUE (account, identifier)
);
CREATE INDEX IF NOT EXISTS images_account_added_idx ON images (account, added DESC);
CREATE INDEX IF NOT EXISTS images_metadata_idx ON images USING GIN (metadata jsonb_path_ops);
`

const uniqueViolation = "23505"

const selectColumns = `account, identifier, checksum, size, width, height, mime, extension, added, updated`

// Driver stores records in Postgres. Metadata lives in a jsonb column so a
// merge is a single `metadata || patch` statement and the metadata predicate
// is pushed down as jsonb containment.
type Driver struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Driver {
	return &Driver{pool: pool}
}

func (d *Driver) Migrate(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, Schema); err != nil {
		return translate(err)
	}
	return nil
}

func (d *Driver) Insert(ctx context.Context, rec models.ImageRecord) error {
	const query = `
		INSERT INTO images (
			id, account, identifier, checksum, size, width, height, mime, extension,
			metadata, added, updated
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12
		)
	`

	if rec.ID == "" {
		rec.ID = ids.New()
	}
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = d.pool.Exec(ctx, query,
		rec.ID,
		rec.Account,
		rec.Identifier,
		rec.Checksum,
		rec.Size,
		rec.Width,
		rec.Height,
		rec.Mime,
		rec.Extension,
		metadata,
		rec.Added.Unix(),
		rec.Updated.Unix(),
	)
	return translate(err)
}

func (d *Driver) FindOne(ctx context.Context, filter database.Filter) (models.ImageRecord, error) {
	if !filter.HasKey() {
		return models.ImageRecord{}, database.ErrIncompleteKey
	}
	where, args := whereClause(filter)
	query := `SELECT id, ` + selectColumns + `, metadata FROM images` + where + ` LIMIT 1`

	row := d.pool.QueryRow(ctx, query, args...)
	var (
		rec      models.ImageRecord
		added    int64
		updated  int64
		metadata []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Account,
		&rec.Identifier,
		&rec.Checksum,
		&rec.Size,
		&rec.Width,
		&rec.Height,
		&rec.Mime,
		&rec.Extension,
		&added,
		&updated,
		&metadata,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ImageRecord{}, database.ErrNotFound
		}
		return models.ImageRecord{}, translate(err)
	}

	rec.Added = time.Unix(added, 0).UTC()
	rec.Updated = time.Unix(updated, 0).UTC()
	md, err := decodeMetadata(metadata)
	if err != nil {
		return models.ImageRecord{}, err
	}
	rec.Metadata = md
	return rec, nil
}

func (d *Driver) Update(ctx context.Context, filter database.Filter, patch database.Patch) error {
	const merge = `
		UPDATE images
		SET metadata = metadata || $3::jsonb,
		    updated = COALESCE($4, updated)
		WHERE account = $1 AND identifier = $2
	`
	const replace = `
		UPDATE images
		SET metadata = $3::jsonb,
		    updated = COALESCE($4, updated)
		WHERE account = $1 AND identifier = $2
	`

	if !filter.HasKey() {
		return database.ErrIncompleteKey
	}
	metadata, err := encodeMetadata(patch.Metadata)
	if err != nil {
		return err
	}
	var updated *int64
	if patch.Updated != nil {
		ts := patch.Updated.Unix()
		updated = &ts
	}

	query := merge
	if patch.Replace {
		query = replace
	}
	cmd, err := d.pool.Exec(ctx, query, filter.Account, filter.Identifier, metadata, updated)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (d *Driver) Remove(ctx context.Context, filter database.Filter) error {
	if !filter.HasKey() {
		return database.ErrIncompleteKey
	}
	where, args := whereClause(filter)
	cmd, err := d.pool.Exec(ctx, `DELETE FROM images`+where, args...)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (d *Driver) Find(ctx context.Context, filter database.Filter, projection database.Projection, paging models.Paging) ([]models.ImageRecord, error) {
	where, args := whereClause(filter)

	columns := selectColumns
	if projection.Metadata {
		columns += ", metadata"
	}
	order := " ORDER BY added DESC"
	if paging.Sort == models.SortUpdatedDesc {
		order = " ORDER BY updated DESC"
	}
	query := `SELECT ` + columns + ` FROM images` + where + order
	if paging.Limit > 0 {
		args = append(args, paging.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if paging.Skip > 0 {
		args = append(args, paging.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := d.pool.Query(ctx, query, args...)
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
			metadata []byte
		)
		dest := []any{
			&rec.Account,
			&rec.Identifier,
			&rec.Checksum,
			&rec.Size,
			&rec.Width,
			&rec.Height,
			&rec.Mime,
			&rec.Extension,
			&added,
			&updated,
		}
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

func (d *Driver) Count(ctx context.Context, filter database.Filter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM images`+where, args...).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	return translate(d.pool.Ping(ctx))
}

func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}

func whereClause(filter database.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Account != "" {
		add("account = $%d", filter.Account)
	}
	if filter.Identifier != "" {
		add("identifier = $%d", filter.Identifier)
	}
	if filter.AddedAfter != nil {
		add("added > $%d", filter.AddedAfter.Unix())
	}
	if filter.AddedBefore != nil {
		add("added < $%d", filter.AddedBefore.Unix())
	}
	if len(filter.Metadata) > 0 {
		encoded, err := json.Marshal(filter.Metadata)
		if err != nil {
			conds = append(conds, "FALSE")
		} else {
			add("metadata @> $%d::jsonb", string(encoded))
		}
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
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

func decodeMetadata(raw []byte) (models.Metadata, error) {
	md := models.Metadata{}
	if len(raw) == 0 {
		return md, nil
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}

// translate maps pgx errors onto the driver sentinels and marks connection
// loss, admin shutdown and serialization failures as retryable.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return database.ErrDuplicateKey
		}
		if isTransientCode(pgErr.Code) {
			return apperr.MarkTransient(err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperr.MarkTransient(err)
	}
	return err
}

func isTransientCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"):
		return true
	case code == "40001", code == "40P01":
		return true
	case code == "57P01", code == "57P02", code == "57P03":
		return true
	case code == "53300":
		return true
	}
	return false
}
