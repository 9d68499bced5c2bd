package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"

	"mediavault/internal/apperr"
	"mediavault/internal/database"
	"mediavault/internal/events"
	"mediavault/internal/media/sniffer"
	"mediavault/internal/models"
	"mediavault/internal/storage"
)

// UploadService guards image creation: one record per (account, identifier).
type UploadService struct {
	backend
}

func NewUploadService(db database.Driver, blobs storage.Driver, opts Options) *UploadService {
	return &UploadService{backend: newBackend(db, blobs, opts)}
}

// ParseIdentifier splits "<md5 hex>[.ext]" into its hash and extension.
func ParseIdentifier(identifier string) (hash, ext string, ok bool) {
	hash, ext, _ = strings.Cut(identifier, ".")
	if len(hash) != md5.Size*2 || strings.Contains(ext, ".") || strings.Contains(ext, "/") {
		return "", "", false
	}
	for _, r := range hash {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", "", false
		}
	}
	return hash, strings.ToLower(ext), true
}

func Checksum(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// Upload validates raw client content against its identifier, derives the
// image fields from the bytes and stores it.
func (s *UploadService) Upload(ctx context.Context, account, identifier string, content []byte) (models.ImageRecord, error) {
	const op = "store image"

	if strings.TrimSpace(account) == "" {
		return models.ImageRecord{}, apperr.Validation(op, "account required")
	}
	if len(content) == 0 {
		return models.ImageRecord{}, apperr.Validation(op, "no image attached")
	}
	hash, ext, ok := ParseIdentifier(identifier)
	if !ok {
		return models.ImageRecord{}, apperr.Validation(op, "invalid image identifier")
	}
	if Checksum(content) != hash {
		return models.ImageRecord{}, apperr.Validation(op, "hash mismatch")
	}

	derived, err := sniffer.Probe(content)
	if err != nil {
		return models.ImageRecord{}, apperr.Validation(op, "unsupported image type")
	}
	if ext != "" {
		if want, ok := sniffer.ByExtension(ext); !ok || want.Extension != derived.Extension {
			return models.ImageRecord{}, apperr.Validation(op, "extension does not match image type")
		}
	}

	return s.StoreImage(ctx, account, identifier, content, derived)
}

// StoreImage persists the blob and then the record. It trusts its caller:
// the identifier is not checked against the content hash here, Upload does
// that for client input. The stored Checksum is always computed from content.
// The lookup up front only saves a blob write; the database's unique
// (account, identifier) constraint decides concurrent races.
func (s *UploadService) StoreImage(ctx context.Context, account, identifier string, content []byte, derived models.DerivedFields) (models.ImageRecord, error) {
	const op = "store image"

	_, err := s.findRecord(ctx, op, account, identifier)
	switch {
	case err == nil:
		return models.ImageRecord{}, apperr.Duplicate(op, "image already exists")
	case !apperr.Is(err, apperr.KindNotFound):
		return models.ImageRecord{}, err
	}

	blobCtx, cancel := s.blobContext(ctx)
	err = s.blobs.Put(blobCtx, storage.Key(account, identifier), content)
	cancel()
	if err != nil {
		return models.ImageRecord{}, blobError(op, err)
	}

	now := s.now()
	rec := models.ImageRecord{
		Account:    account,
		Identifier: identifier,
		Checksum:   Checksum(content),
		Size:       int64(len(content)),
		Width:      derived.Width,
		Height:     derived.Height,
		Mime:       derived.Mime,
		Extension:  derived.Extension,
		Metadata:   models.Metadata{},
		Added:      now,
		Updated:    now,
	}

	dbCtx, cancel := s.dbContext(ctx)
	err = s.db.Insert(dbCtx, rec)
	cancel()
	if err != nil {
		// The blob stays: its key is derived from the content, so it is either
		// the winner's identical blob or will be reused by a retry.
		if errors.Is(err, database.ErrDuplicateKey) {
			return models.ImageRecord{}, apperr.Duplicate(op, "image already exists")
		}
		return models.ImageRecord{}, databaseError(op, err)
	}

	s.log.Info().
		Str("account", account).
		Str("image_identifier", identifier).
		Int64("size", rec.Size).
		Msg("image stored")
	s.publish(ctx, events.ImageStored, account, identifier)

	return rec, nil
}
