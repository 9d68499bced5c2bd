package storage

import (
	"context"
	"errors"
	"path"
)

var ErrNotFound = errors.New("blob not found")

// Driver is the raw blob capability behind the image services. Keys are
// opaque slash-separated strings produced by Key.
type Driver interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

func Key(account, identifier string) string {
	return path.Join(account, identifier)
}
