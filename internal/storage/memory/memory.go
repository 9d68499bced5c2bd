package memory

import (
	"context"
	"sync"

	"mediavault/internal/storage"
)

var _ storage.Driver = (*Driver)(nil)

type Driver struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func New() *Driver {
	return &Driver{blobs: make(map[string][]byte)}
}

func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, ok := d.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (d *Driver) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (d *Driver) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(d.blobs, key)
	return nil
}

func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.blobs)
}
