package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediavault/internal/apperr"
	"mediavault/internal/config"
	"mediavault/internal/storage"
)

var _ storage.Driver = (*Driver)(nil)

type Driver struct {
	client *minio.Client
	cfg    config.ObjectStoreConfig
}

func New(cfg config.ObjectStoreConfig) (*Driver, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &Driver{
		client: client,
		cfg:    cfg,
	}, nil
}

func (d *Driver) EnsureBucket(ctx context.Context) error {
	exists, err := d.client.BucketExists(ctx, d.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", d.cfg.Bucket, translate(err))
	}
	if !exists {
		if err := d.client.MakeBucket(ctx, d.cfg.Bucket, minio.MakeBucketOptions{Region: d.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", d.cfg.Bucket, translate(err))
		}
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := d.client.GetObject(ctx, d.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

func (d *Driver) Put(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, d.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return translate(err)
}

// Delete stats the object first because S3 deletes of missing keys succeed
// silently.
func (d *Driver) Delete(ctx context.Context, key string) error {
	if _, err := d.client.StatObject(ctx, d.cfg.Bucket, key, minio.StatObjectOptions{}); err != nil {
		return translate(err)
	}
	return translate(d.client.RemoveObject(ctx, d.cfg.Bucket, key, minio.RemoveObjectOptions{}))
}

func translate(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return storage.ErrNotFound
	case "SlowDown", "RequestTimeout", "ServiceUnavailable", "InternalError":
		return apperr.MarkTransient(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.MarkTransient(err)
	}
	return err
}
