package objectstore

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/apperr"
	"mediavault/internal/config"
	"mediavault/internal/storage"
)

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(minio.ErrorResponse{Code: "NoSuchKey"}), storage.ErrNotFound)

	slow := translate(minio.ErrorResponse{Code: "SlowDown"})
	assert.True(t, apperr.IsTransient(apperr.Storage("get", "unable to fetch blob", slow)))

	dial := translate(&net.OpError{Op: "dial", Err: errors.New("connection refused")})
	assert.True(t, apperr.IsTransient(apperr.Storage("get", "unable to fetch blob", dial)))

	denied := translate(minio.ErrorResponse{Code: "AccessDenied"})
	assert.False(t, apperr.IsTransient(apperr.Storage("get", "unable to fetch blob", denied)))
}

func TestNewParsesSchemeFromEndpoint(t *testing.T) {
	d, err := New(config.ObjectStoreConfig{Endpoint: "https://s3.example.com", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "s3.example.com", d.client.EndpointURL().Host)
	assert.Equal(t, "https", d.client.EndpointURL().Scheme)
}

// TestRoundTrip needs a reachable S3 endpoint, e.g. a local minio container.
func TestRoundTrip(t *testing.T) {
	endpoint := os.Getenv("MEDIAVAULT_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("MEDIAVAULT_TEST_S3_ENDPOINT not set")
	}

	d, err := New(config.ObjectStoreConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MEDIAVAULT_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("MEDIAVAULT_TEST_S3_SECRET_KEY"),
		Bucket:    "mediavault-test",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.EnsureBucket(ctx))
	require.NoError(t, d.Put(ctx, "u1/abc.png", []byte("blob")))

	got, err := d.Get(ctx, "u1/abc.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)

	require.NoError(t, d.Delete(ctx, "u1/abc.png"))
	_, err = d.Get(ctx, "u1/abc.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, d.Delete(ctx, "u1/abc.png"), storage.ErrNotFound)
}
