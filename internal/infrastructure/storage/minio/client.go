// Package minio archives provenance packs to S3-compatible object storage.
// Packs are review artifacts, so the bucket is write-mostly: the engine
// stores each generated pack once and analysts fetch them on demand.
package minio

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/config"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
)

var ErrClientClosed = errors.New(errors.ErrCodeInternal, "minio client is closed")

// MinIOAPI abstracts the minio-go client for testing.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// Client wraps the object-storage connection and the pack bucket.
type Client struct {
	api    MinIOAPI
	bucket string
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient connects to the configured endpoint and ensures the pack
// bucket exists.
func NewClient(cfg config.MinIOConfig, logger logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint required")
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "foresight-packs"
	}

	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to connect to minio")
	}

	c := &Client{api: api, bucket: bucket, logger: logger}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("object storage connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI wraps an existing API client (for testing).
func NewClientWithAPI(api MinIOAPI, bucket string, logger logging.Logger) *Client {
	return &Client{api: api, bucket: bucket, logger: logger}
}

func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to check bucket existence")
	}
	if !exists {
		if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrap(err, errors.CodeStorageError, "failed to create bucket "+c.bucket)
		}
		c.logger.Info("bucket created", logging.String("bucket", c.bucket))
	}
	return nil
}

// API returns the underlying object-storage API.
func (c *Client) API() MinIOAPI {
	return c.api
}

// Bucket returns the pack bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// HealthCheck verifies the endpoint answers and the pack bucket exists.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClientClosed
	}

	if _, err := c.api.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "minio health check failed")
	}
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "minio health check failed")
	}
	if !exists {
		return errors.New(errors.CodeStorageError, "pack bucket missing: "+c.bucket)
	}
	return nil
}

// PresignedGetURL returns a time-limited download link for an archived
// object.
func (c *Client) PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Hour
	}
	u, err := c.api.PresignedGetObject(ctx, c.bucket, objectKey, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "failed to presign download")
	}
	return u.String(), nil
}

// Close marks the client unusable. The minio SDK holds no persistent
// connection, so there is nothing to release.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
