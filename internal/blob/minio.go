package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// noSuchKeyCode is the S3 error code for a missing object.
const noSuchKeyCode = "NoSuchKey"

// MinioConfig holds configuration for the MinIO content store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string `json:"-"`
	Bucket    string
	UseSSL    bool
}

// MinioStore stores page content in a MinIO bucket.
type MinioStore struct {
	client *miniogo.Client
	bucket string
}

// NewMinioStore creates a MinIO-backed content store.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}

	if !exists {
		if makeErr := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); makeErr != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, makeErr)
		}
	}

	return nil
}

// Put uploads one content object.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		miniogo.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: metadata,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	return nil
}

// Get downloads one content object. Missing objects map to ErrObjectNotFound.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer object.Close()

	// GetObject is lazy: a missing key only surfaces on the first read.
	data, readErr := io.ReadAll(object)
	if readErr != nil {
		if miniogo.ToErrorResponse(readErr).Code == noSuchKeyCode {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, readErr)
	}

	return data, nil
}

var _ Store = (*MinioStore)(nil)
