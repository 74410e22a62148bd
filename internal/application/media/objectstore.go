package media

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig addresses an S3-compatible bucket (MinIO, S3, R2).
type ObjectStoreConfig struct {
	Endpoint  string // host[:port], no scheme
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ObjectStore keeps photos in a bucket for deployments without a writable,
// publicly served disk. The bucket must exist; it is never created here.
type ObjectStore struct {
	Client *minio.Client
	Bucket string
}

func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client for %s: %w", cfg.Endpoint, err)
	}
	return &ObjectStore{Client: client, Bucket: cfg.Bucket}, nil
}

func (s *ObjectStore) Ready(ctx context.Context) error {
	ok, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket %s: %v", ErrUploadDirMissing, s.Bucket, err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %s", ErrUploadDirMissing, s.Bucket)
	}
	return nil
}

func (s *ObjectStore) Put(ctx context.Context, name, contentType string, r io.Reader, size int64) error {
	_, err := s.Client.PutObject(ctx, s.Bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *ObjectStore) Remove(ctx context.Context, name string) error {
	return s.Client.RemoveObject(ctx, s.Bucket, name, minio.RemoveObjectOptions{})
}
