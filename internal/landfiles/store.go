// Package landfiles downloads land-plot geometry attachments (KML files and
// zipped shapefiles) and stores them in a local directory or a MinIO/S3
// bucket.
package landfiles

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ecotrack/sync-core/internal/config"
)

// ObjectStore is where downloaded artifacts land. Keys are slash-separated
// relative paths.
type ObjectStore interface {
	// Reset removes everything under prefix and recreates it empty.
	Reset(ctx context.Context, prefix string) error

	// Put stores data under key, creating parents as needed.
	Put(ctx context.Context, key string, data []byte) error
}

// NewStore builds the store selected by the configuration.
func NewStore(cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Kind {
	case "", "local":
		return &LocalStore{Root: "."}, nil
	case "s3":
		return NewS3Store(&cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage kind: %s", cfg.Kind)
	}
}

// =============================================================================
// LOCAL FILESYSTEM STORE
// =============================================================================

// LocalStore writes artifacts under a root directory.
type LocalStore struct {
	Root string
}

// Reset wipes and recreates the directory named by prefix.
func (s *LocalStore) Reset(ctx context.Context, prefix string) error {
	dir := filepath.Join(s.Root, filepath.FromSlash(prefix))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// Put writes data to the file named by key.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	path := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// MINIO/S3 STORE
// =============================================================================

// S3Store writes artifacts to a MinIO/S3 bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3Store creates a store from the S3 configuration.
func NewS3Store(cfg *config.S3Config) (*S3Store, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("s3 endpoint_url is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("invalid s3 endpoint URL: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL
	if u.Scheme == "https" {
		useSSL = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}

	return &S3Store{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Reset ensures the bucket exists and removes every object under prefix.
func (s *S3Store) Reset(ctx context.Context, prefix string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
		}
		return nil
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("listing %s/%s: %w", s.bucket, prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("removing %s: %w", obj.Key, err)
		}
	}
	return nil
}

// Put stores data under key in the bucket.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("putting %s: %w", key, err)
	}
	return nil
}
