package infra

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/tnqbao/gau-share-service/config"
)

// MinioBlobStore keeps blobs in one MinIO bucket
type MinioBlobStore struct {
	Client *minio.Client
	Bucket string
}

func InitMinioBlobStore(ctx context.Context, cfg *config.EnvConfig) (*MinioBlobStore, error) {
	endpoint := cfg.Minio.Endpoint
	accessKey := cfg.Minio.RootUser
	secretKey := cfg.Minio.RootPassword

	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("MinIO configuration is incomplete")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	store := &MinioBlobStore{Client: client, Bucket: cfg.Minio.Bucket}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	// Bucket-level expiry is a backstop for blobs the reaper never gets to.
	ttl := time.Duration(cfg.Upload.ExpiryMinutes) * time.Minute
	grace := time.Duration(cfg.Reaper.OrphanGraceMinutes) * time.Minute
	if err := store.SetExpiryRule(ctx, LifecycleExpiryDays(ttl, grace)); err != nil {
		log.Printf("Warning: failed to set lifecycle rule on bucket %s: %v", store.Bucket, err)
	}

	return store, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (m *MinioBlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.Client.BucketExists(ctx, m.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := m.Client.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// LifecycleExpiryDays is the smallest whole-day bucket expiry that outlives
// every entry plus the orphan grace, with one spare day for the store's daily scan.
func LifecycleExpiryDays(ttl, orphanGrace time.Duration) int {
	const day = 24 * time.Hour
	span := ttl + orphanGrace
	if span < 0 {
		span = 0
	}
	days := int(span / day)
	if span%day != 0 {
		days++
	}
	return days + 1
}

// SetExpiryRule makes the object store itself drop blobs after the given number of days.
func (m *MinioBlobStore) SetExpiryRule(ctx context.Context, days int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:         "expire-shared-files",
			Status:     "Enabled",
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
		},
	}
	return m.Client.SetBucketLifecycle(ctx, m.Bucket, cfg)
}

func (m *MinioBlobStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if err := validateBlobName(name); err != nil {
		return err
	}

	_, err := m.Client.PutObject(ctx, m.Bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put object stream: %w", err)
	}
	return nil
}

// Open streams an object without loading it into memory
func (m *MinioBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validateBlobName(name); err != nil {
		return nil, err
	}

	obj, err := m.Client.GetObject(ctx, m.Bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// GetObject is lazy; Stat surfaces a missing key before any byte is streamed.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("blob %q: %w", name, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return obj, nil
}

func (m *MinioBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateBlobName(name); err != nil {
		return false, err
	}

	_, err := m.Client.StatObject(ctx, m.Bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func (m *MinioBlobStore) Delete(ctx context.Context, name string) error {
	if err := validateBlobName(name); err != nil {
		return err
	}

	if err := m.Client.RemoveObject(ctx, m.Bucket, name, minio.RemoveObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (m *MinioBlobStore) Walk(ctx context.Context, fn func(BlobInfo) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for object := range m.Client.ListObjects(ctx, m.Bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return fmt.Errorf("failed to list objects: %w", object.Err)
		}
		if err := fn(BlobInfo{Name: object.Key, Size: object.Size, ModTime: object.LastModified}); err != nil {
			return err
		}
	}
	return nil
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
