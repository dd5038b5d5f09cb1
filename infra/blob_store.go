package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tnqbao/gau-share-service/config"
)

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrInvalidBlobName = errors.New("invalid blob name")
)

type BlobInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// BlobStore keeps uploaded bytes under flat stored names.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	// Open returns ErrBlobNotFound (wrapped) when nothing is stored under name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Delete is idempotent.
	Delete(ctx context.Context, name string) error
	Walk(ctx context.Context, fn func(BlobInfo) error) error
}

func InitBlobStore(ctx context.Context, cfg *config.EnvConfig) (BlobStore, error) {
	switch cfg.Storage.Driver {
	case "local":
		return NewLocalBlobStore(cfg.Storage.LocalPath)
	case "minio":
		return InitMinioBlobStore(ctx, cfg)
	case "s3":
		return InitS3BlobStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
}

const maxBlobNameLength = 255

func validateBlobName(name string) error {
	if name == "" || len(name) > maxBlobNameLength {
		return fmt.Errorf("%q: %w", name, ErrInvalidBlobName)
	}
	if name[0] == '.' {
		return fmt.Errorf("%q: leading dot: %w", name, ErrInvalidBlobName)
	}
	for i, r := range name {
		if !isValidBlobNameChar(r) {
			return fmt.Errorf("invalid character %q at position %d: %w", r, i, ErrInvalidBlobName)
		}
	}
	return nil
}

// Stored names are flat, so '/' is rejected along with everything outside [A-Za-z0-9._-].
func isValidBlobNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '-' || r == '_' || r == '.'
}
