package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-share-service/entity"
	"github.com/tnqbao/gau-share-service/infra/produce"
)

// FileEntryStore is the part of the entry registry the pipelines rely on.
type FileEntryStore interface {
	Create(ctx context.Context, entry *entity.FileEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.FileEntry, error)
	FindByCode(ctx context.Context, code string) (*entity.FileEntry, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.FileEntry, error)
	ConsumeDownload(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	CountAll(ctx context.Context) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
	SumDownloadCount(ctx context.Context) (int64, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]entity.FileEntry, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	BlobNamesIn(ctx context.Context, names []string) (map[string]struct{}, error)
}

type BulkBatchStore interface {
	Create(ctx context.Context, batch *entity.BulkBatch) error
	FindByBulkID(ctx context.Context, bulkID string) (*entity.BulkBatch, error)
	CountAll(ctx context.Context) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type QRGenerator interface {
	DataURL(content string) (string, error)
}

// BlobDeletePublisher hands blob removals to whoever performs them.
type BlobDeletePublisher interface {
	PublishBlobDelete(ctx context.Context, message produce.BlobDeleteMessage) error
}

// StagedFile is a file already received by the transport layer.
type StagedFile struct {
	OriginalName string
	Size         int64
	MimeType     string
	Open         func() (io.ReadCloser, error)
}
