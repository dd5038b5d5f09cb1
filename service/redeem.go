package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-share-service/entity"
	"github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/repository"
	"github.com/tnqbao/gau-share-service/utils"
)

type CheckResult struct {
	UniqueCode    string    `json:"uniqueCode"`
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	MimeType      string    `json:"mimetype"`
	ExpiresAt     time.Time `json:"expiresAt"`
	DownloadURL   string    `json:"downloadUrl"`
	QRCode        string    `json:"qrCode"`
	DownloadCount int       `json:"downloadCount"`
	MaxDownloads  int       `json:"maxDownloads"`
}

type MetaView struct {
	ExpiresAt     time.Time `json:"expiresAt"`
	DownloadCount int       `json:"downloadCount"`
	MaxDownloads  int       `json:"maxDownloads"`
	FileName      string    `json:"fileName"`
	FileSize      int64     `json:"fileSize"`
}

type BulkDetailFile struct {
	FileID       string                 `json:"fileId"`
	OriginalName string                 `json:"originalName"`
	Size         int64                  `json:"size"`
	Status       entity.BatchFileStatus `json:"status"`
	Code         string                 `json:"code,omitempty"`
	DownloadURL  string                 `json:"downloadUrl"`
}

type BulkDetail struct {
	BulkID          string           `json:"bulkId"`
	Files           []BulkDetailFile `json:"files"`
	BulkDownloadURL string           `json:"bulkDownloadUrl"`
	Summary         BulkSummary      `json:"summary"`
	ExpiresAt       time.Time        `json:"expiresAt"`
}

// Download is an entry whose credit is already spent, with its bytes ready to stream.
type Download struct {
	Entry *entity.FileEntry
	Body  io.ReadCloser
}

type RedeemService struct {
	entries FileEntryStore
	batches BulkBatchStore
	blobs   infra.BlobStore
	qr      QRGenerator
	logger  *infra.LoggerClient
	metrics *infra.Metrics
	tracer  trace.Tracer

	now func() time.Time
}

func NewRedeemService(entries FileEntryStore, batches BulkBatchStore, blobs infra.BlobStore, qr QRGenerator, logger *infra.LoggerClient, metrics *infra.Metrics) *RedeemService {
	return &RedeemService{
		entries: entries,
		batches: batches,
		blobs:   blobs,
		qr:      qr,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/tnqbao/gau-share-service/service"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// OpenByID redeems one download of the entry with the given id.
func (s *RedeemService) OpenByID(ctx context.Context, rawID string) (*Download, error) {
	ctx, span := s.tracer.Start(ctx, "RedeemService.OpenByID")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, NotFoundError("File not found")
	}
	return s.redeem(ctx, func() (*entity.FileEntry, error) {
		return s.entries.FindByID(ctx, id)
	})
}

// OpenByCode redeems one download of the entry with the given share code.
func (s *RedeemService) OpenByCode(ctx context.Context, code string) (*Download, error) {
	ctx, span := s.tracer.Start(ctx, "RedeemService.OpenByCode")
	defer span.End()

	code = utils.NormalizeCode(code)
	if code == "" {
		return nil, NotFoundError("File not found")
	}
	return s.redeem(ctx, func() (*entity.FileEntry, error) {
		return s.entries.FindByCode(ctx, code)
	})
}

// redeem runs the shared check chain: existence, expiry, quota, blob presence.
// The credit is taken before the first byte is sent, so an aborted transfer
// still counts as a download.
func (s *RedeemService) redeem(ctx context.Context, lookup func() (*entity.FileEntry, error)) (*Download, error) {
	entry, err := lookup()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordRejection(ctx, KindNotFound.String())
			return nil, NotFoundError("File not found")
		}
		return nil, UpstreamError("Failed to look up file", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("file.id", entry.ID.String()))

	now := s.now()
	if entry.IsExpired(now) {
		s.metrics.RecordRejection(ctx, KindExpired.String())
		return nil, ExpiredError("File has expired")
	}
	if entry.QuotaReached() {
		s.metrics.RecordRejection(ctx, KindQuotaExceeded.String())
		return nil, QuotaExceededError("Download limit exceeded")
	}

	body, err := s.blobs.Open(ctx, entry.BlobName)
	if err != nil {
		if errors.Is(err, infra.ErrBlobNotFound) {
			s.reportBlobMissing(ctx, entry)
			return nil, BlobMissingError("File missing", err)
		}
		return nil, UpstreamError("Failed to read file", err)
	}

	granted, err := s.entries.ConsumeDownload(ctx, entry.ID, now)
	if err != nil {
		_ = body.Close()
		return nil, UpstreamError("Failed to record download", err)
	}
	if !granted {
		_ = body.Close()
		return nil, s.explainRefusal(ctx, entry.ID, now)
	}

	s.metrics.Downloads.Add(ctx, 1)
	entry.DownloadCount++
	s.logger.InfoWithContextf(ctx, "[Download] Serving '%s' (%d/%d)", entry.OriginalName, entry.DownloadCount, entry.MaxDownloads)

	return &Download{Entry: entry, Body: body}, nil
}

// explainRefusal re-reads an entry whose conditional increment matched no row.
func (s *RedeemService) explainRefusal(ctx context.Context, id uuid.UUID, now time.Time) error {
	current, err := s.entries.FindByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.RecordRejection(ctx, KindNotFound.String())
		return NotFoundError("File not found")
	case err != nil:
		return UpstreamError("Failed to look up file", err)
	case current.IsExpired(now):
		s.metrics.RecordRejection(ctx, KindExpired.String())
		return ExpiredError("File has expired")
	default:
		s.metrics.RecordRejection(ctx, KindQuotaExceeded.String())
		return QuotaExceededError("Download limit exceeded")
	}
}

func (s *RedeemService) reportBlobMissing(ctx context.Context, entry *entity.FileEntry) {
	s.metrics.BlobMissing.Add(ctx, 1)
	s.metrics.RecordRejection(ctx, KindBlobMissing.String())
	s.logger.WarningWithAttrs(ctx, "[Download] Entry exists but its blob is gone",
		slog.Bool("storage_integrity", true),
		slog.String("file_id", entry.ID.String()),
		slog.String("blob_name", entry.BlobName),
	)
}

// Check validates a share code without transferring bytes or spending a credit.
func (s *RedeemService) Check(ctx context.Context, code string, links Links) (*CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "RedeemService.Check")
	defer span.End()

	code = utils.NormalizeCode(code)
	if code == "" {
		return nil, ValidationError("Code is required")
	}

	entry, err := s.entries.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Invalid code")
		}
		return nil, UpstreamError("Failed to look up code", err)
	}
	if entry.IsExpired(s.now()) {
		return nil, ExpiredError("Code expired")
	}

	downloadURL := links.DownloadByCode(entry.Code)
	qrCode, err := s.qr.DataURL(downloadURL)
	if err != nil {
		return nil, UpstreamError("Failed to generate QR code", err)
	}

	return &CheckResult{
		UniqueCode:    entry.Code,
		ID:            entry.ID.String(),
		Name:          entry.OriginalName,
		Size:          entry.Size,
		MimeType:      entry.MimeType,
		ExpiresAt:     entry.ExpiresAt,
		DownloadURL:   downloadURL,
		QRCode:        qrCode,
		DownloadCount: entry.DownloadCount,
		MaxDownloads:  entry.MaxDownloads,
	}, nil
}

// Meta is informational only: no expiry or quota checks, no side effects.
func (s *RedeemService) Meta(ctx context.Context, rawID string) (*MetaView, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, NotFoundError("File not found")
	}

	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("File not found")
		}
		return nil, UpstreamError("Failed to look up file", err)
	}

	return &MetaView{
		ExpiresAt:     entry.ExpiresAt,
		DownloadCount: entry.DownloadCount,
		MaxDownloads:  entry.MaxDownloads,
		FileName:      entry.OriginalName,
		FileSize:      entry.Size,
	}, nil
}

func (s *RedeemService) findLiveBatch(ctx context.Context, bulkID string) (*entity.BulkBatch, error) {
	bulkID = utils.NormalizeCode(bulkID)
	if bulkID == "" {
		return nil, NotFoundError("Bulk upload not found")
	}

	batch, err := s.batches.FindByBulkID(ctx, bulkID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("Bulk upload not found")
		}
		return nil, UpstreamError("Failed to look up bulk upload", err)
	}
	if batch.IsExpired(s.now()) {
		return nil, ExpiredError("Bulk upload has expired")
	}
	return batch, nil
}

// BulkDetail lists the members of a live batch with their individual links.
func (s *RedeemService) BulkDetail(ctx context.Context, bulkID string, links Links) (*BulkDetail, error) {
	ctx, span := s.tracer.Start(ctx, "RedeemService.BulkDetail")
	defer span.End()

	batch, err := s.findLiveBatch(ctx, bulkID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.FindByIDs(ctx, batch.EntryIDs())
	if err != nil {
		return nil, UpstreamError("Failed to look up bulk files", err)
	}

	files := make([]BulkDetailFile, 0, len(batch.Files))
	for _, f := range batch.Files {
		file := BulkDetailFile{
			FileID:       f.FileEntryID.String(),
			OriginalName: f.OriginalName,
			Size:         f.Size,
			Status:       f.Status,
			DownloadURL:  links.DownloadByID(f.FileEntryID.String()),
		}
		if entry, ok := entries[f.FileEntryID]; ok {
			file.Code = entry.Code
		}
		files = append(files, file)
	}

	return &BulkDetail{
		BulkID:          batch.BulkID,
		Files:           files,
		BulkDownloadURL: links.BulkDownload(batch.BulkID),
		Summary: BulkSummary{
			TotalFiles: batch.TotalFiles,
			Successful: batch.SuccessfulUploads,
			Failed:     batch.FailedUploads,
		},
		ExpiresAt: batch.ExpiresAt,
	}, nil
}

// OpenBulk resolves a live batch into an archive of every member that can be
// served. Each included member spends one of its own download credits; members
// that are purged, missing on the blob store or out of credits are skipped.
// When nothing is left, the error of the first skipped member is returned.
func (s *RedeemService) OpenBulk(ctx context.Context, bulkID string) (*Archive, error) {
	ctx, span := s.tracer.Start(ctx, "RedeemService.OpenBulk")
	defer span.End()

	batch, err := s.findLiveBatch(ctx, bulkID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.FindByIDs(ctx, batch.EntryIDs())
	if err != nil {
		return nil, UpstreamError("Failed to look up bulk files", err)
	}

	now := s.now()
	archive := &Archive{FileName: "sharefiles-bulk-" + batch.BulkID + ".zip"}
	var firstErr error
	skip := func(err *Error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, f := range batch.Files {
		entry, ok := entries[f.FileEntryID]
		if !ok {
			s.logger.WarningWithContextf(ctx, "[Bulk Download] Member %s of %s no longer exists, skipping", f.FileEntryID, batch.BulkID)
			skip(NotFoundError("File not found"))
			continue
		}

		body, err := s.blobs.Open(ctx, entry.BlobName)
		if err != nil {
			if errors.Is(err, infra.ErrBlobNotFound) {
				s.reportBlobMissing(ctx, &entry)
				skip(BlobMissingError("File missing", err))
				continue
			}
			archive.Close()
			return nil, UpstreamError("Failed to read file", err)
		}

		granted, err := s.entries.ConsumeDownload(ctx, entry.ID, now)
		if err != nil {
			_ = body.Close()
			archive.Close()
			return nil, UpstreamError("Failed to record download", err)
		}
		if !granted {
			_ = body.Close()
			s.logger.InfoWithContextf(ctx, "[Bulk Download] Member %s of %s has no credit left, skipping", entry.ID, batch.BulkID)
			if e, ok := AsError(s.explainRefusal(ctx, entry.ID, now)); ok {
				skip(e)
			}
			continue
		}

		s.metrics.Downloads.Add(ctx, 1)
		archive.add(entry, body)
	}

	if len(archive.members) == 0 {
		if firstErr == nil {
			firstErr = NotFoundError("Bulk upload has no files")
		}
		return nil, firstErr
	}

	span.SetAttributes(attribute.Int("bulk.members", len(archive.members)))
	s.logger.InfoWithContextf(ctx, "[Bulk Download] Streaming %d/%d members of %s", len(archive.members), len(batch.Files), batch.BulkID)
	return archive, nil
}

// memberName keeps only the final path element of a client supplied name.
func memberName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
