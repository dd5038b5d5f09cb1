package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tnqbao/gau-share-service/entity"
	"github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/repository"
	"github.com/tnqbao/gau-share-service/utils"
)

const (
	maxCodeAttempts   = 5
	bulkUploadWorkers = 4
)

type FileView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimetype"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UploadResult struct {
	File        FileView  `json:"file"`
	QRCode      string    `json:"qrCode"`
	DownloadURL string    `json:"downloadUrl"`
	UniqueCode  string    `json:"uniqueCode"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type BulkFileResult struct {
	FileID       string                 `json:"fileId"`
	OriginalName string                 `json:"originalName"`
	Size         int64                  `json:"size"`
	MimeType     string                 `json:"mimetype"`
	Code         string                 `json:"code"`
	DownloadURL  string                 `json:"downloadUrl"`
	QRCode       string                 `json:"qrCode"`
	ExpiresAt    time.Time              `json:"expiresAt"`
	Status       entity.BatchFileStatus `json:"status"`
}

type FailedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type BulkSummary struct {
	TotalFiles int `json:"totalFiles"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type BulkUploadResult struct {
	BulkID          string           `json:"bulkId"`
	BulkDownloadURL string           `json:"bulkDownloadUrl"`
	BulkQRCode      string           `json:"bulkQrCode"`
	Files           []BulkFileResult `json:"files"`
	Summary         BulkSummary      `json:"summary"`
	FailedFiles     []FailedFile     `json:"failedFiles"`
	ExpiresAt       time.Time        `json:"expiresAt"`
}

type UploadService struct {
	policy  Policy
	entries FileEntryStore
	batches BulkBatchStore
	blobs   infra.BlobStore
	qr      QRGenerator
	logger  *infra.LoggerClient
	metrics *infra.Metrics
	tracer  trace.Tracer

	newCode func() (string, error)
	now     func() time.Time
}

func NewUploadService(policy Policy, entries FileEntryStore, batches BulkBatchStore, blobs infra.BlobStore, qr QRGenerator, logger *infra.LoggerClient, metrics *infra.Metrics) *UploadService {
	return &UploadService{
		policy:  policy,
		entries: entries,
		batches: batches,
		blobs:   blobs,
		qr:      qr,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/tnqbao/gau-share-service/service"),
		newCode: utils.GenerateCode,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UploadSingle stores one file and returns its redemption payload.
func (s *UploadService) UploadSingle(ctx context.Context, file *StagedFile, uploader string, links Links) (*UploadResult, error) {
	ctx, span := s.tracer.Start(ctx, "UploadService.UploadSingle")
	defer span.End()

	if file == nil {
		return nil, ValidationError("File is required")
	}
	span.SetAttributes(attribute.String("file.name", file.OriginalName), attribute.Int64("file.size", file.Size))

	if reason := s.rejectReason(file); reason != "" {
		s.metrics.UploadFailures.Add(ctx, 1)
		return nil, ValidationError(reason)
	}

	id := uuid.New()
	downloadURL := links.DownloadByID(id.String())
	qrCode, err := s.qr.DataURL(downloadURL)
	if err != nil {
		s.metrics.UploadFailures.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, UpstreamError("Failed to generate QR code", err)
	}

	now := s.now()
	entry, err := s.storeFile(ctx, id, file, uploader, now, now.Add(s.policy.TTL()))
	if err != nil {
		s.metrics.UploadFailures.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.logger.InfoWithContextf(ctx, "[Upload] Stored '%s' (%s) as %s, code %s", entry.OriginalName, humanize.IBytes(uint64(entry.Size)), entry.BlobName, entry.Code)

	return &UploadResult{
		File: FileView{
			ID:        entry.ID.String(),
			Name:      entry.OriginalName,
			Size:      entry.Size,
			MimeType:  entry.MimeType,
			ExpiresAt: entry.ExpiresAt,
		},
		QRCode:      qrCode,
		DownloadURL: downloadURL,
		UniqueCode:  entry.Code,
		ExpiresAt:   entry.ExpiresAt,
	}, nil
}

type bulkOutcome struct {
	result  *BulkFileResult
	entry   *entity.FileEntry
	invalid string
	failed  string
}

// UploadBulk stores every acceptable file independently. Rejected and failed
// files are reported, not rolled back. A batch is persisted only when at least
// one file made it.
func (s *UploadService) UploadBulk(ctx context.Context, files []*StagedFile, uploader string, links Links) (*BulkUploadResult, error) {
	ctx, span := s.tracer.Start(ctx, "UploadService.UploadBulk")
	defer span.End()

	if len(files) == 0 {
		return nil, ValidationError("At least one file is required")
	}
	if len(files) > s.policy.MaxBulkFiles() {
		return nil, ValidationError(fmt.Sprintf("Too many files. Maximum %d files per bulk upload", s.policy.MaxBulkFiles()))
	}
	span.SetAttributes(attribute.Int("bulk.files", len(files)))

	now := s.now()
	expiresAt := now.Add(s.policy.TTL())
	outcomes := make([]bulkOutcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkUploadWorkers)
	for i, file := range files {
		if reason := s.rejectReason(file); reason != "" {
			outcomes[i].invalid = reason
			continue
		}
		g.Go(func() error {
			outcomes[i] = s.bulkStore(gctx, file, uploader, now, expiresAt, links)
			return nil
		})
	}
	_ = g.Wait()

	var (
		results      []BulkFileResult
		batchFiles   []entity.BatchFile
		invalidFiles []FailedFile
	)
	failed := make([]FailedFile, 0, len(files))
	for i, out := range outcomes {
		name := displayName(files[i])
		switch {
		case out.invalid != "":
			invalidFiles = append(invalidFiles, FailedFile{Name: name, Reason: out.invalid})
		case out.failed != "":
			failed = append(failed, FailedFile{Name: name, Reason: out.failed})
		default:
			results = append(results, *out.result)
			batchFiles = append(batchFiles, entity.BatchFile{
				FileEntryID:  out.entry.ID,
				OriginalName: out.entry.OriginalName,
				Size:         out.entry.Size,
				Status:       entity.BatchFileUploaded,
			})
		}
	}

	failed = append(failed, invalidFiles...)
	if n := len(failed); n > 0 {
		s.metrics.UploadFailures.Add(ctx, int64(n))
	}
	if len(results) == 0 {
		s.logger.WarningWithContextf(ctx, "[Bulk Upload] No file of %d was stored", len(files))
		return nil, &Error{Kind: KindValidation, Message: "No valid files to upload", Err: &BulkRejection{Files: failed}}
	}

	batch := &entity.BulkBatch{
		ID:                uuid.New(),
		Files:             batchFiles,
		TotalFiles:        len(files),
		SuccessfulUploads: len(results),
		FailedUploads:     len(failed),
		UploadedBy:        uploader,
		CreatedAt:         now,
		ExpiresAt:         expiresAt,
	}
	var bulkURL, bulkQR string
	if err := s.createWithFreshCode(ctx, func(code string) error {
		bulkURL = links.BulkDownload(code)
		qr, err := s.qr.DataURL(bulkURL)
		if err != nil {
			return UpstreamError("Failed to generate QR code", err)
		}
		bulkQR = qr
		batch.BulkID = code
		return s.batches.Create(ctx, batch)
	}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.logger.InfoWithContextf(ctx, "[Bulk Upload] Batch %s stored %d/%d files", batch.BulkID, len(results), len(files))

	return &BulkUploadResult{
		BulkID:          batch.BulkID,
		BulkDownloadURL: bulkURL,
		BulkQRCode:      bulkQR,
		Files:           results,
		Summary: BulkSummary{
			TotalFiles: len(files),
			Successful: len(results),
			Failed:     len(failed),
		},
		FailedFiles: failed,
		ExpiresAt:   expiresAt,
	}, nil
}

// BulkRejection lists why every file of a bulk request was turned down.
type BulkRejection struct {
	Files []FailedFile
}

func (r *BulkRejection) Error() string {
	return fmt.Sprintf("%d files rejected", len(r.Files))
}

func (s *UploadService) bulkStore(ctx context.Context, file *StagedFile, uploader string, now, expiresAt time.Time, links Links) bulkOutcome {
	id := uuid.New()
	downloadURL := links.DownloadByID(id.String())
	qrCode, err := s.qr.DataURL(downloadURL)
	if err != nil {
		s.logger.ErrorWithContextf(ctx, err, "[Bulk Upload] QR generation failed for '%s'", file.OriginalName)
		return bulkOutcome{failed: "Failed to generate QR code"}
	}

	entry, err := s.storeFile(ctx, id, file, uploader, now, expiresAt)
	if err != nil {
		return bulkOutcome{failed: failureReason(err)}
	}

	return bulkOutcome{
		entry: entry,
		result: &BulkFileResult{
			FileID:       entry.ID.String(),
			OriginalName: entry.OriginalName,
			Size:         entry.Size,
			MimeType:     entry.MimeType,
			Code:         entry.Code,
			DownloadURL:  downloadURL,
			QRCode:       qrCode,
			ExpiresAt:    entry.ExpiresAt,
			Status:       entity.BatchFileUploaded,
		},
	}
}

// rejectReason applies the size and type limits. Empty means acceptable.
func (s *UploadService) rejectReason(file *StagedFile) string {
	if file == nil {
		return "File is required"
	}
	if file.Size > s.policy.MaxFileSize() {
		return fmt.Sprintf("File size too large! Your file is %s. Maximum allowed size is %s.",
			humanize.IBytes(uint64(file.Size)), humanize.IBytes(uint64(s.policy.MaxFileSize())))
	}
	if !s.policy.MimeAllowed(file.MimeType) {
		return fmt.Sprintf("File type %s is not allowed", file.MimeType)
	}
	return ""
}

// storeFile writes the blob, then the entry. A failed entry write removes the blob again.
func (s *UploadService) storeFile(ctx context.Context, id uuid.UUID, file *StagedFile, uploader string, now, expiresAt time.Time) (*entity.FileEntry, error) {
	blobName, err := utils.BlobName(file.OriginalName, now)
	if err != nil {
		return nil, UpstreamError("Failed to store file", err)
	}

	body, err := file.Open()
	if err != nil {
		return nil, UpstreamError("Failed to read uploaded file", err)
	}
	err = s.blobs.Put(ctx, blobName, body, file.Size, file.MimeType)
	_ = body.Close()
	if err != nil {
		s.logger.ErrorWithContextf(ctx, err, "[Upload] Blob write failed for '%s'", file.OriginalName)
		return nil, UpstreamError("Failed to store file", err)
	}

	entry := &entity.FileEntry{
		ID:           id,
		BlobName:     blobName,
		OriginalName: file.OriginalName,
		Size:         file.Size,
		MimeType:     file.MimeType,
		UploadedBy:   uploader,
		MaxDownloads: s.policy.MaxDownloads(),
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}
	err = s.createWithFreshCode(ctx, func(code string) error {
		entry.Code = code
		return s.entries.Create(ctx, entry)
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), blobName); delErr != nil {
			s.logger.WarningWithContextf(ctx, "[Upload] Could not remove blob %s after failed entry write: %v", blobName, delErr)
		}
		return nil, err
	}

	s.metrics.Uploads.Add(ctx, 1)
	return entry, nil
}

// createWithFreshCode draws codes until create stops reporting a duplicate.
// Running out of attempts points at a broken generator or registry, so it is
// logged as an error and surfaced as an upstream failure.
func (s *UploadService) createWithFreshCode(ctx context.Context, create func(code string) error) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return UpstreamError("Failed to generate share code", err)
		}

		err = create(code)
		if err == nil {
			return nil
		}
		if _, ok := AsError(err); ok {
			return err
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			s.logger.ErrorWithContextf(ctx, err, "[Upload] Registry write failed")
			return UpstreamError("Failed to save file metadata", err)
		}
		s.logger.WarningWithContextf(ctx, "[Upload] Code collision on attempt %d/%d", attempt, maxCodeAttempts)
	}

	s.logger.ErrorWithContextf(ctx, ErrCodeSpaceExhausted, "[Upload] Gave up after %d colliding codes, check code entropy and registry health", maxCodeAttempts)
	return UpstreamError("Failed to generate share code", ErrCodeSpaceExhausted)
}

func failureReason(err error) string {
	if e, ok := AsError(err); ok {
		return e.Message
	}
	return "Upload failed"
}

func displayName(file *StagedFile) string {
	if file == nil {
		return ""
	}
	return file.OriginalName
}
