package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/infra/produce"
)

const (
	reapBatchSize   = 500
	orphanCheckSize = 200
)

type ReapReport struct {
	ExpiredEntries int
	ExpiredBatches int
	OrphanBlobs    int
}

// ReaperService purges expired metadata and the blobs left behind by it. Blob
// removal goes through a BlobDeletePublisher, either the queue or InlineBlobDeleter.
type ReaperService struct {
	policy      Policy
	entries     FileEntryStore
	batches     BulkBatchStore
	blobs       infra.BlobStore
	deleter     BlobDeletePublisher
	orphanGrace time.Duration
	logger      *infra.LoggerClient
	metrics     *infra.Metrics

	now func() time.Time
}

func NewReaperService(policy Policy, entries FileEntryStore, batches BulkBatchStore, blobs infra.BlobStore, deleter BlobDeletePublisher, orphanGrace time.Duration, logger *infra.LoggerClient, metrics *infra.Metrics) *ReaperService {
	return &ReaperService{
		policy:      policy,
		entries:     entries,
		batches:     batches,
		blobs:       blobs,
		deleter:     deleter,
		orphanGrace: orphanGrace,
		logger:      logger,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run reaps every interval until ctx is cancelled.
func (r *ReaperService) Run(ctx context.Context, interval time.Duration) error {
	r.logger.InfoWithContextf(ctx, "[Reaper] Started, interval %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoWithContextf(ctx, "[Reaper] Shutting down...")
			return nil
		case <-ticker.C:
			report, err := r.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.ErrorWithContextf(ctx, err, "[Reaper] Pass failed: %v", err)
				continue
			}
			if report.ExpiredEntries+report.ExpiredBatches+report.OrphanBlobs > 0 {
				r.logger.InfoWithContextf(ctx, "[Reaper] Removed %d entries, %d batches, %d orphan blobs",
					report.ExpiredEntries, report.ExpiredBatches, report.OrphanBlobs)
			}
		}
	}
}

// RunOnce does one full pass: expired entries, expired batches, then orphan blobs.
func (r *ReaperService) RunOnce(ctx context.Context) (ReapReport, error) {
	var report ReapReport
	now := r.now()

	n, err := r.purgeExpiredEntries(ctx, now)
	report.ExpiredEntries = n
	if err != nil {
		return report, err
	}

	batches, err := r.batches.DeleteExpired(ctx, now)
	if err != nil {
		return report, err
	}
	report.ExpiredBatches = int(batches)
	r.metrics.RecordReaped(ctx, "batch", report.ExpiredBatches)

	orphans, err := r.removeOrphans(ctx, now)
	report.OrphanBlobs = orphans
	return report, err
}

// Rows go first; a blob whose delete message is lost becomes an orphan and
// is picked up by removeOrphans on a later pass.
func (r *ReaperService) purgeExpiredEntries(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		expired, err := r.entries.FindExpired(ctx, now, reapBatchSize)
		if err != nil {
			return total, err
		}
		if len(expired) == 0 {
			return total, nil
		}

		ids := make([]uuid.UUID, len(expired))
		for i, e := range expired {
			ids[i] = e.ID
		}
		if _, err := r.entries.DeleteByIDs(ctx, ids); err != nil {
			return total, err
		}
		total += len(expired)
		r.metrics.RecordReaped(ctx, "entry", len(expired))

		for _, e := range expired {
			msg := produce.BlobDeleteMessage{
				BlobName:    e.BlobName,
				FileEntryID: e.ID.String(),
				Reason:      produce.BlobDeleteReasonExpired,
			}
			if err := r.deleter.PublishBlobDelete(ctx, msg); err != nil {
				r.logger.WarningWithContextf(ctx, "[Reaper] Could not schedule delete of %s: %v", e.BlobName, err)
			}
		}

		if len(expired) < reapBatchSize {
			return total, nil
		}
	}
}

// removeOrphans deletes blobs that no entry references. Only blobs older than
// the TTL plus a grace period qualify, so an upload between its blob write and
// its entry write is never touched.
func (r *ReaperService) removeOrphans(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-(r.policy.TTL() + r.orphanGrace))
	removed := 0
	var pending []string

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		referenced, err := r.entries.BlobNamesIn(ctx, pending)
		if err != nil {
			return err
		}
		for _, name := range pending {
			if _, ok := referenced[name]; ok {
				continue
			}
			msg := produce.BlobDeleteMessage{BlobName: name, Reason: produce.BlobDeleteReasonOrphan}
			if err := r.deleter.PublishBlobDelete(ctx, msg); err != nil {
				r.logger.WarningWithContextf(ctx, "[Reaper] Could not schedule delete of orphan %s: %v", name, err)
				continue
			}
			removed++
		}
		pending = pending[:0]
		return nil
	}

	err := r.blobs.Walk(ctx, func(info infra.BlobInfo) error {
		if info.ModTime.IsZero() || info.ModTime.After(cutoff) {
			return nil
		}
		pending = append(pending, info.Name)
		if len(pending) >= orphanCheckSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	r.metrics.RecordReaped(ctx, "orphan_blob", removed)
	return removed, err
}

// InlineBlobDeleter removes blobs in-process when no message broker is available.
type InlineBlobDeleter struct {
	Blobs infra.BlobStore
}

func (d InlineBlobDeleter) PublishBlobDelete(ctx context.Context, message produce.BlobDeleteMessage) error {
	return d.Blobs.Delete(ctx, message.BlobName)
}
