package service

import (
	"context"
	"time"

	"github.com/tnqbao/gau-share-service/entity"
)

type StatsService struct {
	entries FileEntryStore
	batches BulkBatchStore
	now     func() time.Time
}

func NewStatsService(entries FileEntryStore, batches BulkBatchStore) *StatsService {
	return &StatsService{
		entries: entries,
		batches: batches,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Stats is best effort: rows past expiry count as totals until the reaper purges them.
func (s *StatsService) Stats(ctx context.Context) (*entity.Stats, error) {
	var (
		stats entity.Stats
		err   error
	)
	now := s.now()

	if stats.TotalFiles, err = s.entries.CountAll(ctx); err != nil {
		return nil, UpstreamError("Failed to count files", err)
	}
	if stats.TotalBulkUploads, err = s.batches.CountAll(ctx); err != nil {
		return nil, UpstreamError("Failed to count bulk uploads", err)
	}
	if stats.TotalDownloads, err = s.entries.SumDownloadCount(ctx); err != nil {
		return nil, UpstreamError("Failed to count downloads", err)
	}
	if stats.ActiveFiles, err = s.entries.CountActive(ctx, now); err != nil {
		return nil, UpstreamError("Failed to count active files", err)
	}
	if stats.ActiveBulkUploads, err = s.batches.CountActive(ctx, now); err != nil {
		return nil, UpstreamError("Failed to count active bulk uploads", err)
	}

	return &stats, nil
}
