package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-share-service/entity"
	"gorm.io/gorm"
)

type FileEntryRepository struct {
	db *gorm.DB
}

func NewFileEntryRepository(db *gorm.DB) *FileEntryRepository {
	return &FileEntryRepository{db: db}
}

// Create returns ErrDuplicateKey when the code (or id) is already taken.
func (r *FileEntryRepository) Create(ctx context.Context, entry *entity.FileEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *FileEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.FileEntry, error) {
	var entry entity.FileEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (r *FileEntryRepository) FindByCode(ctx context.Context, code string) (*entity.FileEntry, error) {
	var entry entity.FileEntry
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

// FindByIDs returns the entries that still exist, keyed by id.
func (r *FileEntryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.FileEntry, error) {
	out := make(map[uuid.UUID]entity.FileEntry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var entries []entity.FileEntry
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&entries).Error; err != nil {
		return nil, err
	}
	for _, e := range entries {
		out[e.ID] = e
	}
	return out, nil
}

// ConsumeDownload takes one download credit from a live entry. The quota and
// expiry checks live in the UPDATE itself, so concurrent callers can never push
// download_count past max_downloads. It reports whether a credit was taken.
func (r *FileEntryRepository) ConsumeDownload(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.FileEntry{}).
		Where("id = ? AND download_count < max_downloads AND expires_at >= ?", id, now.UTC()).
		UpdateColumn("download_count", gorm.Expr("download_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *FileEntryRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.FileEntry{}).Count(&count).Error
	return count, err
}

func (r *FileEntryRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.FileEntry{}).
		Where("expires_at > ?", now.UTC()).
		Count(&count).Error
	return count, err
}

func (r *FileEntryRepository) SumDownloadCount(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.FileEntry{}).
		Select("COALESCE(SUM(download_count), 0)").
		Scan(&total).Error
	return total, err
}

// FindExpired returns up to limit entries whose expiry passed before now.
func (r *FileEntryRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]entity.FileEntry, error) {
	var entries []entity.FileEntry
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Order("expires_at").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *FileEntryRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entity.FileEntry{})
	return res.RowsAffected, res.Error
}

// BlobNamesIn reports which of the given stored blob names are still referenced.
func (r *FileEntryRepository) BlobNamesIn(ctx context.Context, names []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(names))
	if len(names) == 0 {
		return out, nil
	}

	var found []string
	if err := r.db.WithContext(ctx).Model(&entity.FileEntry{}).
		Where("blob_name IN ?", names).
		Pluck("blob_name", &found).Error; err != nil {
		return nil, err
	}
	for _, name := range found {
		out[name] = struct{}{}
	}
	return out, nil
}
