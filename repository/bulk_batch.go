package repository

import (
	"context"
	"time"

	"github.com/tnqbao/gau-share-service/entity"
	"gorm.io/gorm"
)

type BulkBatchRepository struct {
	db *gorm.DB
}

func NewBulkBatchRepository(db *gorm.DB) *BulkBatchRepository {
	return &BulkBatchRepository{db: db}
}

func (r *BulkBatchRepository) Create(ctx context.Context, batch *entity.BulkBatch) error {
	return translate(r.db.WithContext(ctx).Create(batch).Error)
}

func (r *BulkBatchRepository) FindByBulkID(ctx context.Context, bulkID string) (*entity.BulkBatch, error) {
	var batch entity.BulkBatch
	err := r.db.WithContext(ctx).Where("bulk_id = ?", bulkID).First(&batch).Error
	if err != nil {
		return nil, translate(err)
	}
	return &batch, nil
}

func (r *BulkBatchRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BulkBatch{}).Count(&count).Error
	return count, err
}

func (r *BulkBatchRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BulkBatch{}).
		Where("expires_at > ?", now.UTC()).
		Count(&count).Error
	return count, err
}

func (r *BulkBatchRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&entity.BulkBatch{})
	return res.RowsAffected, res.Error
}
