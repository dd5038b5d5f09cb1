package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BatchFileStatus represents the outcome of one file inside a bulk upload
type BatchFileStatus string

const BatchFileUploaded BatchFileStatus = "uploaded"

// BatchFile references one member entry of a bulk batch
type BatchFile struct {
	FileEntryID  uuid.UUID       `json:"file_entry_id"`
	OriginalName string          `json:"original_name"`
	Size         int64           `json:"size"`
	Status       BatchFileStatus `json:"status"`
}

// BulkBatch groups the entries created by one bulk upload. Files keeps insertion order.
type BulkBatch struct {
	ID                uuid.UUID                      `json:"id" gorm:"type:uuid;primaryKey"`
	BulkID            string                         `json:"bulk_id" gorm:"type:varchar(32);not null;uniqueIndex"`
	Files             datatypes.JSONSlice[BatchFile] `json:"files" gorm:"not null"`
	TotalFiles        int                            `json:"total_files" gorm:"not null"`
	SuccessfulUploads int                            `json:"successful_uploads" gorm:"not null"`
	FailedUploads     int                            `json:"failed_uploads" gorm:"not null"`
	UploadedBy        string                         `json:"uploaded_by" gorm:"type:varchar(255)"`
	CreatedAt         time.Time                      `json:"created_at" gorm:"not null"`
	ExpiresAt         time.Time                      `json:"expires_at" gorm:"not null;index"`
}

func (BulkBatch) TableName() string {
	return "bulk_batches"
}

func (b *BulkBatch) IsExpired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// EntryIDs returns the member entry ids in stored order.
func (b *BulkBatch) EntryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Files))
	for _, f := range b.Files {
		ids = append(ids, f.FileEntryID)
	}
	return ids
}
