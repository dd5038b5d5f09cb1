package entity

import (
	"time"

	"github.com/google/uuid"
)

// FileEntry is the metadata record of one uploaded file.
type FileEntry struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Code          string    `json:"code" gorm:"type:varchar(32);not null;uniqueIndex"`
	BlobName      string    `json:"blob_name" gorm:"type:varchar(512);not null;index"`
	OriginalName  string    `json:"original_name" gorm:"type:varchar(512);not null"`
	Size          int64     `json:"size" gorm:"not null"`
	MimeType      string    `json:"mime_type" gorm:"type:varchar(255)"`
	UploadedBy    string    `json:"uploaded_by" gorm:"type:varchar(255)"`
	DownloadCount int       `json:"download_count" gorm:"not null;default:0"`
	MaxDownloads  int       `json:"max_downloads" gorm:"not null;default:10"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"not null;index"`
}

func (FileEntry) TableName() string {
	return "file_entries"
}

func (f *FileEntry) IsExpired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

func (f *FileEntry) QuotaReached() bool {
	return f.DownloadCount >= f.MaxDownloads
}
