package entity

// Stats is the aggregate projection served by the statistics endpoint
type Stats struct {
	TotalFiles        int64 `json:"totalFiles"`
	TotalBulkUploads  int64 `json:"totalBulkUploads"`
	TotalDownloads    int64 `json:"totalDownloads"`
	ActiveFiles       int64 `json:"activeFiles"`
	ActiveBulkUploads int64 `json:"activeBulkUploads"`
}
