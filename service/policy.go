package service

import (
	"time"

	"github.com/tnqbao/gau-share-service/config"
)

// Policy holds the upload and redemption limits. It is built once from the
// environment and passed by value; nothing in it can be changed afterwards.
type Policy struct {
	ttl          time.Duration
	maxFileSize  int64
	maxBulkFiles int
	maxDownloads int
	allowedMime  map[string]struct{}
}

func NewPolicy(cfg *config.EnvConfig) Policy {
	return NewPolicyWith(
		time.Duration(cfg.Upload.ExpiryMinutes)*time.Minute,
		cfg.Upload.MaxFileSize,
		cfg.Upload.MaxBulkFiles,
		cfg.Upload.MaxDownloads,
		cfg.Upload.AllowedMimeTypes,
	)
}

func NewPolicyWith(ttl time.Duration, maxFileSize int64, maxBulkFiles, maxDownloads int, mimeTypes []string) Policy {
	allowed := make(map[string]struct{}, len(mimeTypes))
	for _, m := range mimeTypes {
		allowed[m] = struct{}{}
	}
	return Policy{
		ttl:          ttl,
		maxFileSize:  maxFileSize,
		maxBulkFiles: maxBulkFiles,
		maxDownloads: maxDownloads,
		allowedMime:  allowed,
	}
}

func (p Policy) TTL() time.Duration { return p.ttl }
func (p Policy) MaxFileSize() int64 { return p.maxFileSize }
func (p Policy) MaxBulkFiles() int { return p.maxBulkFiles }
func (p Policy) MaxDownloads() int { return p.maxDownloads }

func (p Policy) MimeAllowed(mimeType string) bool {
	_, ok := p.allowedMime[mimeType]
	return ok
}

