package service

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-share-service/config"
	"github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/repository"
)

type harness struct {
	policy   Policy
	repo     *repository.Repository
	blobs    *infra.LocalBlobStore
	blobRoot string
	upload   *UploadService
	redeem   *RedeemService
	stats    *StatsService
	links    Links
	clock    *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testPolicy() Policy {
	return NewPolicyWith(5*time.Minute, 1024, 10, 10, config.DefaultAllowedMimeTypes)
}

func newHarness(t *testing.T, policy Policy) *harness {
	t.Helper()

	db, err := infra.NewSQLiteDB(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	require.NoError(t, infra.MigrateSchema(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	blobRoot := t.TempDir()
	blobs, err := infra.NewLocalBlobStore(blobRoot)
	require.NoError(t, err)

	metrics, err := infra.InitMetrics()
	require.NoError(t, err)

	logger := infra.NewDiscardLogger()
	repo := repository.NewRepository(db)
	qr := infra.NewQRCodeGenerator()
	clock := &fakeClock{t: time.Now().UTC()}

	upload := NewUploadService(policy, repo.FileEntryRepo, repo.BulkBatchRepo, blobs, qr, logger, metrics)
	upload.now = clock.Now
	redeem := NewRedeemService(repo.FileEntryRepo, repo.BulkBatchRepo, blobs, qr, logger, metrics)
	redeem.now = clock.Now
	stats := NewStatsService(repo.FileEntryRepo, repo.BulkBatchRepo)
	stats.now = clock.Now

	return &harness{
		policy:   policy,
		repo:     repo,
		blobs:    blobs,
		blobRoot: blobRoot,
		upload:   upload,
		redeem:   redeem,
		stats:    stats,
		links:    NewLinks("http://share.test"),
		clock:    clock,
	}
}

func staged(name, mime, content string) *StagedFile {
	return &StagedFile{
		OriginalName: name,
		Size:         int64(len(content)),
		MimeType:     mime,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func readAll(t *testing.T, d *Download) []byte {
	t.Helper()
	defer d.Body.Close()
	var buf bytes.Buffer
	_, err := io.Copy(&buf, d.Body)
	require.NoError(t, err)
	return buf.Bytes()
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected tagged error, got %v", err)
	require.Equal(t, kind, e.Kind, e.Error())
}

// failingBlobStore fails Put for one content type and behaves normally otherwise.
type failingBlobStore struct {
	infra.BlobStore
	failMime string
}

func (f failingBlobStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if contentType == f.failMime {
		return io.ErrUnexpectedEOF
	}
	return f.BlobStore.Put(ctx, name, r, size, contentType)
}
