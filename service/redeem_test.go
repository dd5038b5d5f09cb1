package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadRoundTrip(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	res, err := h.upload.UploadSingle(ctx, staged("report.pdf", "application/pdf", "%PDF-1.7 body"), "ip", h.links)
	require.NoError(t, err)

	meta, err := h.redeem.Meta(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.DownloadCount)
	assert.Equal(t, "report.pdf", meta.FileName)

	d, err := h.redeem.OpenByID(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(readAll(t, d)))
	assert.Equal(t, "report.pdf", d.Entry.OriginalName)

	meta, err = h.redeem.Meta(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.DownloadCount)

	d, err = h.redeem.OpenByCode(ctx, " "+strings.ToLower(res.UniqueCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(readAll(t, d)))

	meta, err = h.redeem.Meta(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.DownloadCount)
}

func TestDownloadUnknown(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	_, err := h.redeem.OpenByID(ctx, "not-a-uuid")
	requireKind(t, err, KindNotFound)

	_, err = h.redeem.OpenByID(ctx, "7b7c1f0e-2a5d-4d43-9d1e-0c3c9b1a5e11")
	requireKind(t, err, KindNotFound)

	_, err = h.redeem.OpenByCode(ctx, "ZZZZZZZZ")
	requireKind(t, err, KindNotFound)

	_, err = h.redeem.Meta(ctx, "nope")
	requireKind(t, err, KindNotFound)
}

func TestExpiredFileIsUnreachable(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	res, err := h.upload.UploadSingle(ctx, staged("a.txt", "text/plain", "a"), "ip", h.links)
	require.NoError(t, err)

	h.clock.Advance(5*time.Minute + time.Second)

	_, err = h.redeem.OpenByID(ctx, res.File.ID)
	requireKind(t, err, KindExpired)
	_, err = h.redeem.OpenByCode(ctx, res.UniqueCode)
	requireKind(t, err, KindExpired)
	_, err = h.redeem.Check(ctx, res.UniqueCode, h.links)
	requireKind(t, err, KindExpired)

	// meta still answers and the count did not move
	meta, err := h.redeem.Meta(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.DownloadCount)
}

func TestExpiryIsCheckedBeforeQuota(t *testing.T) {
	h := newHarness(t, NewPolicyWith(time.Minute, 1024, 10, 1, []string{"text/plain"}))
	ctx := context.Background()

	res, err := h.upload.UploadSingle(ctx, staged("a.txt", "text/plain", "a"), "ip", h.links)
	require.NoError(t, err)
	d, err := h.redeem.OpenByID(ctx, res.File.ID)
	require.NoError(t, err)
	readAll(t, d)

	h.clock.Advance(2 * time.Minute)
	_, err = h.redeem.OpenByID(ctx, res.File.ID)
	requireKind(t, err, KindExpired)
}

func TestQuotaExceeded(t *testing.T) {
	h := newHarness(t, NewPolicyWith(time.Minute, 1024, 10, 2, []string{"text/plain"}))
	ctx := context.Background()

	res, err := h.upload.UploadSingle(ctx, staged("a.txt", "text/plain", "abc"), "ip", h.links)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		d, err := h.redeem.OpenByID(ctx, res.File.ID)
		require.NoError(t, err)
		readAll(t, d)
	}

	_, err = h.redeem.OpenByCode(ctx, res.UniqueCode)
	requireKind(t, err, KindQuotaExceeded)

	meta, err := h.redeem.Meta(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.DownloadCount)

	// check does not care about the quota
	check, err := h.redeem.Check(ctx, res.UniqueCode, h.links)
	require.NoError(t, err)
	assert.Equal(t, 2, check.DownloadCount)
}

func TestBlobMissingIsNotNotFound(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	res, err := h.upload.UploadSingle(ctx, staged("a.txt", "text/plain", "a"), "ip", h.links)
	require.NoError(t, err)
	entry, err := h.repo.FileEntryRepo.FindByCode(ctx, res.UniqueCode)
	require.NoError(t, err)
	require.NoError(t, h.blobs.Delete(ctx, entry.BlobName))

	_, err = h.redeem.OpenByID(ctx, res.File.ID)
	requireKind(t, err, KindBlobMissing)

	meta, err := h.redeem.Meta(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.DownloadCount)
}

func TestCheck(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	res, err := h.upload.UploadSingle(ctx, staged("pic.png", "image/png", "png"), "ip", h.links)
	require.NoError(t, err)

	check, err := h.redeem.Check(ctx, strings.ToLower(res.UniqueCode), h.links)
	require.NoError(t, err)
	assert.Equal(t, res.UniqueCode, check.UniqueCode)
	assert.Equal(t, res.File.ID, check.ID)
	assert.Equal(t, "pic.png", check.Name)
	assert.Equal(t, "http://share.test/api/v1/file/download/code/"+res.UniqueCode, check.DownloadURL)
	assert.Contains(t, check.QRCode, "data:image/png;base64,")

	meta, err := h.redeem.Meta(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.DownloadCount)

	_, err = h.redeem.Check(ctx, "   ", h.links)
	requireKind(t, err, KindValidation)
	_, err = h.redeem.Check(ctx, "NOPE2345", h.links)
	requireKind(t, err, KindNotFound)
}

func uploadBatch(t *testing.T, h *harness, files ...*StagedFile) *BulkUploadResult {
	t.Helper()
	res, err := h.upload.UploadBulk(context.Background(), files, "ip", h.links)
	require.NoError(t, err)
	return res
}

func unzip(t *testing.T, archive *Archive) map[string]string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, archive.Stream(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = string(body)
	}
	return out
}

func TestBulkDetail(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	res := uploadBatch(t, h,
		staged("a.txt", "text/plain", "a"),
		staged("b.txt", "text/plain", "b"),
		staged("bad.exe", "application/x-msdownload", "MZ"),
	)

	detail, err := h.redeem.BulkDetail(ctx, strings.ToLower(res.BulkID), h.links)
	require.NoError(t, err)
	assert.Equal(t, res.BulkID, detail.BulkID)
	assert.Equal(t, BulkSummary{TotalFiles: 3, Successful: 2, Failed: 1}, detail.Summary)
	require.Len(t, detail.Files, 2)
	assert.Equal(t, res.Files[0].Code, detail.Files[0].Code)
	assert.Equal(t, res.Files[1].DownloadURL, detail.Files[1].DownloadURL)

	_, err = h.redeem.BulkDetail(ctx, "MISSING2", h.links)
	requireKind(t, err, KindNotFound)

	h.clock.Advance(10 * time.Minute)
	_, err = h.redeem.BulkDetail(ctx, res.BulkID, h.links)
	requireKind(t, err, KindExpired)
}

func TestOpenBulk(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	res := uploadBatch(t, h,
		staged("a.txt", "text/plain", "alpha"),
		staged("dir/a.txt", "text/plain", "second alpha"),
		staged("c.csv", "text/csv", "x,y"),
	)

	archive, err := h.redeem.OpenBulk(ctx, res.BulkID)
	require.NoError(t, err)
	assert.Equal(t, "sharefiles-bulk-"+res.BulkID+".zip", archive.FileName)
	assert.Equal(t, []string{"a.txt", "a (1).txt", "c.csv"}, archive.MemberNames())

	members := unzip(t, archive)
	assert.Equal(t, map[string]string{
		"a.txt":     "alpha",
		"a (1).txt": "second alpha",
		"c.csv":     "x,y",
	}, members)

	// every member spent one credit
	for _, f := range res.Files {
		meta, err := h.redeem.Meta(ctx, f.FileID)
		require.NoError(t, err)
		assert.Equal(t, 1, meta.DownloadCount)
	}
}

func TestOpenBulkSkipsMissingBlob(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	res := uploadBatch(t, h,
		staged("keep.txt", "text/plain", "kept"),
		staged("gone.txt", "text/plain", "lost"),
	)
	gone, err := h.repo.FileEntryRepo.FindByCode(ctx, res.Files[1].Code)
	require.NoError(t, err)
	require.NoError(t, h.blobs.Delete(ctx, gone.BlobName))

	archive, err := h.redeem.OpenBulk(ctx, res.BulkID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"keep.txt": "kept"}, unzip(t, archive))

	meta, err := h.redeem.Meta(ctx, gone.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, meta.DownloadCount)
}

func TestOpenBulkQuota(t *testing.T) {
	h := newHarness(t, NewPolicyWith(time.Minute, 1024, 10, 1, []string{"text/plain"}))
	ctx := context.Background()

	res := uploadBatch(t, h,
		staged("a.txt", "text/plain", "a"),
		staged("b.txt", "text/plain", "b"),
	)

	// spend a.txt individually, the archive then only carries b.txt
	d, err := h.redeem.OpenByID(ctx, res.Files[0].FileID)
	require.NoError(t, err)
	readAll(t, d)

	archive, err := h.redeem.OpenBulk(ctx, res.BulkID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, archive.MemberNames())
	archive.Close()

	_, err = h.redeem.OpenBulk(ctx, res.BulkID)
	requireKind(t, err, KindQuotaExceeded)
}

func TestOpenBulkAllBlobsMissing(t *testing.T) {
	h := newHarness(t, testPolicy())
	ctx := context.Background()

	res := uploadBatch(t, h, staged("a.txt", "text/plain", "a"))
	entry, err := h.repo.FileEntryRepo.FindByCode(ctx, res.Files[0].Code)
	require.NoError(t, err)
	require.NoError(t, h.blobs.Delete(ctx, entry.BlobName))

	_, err = h.redeem.OpenBulk(ctx, res.BulkID)
	requireKind(t, err, KindBlobMissing)
}

func TestMemberName(t *testing.T) {
	cases := map[string]string{
		"plain.txt":          "plain.txt",
		"dir/sub/file.txt":   "file.txt",
		`C:\Users\me\a.docx`: "a.docx",
		"../..":              "file",
		"":                   "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, memberName(in), in)
	}
}
