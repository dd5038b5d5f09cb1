package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-share-service/config"
	"github.com/tnqbao/gau-share-service/http/controller"
	"github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/repository"
)

const baseURL = "http://share.test"

type envelope struct {
	StatusCode  int             `json:"statusCode"`
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	FailedFiles []struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	} `json:"failedFiles"`
}

type uploadData struct {
	File struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"file"`
	QRCode      string `json:"qrCode"`
	DownloadURL string `json:"downloadUrl"`
	UniqueCode  string `json:"uniqueCode"`
}

type bulkData struct {
	BulkID          string `json:"bulkId"`
	BulkDownloadURL string `json:"bulkDownloadUrl"`
	Summary         struct {
		TotalFiles int `json:"totalFiles"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
	} `json:"summary"`
}

type testServer struct {
	router *gin.Engine
	infra  *infra.Infra
	repo   *repository.Repository
}

type part struct {
	field, name, mime, body string
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, maxDownloads int) *testServer {
	t.Helper()

	env := &config.EnvConfig{}
	env.Upload.ExpiryMinutes = 5
	env.Upload.MaxFileSize = 1024
	env.Upload.MaxBulkFiles = 3
	env.Upload.MaxDownloads = maxDownloads
	env.Upload.AllowedMimeTypes = config.DefaultAllowedMimeTypes
	env.CORS.AllowOrigins = []string{"http://localhost:5173"}
	env.PublicBaseURL = baseURL

	db, err := infra.NewSQLiteDB(filepath.Join(t.TempDir(), "share.db"))
	require.NoError(t, err)
	require.NoError(t, infra.MigrateSchema(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	blobs, err := infra.NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	metrics, err := infra.InitMetrics()
	require.NoError(t, err)

	inf := &infra.Infra{
		Logger:  infra.NewDiscardLogger(),
		Metrics: metrics,
		Blob:    blobs,
		QRCode:  infra.NewQRCodeGenerator(),
	}
	repo := repository.NewRepository(db)
	ctrl := controller.NewController(&config.Config{EnvConfig: env}, inf, repo)

	return &testServer{router: SetupRouter(ctrl), infra: inf, repo: repo}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, path string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.name))
		if p.mime != "" {
			h.Set("Content-Type", p.mime)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (s *testServer) upload(t *testing.T, name, mime, body string) uploadData {
	t.Helper()
	w := s.do(multipartRequest(t, "/api/v1/file/upload", part{"file", name, mime, body}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data uploadData
	env := decode(t, w, &data)
	require.True(t, env.Success)
	require.Equal(t, "File uploaded successfully", env.Message)
	return data
}

func get(url string) *http.Request {
	return httptest.NewRequest(http.MethodGet, strings.TrimPrefix(url, baseURL), nil)
}

func TestUploadAndDownload(t *testing.T) {
	s := newTestServer(t, 10)

	data := s.upload(t, "hello world.txt", "", "hello, share")
	assert.Equal(t, "hello world.txt", data.File.Name)
	assert.Equal(t, int64(12), data.File.Size)
	assert.Equal(t, baseURL+"/api/v1/file/download/id/"+data.File.ID, data.DownloadURL)
	assert.True(t, strings.HasPrefix(data.QRCode, "data:image/png;base64,"))

	w := s.do(get(data.DownloadURL))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello, share", w.Body.String())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="hello world.txt"`, w.Header().Get("Content-Disposition"))

	w = s.do(get("/api/v1/file/meta/" + data.File.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var meta struct {
		DownloadCount int `json:"downloadCount"`
		MaxDownloads  int `json:"maxDownloads"`
	}
	decode(t, w, &meta)
	assert.Equal(t, 1, meta.DownloadCount)
	assert.Equal(t, 10, meta.MaxDownloads)

	w = s.do(get("/api/v1/file/download/code/" + strings.ToLower(data.UniqueCode)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello, share", w.Body.String())
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t, 10)

	w := s.do(multipartRequest(t, "/api/v1/file/upload", part{"other", "a.txt", "text/plain", "a"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	assert.False(t, env.Success)

	w = s.do(multipartRequest(t, "/api/v1/file/upload", part{"file", "big.txt", "text/plain", strings.Repeat("x", 2000)}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w, nil).Message, "File size too large!")

	w = s.do(multipartRequest(t, "/api/v1/file/upload", part{"file", "run.sh", "application/x-sh", "#!/bin/sh"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "File type application/x-sh is not allowed", decode(t, w, nil).Message)

	w = s.do(multipartRequest(t, "/api/v1/file/upload", part{"file", "huge.txt", "text/plain", strings.Repeat("x", 2<<20)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDownloadFailures(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do(get("/api/v1/file/download/id/not-a-uuid"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w, nil)
	assert.False(t, env.Success)
	assert.Equal(t, "File not found", env.Message)

	data := s.upload(t, "once.txt", "text/plain", "once")
	require.Equal(t, http.StatusOK, s.do(get(data.DownloadURL)).Code)

	w = s.do(get(data.DownloadURL))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Download limit exceeded", decode(t, w, nil).Message)
}

func TestBlobMissingAnswers404(t *testing.T) {
	s := newTestServer(t, 10)
	data := s.upload(t, "a.txt", "text/plain", "a")

	entry, err := s.repo.FileEntryRepo.FindByCode(t.Context(), data.UniqueCode)
	require.NoError(t, err)
	require.NoError(t, s.infra.Blob.Delete(t.Context(), entry.BlobName))

	w := s.do(get(data.DownloadURL))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File missing", decode(t, w, nil).Message)
}

func TestCheckCode(t *testing.T) {
	s := newTestServer(t, 10)
	data := s.upload(t, "a.pdf", "application/pdf", "%PDF")

	check := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/file/check", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return s.do(req)
	}

	w := check(`{"code":"` + strings.ToLower(data.UniqueCode) + `"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		UniqueCode  string `json:"uniqueCode"`
		Name        string `json:"name"`
		DownloadURL string `json:"downloadUrl"`
	}
	env := decode(t, w, &result)
	assert.Equal(t, "Code verified successfully", env.Message)
	assert.Equal(t, data.UniqueCode, result.UniqueCode)
	assert.Equal(t, baseURL+"/api/v1/file/download/code/"+data.UniqueCode, result.DownloadURL)

	w = check(`{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Code is required", decode(t, w, nil).Message)

	w = check(`{"code":"NOPE2345"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid code", decode(t, w, nil).Message)
}

func TestBulkUploadAndDownload(t *testing.T) {
	s := newTestServer(t, 10)

	w := s.do(multipartRequest(t, "/api/v1/file/bulk/upload",
		part{"files", "a.txt", "text/plain", "first"},
		part{"files", "a.txt", "text/plain", "second"},
		part{"files", "bad.sh", "application/x-sh", "#!"},
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var bulk bulkData
	env := decode(t, w, &bulk)
	assert.Equal(t, "Bulk upload completed. 2 files uploaded successfully", env.Message)
	assert.Equal(t, 3, bulk.Summary.TotalFiles)
	assert.Equal(t, 2, bulk.Summary.Successful)
	assert.Equal(t, 1, bulk.Summary.Failed)

	w = s.do(get("/api/v1/file/bulk/" + bulk.BulkID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bulk upload details retrieved successfully", decode(t, w, nil).Message)

	w = s.do(get(bulk.BulkDownloadURL))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=sharefiles-bulk-`+bulk.BulkID+`.zip`, w.Header().Get("Content-Disposition"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		got[f.Name] = string(b)
	}
	assert.Equal(t, map[string]string{"a.txt": "first", "a (1).txt": "second"}, got)

	w = s.do(get("/api/v1/file/bulk/download/UNKNOWN2"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkUploadRejections(t *testing.T) {
	s := newTestServer(t, 10)

	w := s.do(multipartRequest(t, "/api/v1/file/bulk/upload",
		part{"files", "a.sh", "application/x-sh", "#!"},
		part{"files", "b.txt", "text/plain", strings.Repeat("b", 1500)},
	))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "No valid files to upload", env.Message)
	assert.Len(t, env.FailedFiles, 2)

	w = s.do(multipartRequest(t, "/api/v1/file/bulk/upload",
		part{"files", "1.txt", "text/plain", "1"},
		part{"files", "2.txt", "text/plain", "2"},
		part{"files", "3.txt", "text/plain", "3"},
		part{"files", "4.txt", "text/plain", "4"},
	))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(multipartRequest(t, "/api/v1/file/bulk/upload"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, 10)
	data := s.upload(t, "a.txt", "text/plain", "a")
	require.Equal(t, http.StatusOK, s.do(get(data.DownloadURL)).Code)

	w := s.do(get("/api/v1/file/stats"))
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		TotalFiles     int64 `json:"totalFiles"`
		TotalDownloads int64 `json:"totalDownloads"`
		ActiveFiles    int64 `json:"activeFiles"`
	}
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.TotalDownloads)
	assert.Equal(t, int64(1), stats.ActiveFiles)
}
