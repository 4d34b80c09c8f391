package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/access"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/models"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/password"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/ratelimit"
)

const testShareID = "abcdefghijklmnopqrstuvwxyzABC012"

func seedCleanRecord(t *testing.T, meta *stubMeta, pw string) {
	t.Helper()
	var hash string
	if pw != "" {
		var err error
		hash, err = password.Hash(pw)
		require.NoError(t, err)
	}
	now := time.Now()
	meta.files[testShareID] = &models.FileRecord{
		ShareID:          testShareID,
		OriginalFilename: "report.pdf",
		StorageKey:       now.UTC().Format("2006/01/02") + "/" + testShareID + "/report.pdf",
		FileSize:         1024,
		MimeType:         "application/pdf",
		PasswordHash:     hash,
		UploadedAt:       now.Unix(),
		ExpiresAt:        now.Add(48 * time.Hour).Unix(),
		ScanStatus:       models.ScanClean,
	}
}

type stubMeta struct {
	files map[string]*models.FileRecord
}

func (s *stubMeta) SaveFileRecord(_ context.Context, rec *models.FileRecord) error {
	s.files[rec.ShareID] = rec
	return nil
}

func (s *stubMeta) GetFileRecord(_ context.Context, shareID string) (*models.FileRecord, bool, error) {
	rec, ok := s.files[shareID]
	return rec, ok, nil
}

func (s *stubMeta) IncrementDownloadCount(context.Context, string) (int64, error) { return 1, nil }

func (s *stubMeta) DeleteFileRecord(_ context.Context, shareID string) (bool, error) {
	_, ok := s.files[shareID]
	delete(s.files, shareID)
	return ok, nil
}

func (s *stubMeta) CreateDownloadToken(context.Context, *models.DownloadToken) error { return nil }

func (s *stubMeta) ConsumeDownloadToken(context.Context, string, time.Time) (*models.DownloadToken, bool, error) {
	return nil, false, nil
}

type stubObjects struct{}

func (stubObjects) PresignPut(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/put/" + key, nil
}

func (stubObjects) PresignGet(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://storage.test/get/" + key, nil
}

func (stubObjects) Exists(context.Context, string) (bool, int64, error) { return true, 1, nil }
func (stubObjects) DeleteByPrefix(context.Context, string) error        { return nil }

type stubLimiter struct {
	deny bool
}

func (s *stubLimiter) Check(context.Context, string, string) ratelimit.Result {
	return ratelimit.Result{Allowed: !s.deny}
}

func (s *stubLimiter) Record(context.Context, string, string, bool) error { return nil }

func (s *stubLimiter) CheckGeneric(context.Context, string, string, time.Duration, int64) bool {
	return !s.deny
}

type stubEvents struct{}

func (stubEvents) Publish(string, interface{}) error { return nil }

func newTestRouter(lim *stubLimiter) (*gin.Engine, *stubMeta) {
	gin.SetMode(gin.TestMode)

	meta := &stubMeta{files: make(map[string]*models.FileRecord)}
	svc := access.NewService(access.DefaultConfig("https://share.test"),
		meta, stubObjects{}, lim, stubEvents{}, nil)
	h := NewShareHandler(svc, nil, Counters{})

	r := gin.New()
	r.POST("/api/upload", h.Upload)
	r.GET("/api/files/:shareId/info", h.FileInfo)
	r.POST("/api/files/:shareId/download", h.RequestDownload)
	return r, meta
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadReturnsShareLink(t *testing.T) {
	r, meta := newTestRouter(&stubLimiter{})

	w := doJSON(t, r, http.MethodPost, "/api/upload",
		`{"fileName":"report.pdf","fileSize":1024,"contentType":"application/pdf"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://share.test/s/"+resp.ShareID, resp.ShareURL)
	assert.Contains(t, resp.UploadURL, "https://storage.test/put/")
	assert.Contains(t, meta.files, resp.ShareID)
}

func TestUnknownShareRendersErrorEnvelope(t *testing.T) {
	r, _ := newTestRouter(&stubLimiter{})

	w := doJSON(t, r, http.MethodGet,
		"/api/files/abcdefghijklmnopqrstuvwxyzABC012/info", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "FILE_NOT_FOUND", env.Error.Code)
	assert.NotEmpty(t, env.Error.Message)
}

func TestMalformedUploadBodyIsBadRequest(t *testing.T) {
	r, _ := newTestRouter(&stubLimiter{})

	w := doJSON(t, r, http.MethodPost, "/api/upload", `{"fileSize":"not a number"`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestChunkedBodyPasswordIsParsed(t *testing.T) {
	// Chunked requests carry ContentLength -1; the password must still
	// reach the gate.
	r, meta := newTestRouter(&stubLimiter{})
	seedCleanRecord(t, meta, "Str0ng!Pass")

	req := httptest.NewRequest(http.MethodPost,
		"/api/files/"+testShareID+"/download",
		strings.NewReader(`{"password":"Str0ng!Pass"}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.DownloadTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.DownloadToken)
}

func TestEmptyBodyDownloadOnUnprotectedShare(t *testing.T) {
	r, meta := newTestRouter(&stubLimiter{})
	seedCleanRecord(t, meta, "")

	req := httptest.NewRequest(http.MethodPost,
		"/api/files/"+testShareID+"/download", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestThrottledRequestIsTooManyRequests(t *testing.T) {
	r, _ := newTestRouter(&stubLimiter{deny: true})

	w := doJSON(t, r, http.MethodPost,
		"/api/files/abcdefghijklmnopqrstuvwxyzABC012/download", `{}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}
