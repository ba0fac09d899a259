package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/ai"
	"github.com/srmaas/errorreport/internal/auth"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/storage"
	"github.com/srmaas/errorreport/internal/testutil"
	"github.com/srmaas/errorreport/internal/upload"
	"github.com/srmaas/errorreport/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type testServer struct {
	router  *gin.Engine
	store   *storage.Storage
	uploads *upload.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.Register())

	store := storage.New(testutil.NewDB(t))
	offline := auth.NewOffline(store, zap.NewNop())
	require.NoError(t, offline.EnsureIdentities(context.Background()))

	uploads, err := upload.NewStore(t.TempDir())
	require.NoError(t, err)

	router := NewRouter(RouterDeps{
		Store:     store,
		Auth:      offline,
		Assistant: ai.NewHeuristic(nil),
		Uploads:   uploads,
		Logger:    zap.NewNop(),
	})
	return &testServer{router: router, store: store, uploads: uploads}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (s *testServer) createReport(t *testing.T, body gin.H) model.ErrorReport {
	t.Helper()
	w := s.doJSON(t, http.MethodPost, "/api/errors", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var report model.ErrorReport
	decode(t, w, &report)
	return report
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGenerateTitle(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		content  string
		wantCode int
		wantBody string
	}{
		{"twelve characters", "/api/errors/generate-title", "로그인이 안 돼요 계속", http.StatusOK, `{"title":"로그인 시스템 오류"}`},
		{"authenticated alias", "/api/ai/generate-title", "열차 운행이 계속 멈춰요", http.StatusOK, `{"title":"열차 운행 관련 오류"}`},
		{"too short", "/api/errors/generate-title", "짧은 내용", http.StatusBadRequest, `{"message":"Content must be at least 10 characters long"}`},
		{"missing", "/api/errors/generate-title", "", http.StatusBadRequest, `{"message":"Content must be at least 10 characters long"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.doJSON(t, http.MethodPost, tt.path, gin.H{"content": tt.content})
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestAnalyzeSystem(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/errors/analyze-system", gin.H{"content": "로그인 오류"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"system":"보안시스템"}`, w.Body.String())

	w = s.doJSON(t, http.MethodPost, "/api/errors/analyze-system", gin.H{"content": "로그인오"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Content must be at least 5 characters long"}`, w.Body.String())
}

func TestAnalyzeImage(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.uploads.Dir(), "shot.png"), pngHeader, 0o644))

	w := s.doJSON(t, http.MethodPost, "/api/errors/analyze-image", gin.H{"imagePath": "/uploads/shot.png"})
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, ai.OfflineImageAnalysis, resp["analysis"])

	w = s.doJSON(t, http.MethodPost, "/api/errors/analyze-image", gin.H{"imagePath": "/uploads/missing.png"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Image file not found"}`, w.Body.String())

	w = s.doJSON(t, http.MethodPost, "/api/errors/analyze-image", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranscribe(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/speech/transcribe", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Audio data is required"}`, w.Body.String())

	w = s.doJSON(t, http.MethodPost, "/api/speech/transcribe", gin.H{"audioData": "data:audio/webm;base64,***"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var failure map[string]string
	decode(t, w, &failure)
	assert.Equal(t, "Failed to transcribe audio", failure["message"])
	assert.NotEmpty(t, failure["error"])

	audio := base64.StdEncoding.EncodeToString([]byte("RIFF....WAVE"))
	w = s.doJSON(t, http.MethodPost, "/api/speech/transcribe", gin.H{"audioData": audio})
	assert.Equal(t, http.StatusOK, w.Code)
	var ok struct {
		Transcription string `json:"transcription"`
		Success       bool   `json:"success"`
	}
	decode(t, w, &ok)
	assert.True(t, ok.Success)
	assert.Equal(t, ai.TranscriptionFailed, ok.Transcription)
}

func TestCreateReport(t *testing.T) {
	s := newTestServer(t)

	report := s.createReport(t, gin.H{
		"title":   "발권기 화면 멈춤",
		"content": "3번 출구 발권기 화면이 멈췄습니다",
		"system":  "역무지원",
	})

	assert.NotZero(t, report.ID)
	assert.Equal(t, model.OfflineUserID, report.ReporterID)
	assert.Equal(t, model.StatusReceived, report.Status)
	assert.Equal(t, model.DefaultPriority, report.Priority)
	assert.Nil(t, report.Attachments)

	second := s.createReport(t, gin.H{"title": "다른 오류", "content": "다른 내용", "system": "기타"})
	assert.Greater(t, second.ID, report.ID)
}

func TestCreateReportFillsTitleAndSystem(t *testing.T) {
	s := newTestServer(t)

	report := s.createReport(t, gin.H{"content": "로그인 오류가 반복됩니다"})

	assert.Equal(t, "로그인 시스템 오류", report.Title)
	assert.Equal(t, "보안시스템", report.System)
}

func TestCreateReportValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing content", gin.H{"title": "제목", "system": "기타"}},
		{"unknown status", gin.H{"content": "내용", "status": "삭제됨"}},
		{"foreign attachment", gin.H{"content": "내용", "attachments": []string{"/etc/passwd"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.doJSON(t, http.MethodPost, "/api/errors", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"message":"Failed to create error report"}`, w.Body.String())
		})
	}
}

func TestCreateReportMultipart(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "화면 깨짐"))
	require.NoError(t, mw.WriteField("content", "안내 화면이 깨져서 보입니다"))
	require.NoError(t, mw.WriteField("system", "승객서비스"))
	require.NoError(t, mw.WriteField("browser", "Chrome"))
	for name, content := range map[string][]byte{"screen.png": pngHeader, "notes.txt": []byte("text only")} {
		fw, err := mw.CreateFormFile("attachments", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/errors", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := s.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var report model.ErrorReport
	decode(t, w, &report)
	require.Len(t, report.Attachments, 1)
	assert.True(t, strings.HasPrefix(report.Attachments[0], "/uploads/attachments-"))
	require.NotNil(t, report.Browser)
	assert.Equal(t, "Chrome", *report.Browser)
	assert.Nil(t, report.OS)

	w = s.do(httptest.NewRequest(http.MethodGet, report.Attachments[0], nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngHeader, w.Body.Bytes())
}

func TestServeUploadMissing(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/uploads/nothing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"File not found"}`, w.Body.String())
}

func TestGetUpdateDeleteReport(t *testing.T) {
	s := newTestServer(t)
	report := s.createReport(t, gin.H{"title": "제목", "content": "내용", "system": "기타"})
	path := "/api/errors/" + jsonID(report.ID)

	w := s.do(httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.doJSON(t, http.MethodPatch, path, gin.H{"status": "처리중", "priority": "높음"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.ErrorReport
	decode(t, w, &updated)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, "높음", updated.Priority)
	assert.Equal(t, "제목", updated.Title)

	w = s.doJSON(t, http.MethodPatch, path, gin.H{"status": "삭제됨"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Failed to update error"}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Error deleted successfully"}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Error not found"}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(t, http.MethodPatch, path, gin.H{"title": "새 제목"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateReportEmptyBody(t *testing.T) {
	s := newTestServer(t)
	report := s.createReport(t, gin.H{"title": "제목", "content": "내용", "system": "기타", "priority": "높음"})
	path := "/api/errors/" + jsonID(report.ID)

	for _, body := range []string{"", "{}"} {
		req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code, "body %q: %s", body, w.Body.String())

		var updated model.ErrorReport
		decode(t, w, &updated)
		assert.Equal(t, report.Title, updated.Title)
		assert.Equal(t, report.Priority, updated.Priority)
		assert.Equal(t, report.Status, updated.Status)
	}
}

func TestInvalidReportID(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		w := s.doJSON(t, method, "/api/errors/abc", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code, method)
		assert.JSONEq(t, `{"message":"Invalid error ID"}`, w.Body.String())
	}
}

func TestListReports(t *testing.T) {
	s := newTestServer(t)
	s.createReport(t, gin.H{"title": "로그인 실패", "content": "내용", "system": "보안시스템"})
	s.createReport(t, gin.H{"title": "열차 지연", "content": "내용", "system": "열차운행", "status": "완료"})
	s.createReport(t, gin.H{"title": "발권 오류", "content": "내용", "system": "역무지원"})

	type listResponse struct {
		Errors     []model.ErrorReport `json:"errors"`
		Total      int64               `json:"total"`
		Page       int                 `json:"page"`
		Limit      int                 `json:"limit"`
		TotalPages int                 `json:"totalPages"`
	}
	list := func(query url.Values) listResponse {
		w := s.do(httptest.NewRequest(http.MethodGet, "/api/errors?"+query.Encode(), nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp listResponse
		decode(t, w, &resp)
		return resp
	}

	all := list(url.Values{"status": {model.StatusAll}})
	assert.Equal(t, int64(3), all.Total)
	assert.Len(t, all.Errors, 3)

	done := list(url.Values{"status": {model.StatusCompleted}})
	assert.Equal(t, int64(1), done.Total)
	assert.Equal(t, "열차 지연", done.Errors[0].Title)

	paged := list(url.Values{"page": {"2"}, "limit": {"2"}})
	assert.Equal(t, int64(3), paged.Total)
	assert.Len(t, paged.Errors, 1)
	assert.Equal(t, 2, paged.Page)
	assert.Equal(t, 2, paged.TotalPages)

	search := list(url.Values{"search": {"로그인"}})
	assert.Equal(t, int64(1), search.Total)
}

func TestStatsRoutes(t *testing.T) {
	s := newTestServer(t)
	s.createReport(t, gin.H{"title": "a", "content": "내용", "system": "기타"})
	s.createReport(t, gin.H{"title": "b", "content": "내용", "system": "기타", "status": "보류"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/stats/errors", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"newErrors":1,"inProgress":0,"completed":0,"onHold":1}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/stats/weekly", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var weekly []storage.PeriodStat
	decode(t, w, &weekly)
	require.Len(t, weekly, 7)
	assert.Equal(t, int64(2), weekly[6].Errors)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/stats/categories", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"category":"기타","count":2}]`, w.Body.String())
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	s.createReport(t, gin.H{"title": "내보내기", "content": "본문", "system": "기타"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/errors/export?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "내보내기")

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/errors/export?format=md", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "## #1 내보내기")

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/errors/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var reports []model.ErrorReport
	decode(t, w, &reports)
	assert.Len(t, reports, 1)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/errors/export?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportNewestFirst(t *testing.T) {
	s := newTestServer(t)
	first := s.createReport(t, gin.H{"title": "먼저 접수", "content": "본문", "system": "기타"})
	second := s.createReport(t, gin.H{"title": "나중 접수", "content": "본문", "system": "기타"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/errors/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var reports []model.ErrorReport
	decode(t, w, &reports)
	require.Len(t, reports, 2)
	assert.Equal(t, second.ID, reports[0].ID)
	assert.Equal(t, first.ID, reports[1].ID)
}

func TestCurrentUser(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/auth/user", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var user model.User
	decode(t, w, &user)
	assert.Equal(t, model.OfflineUserID, user.ID)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
