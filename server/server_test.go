package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabml/config"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
	"github.com/YuminosukeSato/tabml/registry"
)

func newTestServer(t *testing.T) (*Server, *config.Global) {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.ModelsDir = filepath.Join(root, "models")
	cfg.UploadsDir = filepath.Join(root, "uploads")
	cfg.CacheSize = 2
	cfg.Training.NEstimators = 5
	cfg.Training.CVFolds = 0

	logger, _ := log.NewTestLogger(log.LevelDebug)
	s, err := New(cfg, logger)
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s, cfg
}

func salesCSV() string {
	var b strings.Builder
	b.WriteString("month,region,sales\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%d,%s,%d\n", i%12+1, []string{"east", "west"}[i%2], 100+i*7)
	}
	return b.String()
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload errorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	assert.Equal(t, "error", payload.Status)
	return payload.Code
}

func TestTrainPredictFlow(t *testing.T) {
	s, cfg := newTestServer(t)

	body, ct := multipartBody(t, "sales.csv", salesCSV(), nil)
	rec := do(t, s, http.MethodPost, "/api/train", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var trained TrainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trained))
	assert.Equal(t, "success", trained.Status)
	assert.Equal(t, "1700000000000_model.gob", trained.Filename)
	assert.Equal(t, "sales", trained.TargetColumn)
	assert.NotEmpty(t, trained.ModelID)
	require.NotNil(t, trained.Metrics)

	staged, err := filepath.Glob(filepath.Join(cfg.UploadsDir, "*"))
	require.NoError(t, err)
	assert.Empty(t, staged, "uploads are removed after training")

	rec = do(t, s, http.MethodGet, "/api/models", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []registry.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Metadata)
	assert.Equal(t, "sales.csv", entries[0].Metadata.OriginalFilename)

	rec = do(t, s, http.MethodGet, "/api/model-details/"+trained.Filename, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/download/"+trained.Filename, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())

	rec = do(t, s, http.MethodGet, "/api/model-csv/"+trained.Filename, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "month,region,sales\n"))

	rec = do(t, s, http.MethodPost, "/api/predict/"+trained.Filename,
		bytes.NewBufferString(`{"month": 3, "region": "west"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var predicted struct {
		Status     string  `json:"status"`
		Prediction float64 `json:"prediction"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &predicted))
	assert.Equal(t, "success", predicted.Status)
	assert.Greater(t, predicted.Prediction, 0.0)

	// キャッシュを空にしてもディスクから読み直せる
	s.models.Purge()
	rec = do(t, s, http.MethodPost, "/api/predict/"+trained.Filename,
		bytes.NewBufferString(`{"month": "3", "region": "east"}`), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestConcurrentTrainsGetDistinctModels(t *testing.T) {
	s, cfg := newTestServer(t)
	const n = 8

	reqs := make([]*http.Request, n)
	for i := range reqs {
		body, ct := multipartBody(t, fmt.Sprintf("sales%d.csv", i), salesCSV(), nil)
		reqs[i] = httptest.NewRequest(http.MethodPost, "/api/train", body)
		reqs[i].Header.Set("Content-Type", ct)
	}

	recs := make([]*httptest.ResponseRecorder, n)
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i] = httptest.NewRecorder()
			s.Handler().ServeHTTP(recs[i], reqs[i])
		}(i)
	}
	wg.Wait()

	ids := make(map[string]string, n)
	for i, rec := range recs {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var trained TrainResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trained))
		_, dup := ids[trained.Filename]
		require.False(t, dup, "request %d reused model file %q", i, trained.Filename)
		ids[trained.Filename] = trained.ModelID
	}

	entries, err := registry.List(cfg.ModelsDir)
	require.NoError(t, err)
	require.Len(t, entries, n)
	for _, e := range entries {
		require.NotNil(t, e.Metadata, e.Name)
		assert.Equal(t, ids[e.Name], e.Metadata.ModelID, "metadata of %s belongs to another run", e.Name)
	}
	assert.Empty(t, s.claimed, "claims are released after each run")
}

func TestClaimModelPath(t *testing.T) {
	s, cfg := newTestServer(t)

	first, releaseFirst := s.claimModelPath()
	second, releaseSecond := s.claimModelPath()
	assert.Equal(t, filepath.Join(cfg.ModelsDir, "1700000000000_model.gob"), first)
	assert.Equal(t, filepath.Join(cfg.ModelsDir, "1700000000001_model.gob"), second)

	releaseFirst()
	again, releaseAgain := s.claimModelPath()
	assert.Equal(t, first, again)
	releaseAgain()
	releaseSecond()

	// ディスク上に既にあるファイル名は使わない
	require.NoError(t, os.MkdirAll(cfg.ModelsDir, 0o755))
	require.NoError(t, os.WriteFile(first, []byte("x"), 0o644))
	next, release := s.claimModelPath()
	defer release()
	assert.Equal(t, second, next)
}

func TestTrainErrors(t *testing.T) {
	s, cfg := newTestServer(t)

	body, ct := multipartBody(t, "", "", map[string]string{"target": "x"})
	rec := do(t, s, http.MethodPost, "/api/train", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeInvalidInput, errorCode(t, rec))

	body, ct = multipartBody(t, "empty.csv", "a,target\n1,\n2,\n", nil)
	rec = do(t, s, http.MethodPost, "/api/train", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeEmptyTrainingSet, errorCode(t, rec))

	body, ct = multipartBody(t, "sales.csv", salesCSV(), map[string]string{"target": "profit"})
	rec = do(t, s, http.MethodPost, "/api/train", body, ct)
	assert.Equal(t, errors.CodeColumnNotFound, errorCode(t, rec))

	entries, err := registry.List(cfg.ModelsDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed runs leave no model behind")
}

func TestFilenameValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method, path string
		status       int
		code         string
	}{
		{http.MethodGet, "/api/model-details/..secret", http.StatusBadRequest, errors.CodeInvalidInput},
		{http.MethodGet, "/api/download/.env", http.StatusBadRequest, errors.CodeInvalidInput},
		{http.MethodGet, "/api/download/absent.gob", http.StatusNotFound, errors.CodeFileNotFound},
		{http.MethodGet, "/api/model-csv/absent.gob", http.StatusNotFound, errors.CodeFileNotFound},
		{http.MethodPost, "/api/predict/absent.gob", http.StatusNotFound, errors.CodeFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, bytes.NewBufferString(`{}`), "application/json")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}

	rec := do(t, s, http.MethodPost, "/api/predict/absent.gob", bytes.NewBufferString(`[1,2]`), "application/json")
	assert.Equal(t, errors.CodeInvalidInput, errorCode(t, rec))
}

func TestGraph(t *testing.T) {
	s, _ := newTestServer(t)

	body, ct := multipartBody(t, "sales.csv", salesCSV(), map[string]string{"kind": "bar", "x": "region", "y": "sales"})
	rec := do(t, s, http.MethodPost, "/api/graph", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var graph GraphResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &graph))
	png, err := base64.StdEncoding.DecodeString(graph.Image)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	body, ct = multipartBody(t, "sales.csv", salesCSV(), map[string]string{"kind": "pie", "x": "region", "y": "sales"})
	rec = do(t, s, http.MethodPost, "/api/graph", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeUnsupportedChartKind, errorCode(t, rec))

	body, ct = multipartBody(t, "sales.csv", salesCSV(), map[string]string{"kind": "line", "x": "day", "y": "sales"})
	rec = do(t, s, http.MethodPost, "/api/graph", body, ct)
	assert.Equal(t, errors.CodeColumnNotFound, errorCode(t, rec))
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
