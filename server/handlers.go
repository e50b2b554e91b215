package server

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/YuminosukeSato/tabml/chart"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/interpreter"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
	"github.com/YuminosukeSato/tabml/registry"
	"github.com/YuminosukeSato/tabml/trainer"
)

type errorPayload struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TrainResponse is the body of a successful POST /api/train.
type TrainResponse struct {
	Status       string                  `json:"status"`
	Message      string                  `json:"message"`
	Filename     string                  `json:"filename"`
	ModelPath    string                  `json:"model_path"`
	MetadataPath string                  `json:"metadata_path"`
	ModelID      string                  `json:"model_id"`
	TargetColumn string                  `json:"target_column"`
	ProblemType  interpreter.ProblemType `json:"problem_type"`
	Metrics      *trainer.Metrics        `json:"metrics"`
}

// PredictResponse is the body of a successful POST /api/predict/{filename}.
type PredictResponse struct {
	Status     string `json:"status"`
	Prediction any    `json:"prediction"`
}

// GraphResponse is the body of a successful POST /api/graph.
type GraphResponse struct {
	Status string `json:"status"`
	Image  string `json:"image"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case errors.CodeFileNotFound:
		return http.StatusNotFound
	case errors.CodeUnexpectedFailure, errors.CodePanic:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.Code(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", err,
			log.ErrorCodeKey, code,
			log.HTTPPathKey, r.URL.Path,
		)
	} else {
		s.logger.Warn("Request rejected",
			log.ErrorCodeKey, code,
			log.HTTPPathKey, r.URL.Path,
			"error.message", err.Error(),
		)
	}
	writeJSON(w, status, errorPayload{Status: "error", Code: code, Message: err.Error()})
}

// resolve returns the models-dir path of the {filename} route variable.
func (s *Server) resolve(r *http.Request) (string, string, error) {
	name := mux.Vars(r)["filename"]
	path, err := registry.Resolve(s.cfg.ModelsDir, name)
	return name, path, err
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	entries, err := registry.List(s.cfg.ModelsDir)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleModelDetails(w http.ResponseWriter, r *http.Request) {
	name, _, err := s.resolve(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := registry.Describe(s.cfg.ModelsDir, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name, path, err := s.resolve(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveFile(w, r, path, name, "application/octet-stream")
}

func (s *Server) handleModelCSV(w http.ResponseWriter, r *http.Request) {
	_, path, err := s.resolve(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	csvPath := trainer.CSVPath(path)
	s.serveFile(w, r, csvPath, filepath.Base(csvPath), "text/csv")
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, name, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.fail(w, r, errors.NewFileNotFoundError(name))
			return
		}
		s.fail(w, r, errors.NewUnexpectedFailure("open "+name, err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.fail(w, r, errors.NewFileNotFoundError(name))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// stage stores an uploaded file in the uploads store and returns its key
// and on-disk path. The key keeps the upload's extension so the CSV reader
// can pick the delimiter.
func (s *Server) stage(f multipart.File, filename string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".csv" && ext != ".tsv" && ext != ".txt" {
		ext = ".csv"
	}
	key := uuid.NewString() + ext
	if err := s.uploads.WriteStream(key, f, true); err != nil {
		return "", "", errors.NewUnexpectedFailure("store upload", err)
	}
	return key, filepath.Join(s.uploads.BasePath, key), nil
}

func (s *Server) unstage(key string) {
	if err := s.uploads.Erase(key); err != nil {
		s.logger.Debug("Upload already removed", "upload.key", key)
	}
}

func (s *Server) formUpload(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, nil, errors.NewValueError("upload", "expected a multipart form: "+err.Error())
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.NewValueError("upload", "no file uploaded in field 'file'")
	}
	return f, header, nil
}

// claimModelPath returns "<models dir>/<unix-ms>_model.gob", skipping names
// that exist on disk or are held by a training still in progress. The
// caller must call release once the run has finished.
func (s *Server) claimModelPath() (path string, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	for {
		path = filepath.Join(s.cfg.ModelsDir, fmt.Sprintf("%d_model%s", ms, registry.ModelExt))
		_, held := s.claimed[path]
		if _, err := os.Stat(path); !held && os.IsNotExist(err) {
			break
		}
		ms++
	}
	s.claimed[path] = struct{}{}
	return path, func() {
		s.mu.Lock()
		delete(s.claimed, path)
		s.mu.Unlock()
	}
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	f, header, err := s.formUpload(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer f.Close()

	key, input, err := s.stage(f, header.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.unstage(key)

	output, release := s.claimModelPath()
	defer release()

	res, err := trainer.Run(r.Context(), trainer.Options{
		Input:            input,
		Output:           output,
		Target:           strings.TrimSpace(r.FormValue("target")),
		OriginalFilename: header.Filename,
		Training:         s.cfg.Training,
	}, s.logger)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.models.Add(res.ModelPath, res.Pipeline)

	writeJSON(w, http.StatusOK, TrainResponse{
		Status:       "success",
		Message:      "Model trained successfully",
		Filename:     filepath.Base(res.ModelPath),
		ModelPath:    res.ModelPath,
		MetadataPath: res.MetadataPath,
		ModelID:      res.Metadata.ModelID,
		TargetColumn: res.Metadata.TargetColumn,
		ProblemType:  res.Metadata.ProblemType,
		Metrics:      res.Metadata.Metrics,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	_, path, err := s.resolve(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var record map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil || record == nil {
		s.fail(w, r, errors.NewValueError("predict", "request body must be a JSON object"))
		return
	}

	p, err := s.loadPipeline(path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pred, err := p.PredictRecord(record)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{Status: "success", Prediction: pred})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	f, header, err := s.formUpload(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer f.Close()

	kind, x, y := r.FormValue("kind"), r.FormValue("x"), r.FormValue("y")
	if x == "" || y == "" {
		s.fail(w, r, errors.NewValueError("graph", "form fields 'x' and 'y' are required"))
		return
	}
	parsed, err := chart.ParseKind(kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	key, input, err := s.stage(f, header.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.unstage(key)

	ds, err := dataset.LoadCSV(input,
		dataset.WithNumericThreshold(s.cfg.Training.NumericThreshold),
		dataset.WithWarner(s.logger),
	)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	image, err := chart.RenderBase64(ds, parsed, x, y, s.cfg.Chart, s.logger)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Status: "success", Image: image})
}

// statusRecorder はレスポンスのステータスを記録する
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request and converts handler panics into a
// PANIC error payload.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		err := errors.SafeExecute(r.Method+" "+r.URL.Path, func() error {
			next.ServeHTTP(rec, r)
			return nil
		})
		if err != nil {
			s.fail(rec, r, err)
		}
		s.logger.Info("Request handled",
			log.HTTPMethodKey, r.Method,
			log.HTTPPathKey, r.URL.Path,
			log.HTTPStatusKey, rec.status,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	})
}
