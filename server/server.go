// Package server はtabmlの学習・予測・グラフ描画をHTTP APIとして公開する
//
// ルーティングはgorilla/mux。アップロードされたCSVはdiskvの一時領域に置かれ、
// 読み込んだPipelineはLRUキャッシュに保持される。各リクエストは独立した
// 1回の実行で、共有状態はキャッシュだけ。
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
	"github.com/peterbourgon/diskv"

	"github.com/YuminosukeSato/tabml/config"
	"github.com/YuminosukeSato/tabml/pipeline"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// maxUploadMemory はmultipartをメモリに置く上限。超えた分は一時ファイルになる。
const maxUploadMemory = 32 << 20

// Server serves the tabml HTTP API.
type Server struct {
	cfg     *config.Global
	logger  log.Logger
	router  *mux.Router
	uploads *diskv.Diskv
	models  *lru.Cache
	now     func() time.Time

	// claimed は学習中のモデル名。ファイルができるまでの間も同じ名前を渡さない
	mu      sync.Mutex
	claimed map[string]struct{}
}

// New builds a Server from cfg. Directories are created lazily.
func New(cfg *config.Global, logger log.Logger) (*Server, error) {
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, errors.NewValueError("server.New", err.Error())
	}
	s := &Server{
		cfg:    cfg,
		logger: log.OrNop(logger).With(log.ComponentKey, "server"),
		uploads: diskv.New(diskv.Options{
			BasePath:  cfg.UploadsDir,
			Transform: func(string) []string { return []string{} },
		}),
		models:  cache,
		now:     time.Now,
		claimed: make(map[string]struct{}),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/models", s.handleListModels).Methods(http.MethodGet)
	api.HandleFunc("/model-details/{filename}", s.handleModelDetails).Methods(http.MethodGet)
	api.HandleFunc("/train", s.handleTrain).Methods(http.MethodPost)
	api.HandleFunc("/download/{filename}", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/model-csv/{filename}", s.handleModelCSV).Methods(http.MethodGet)
	api.HandleFunc("/predict/{filename}", s.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/graph", s.handleGraph).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorPayload{Status: "error", Code: "NOT_FOUND", Message: "no route for " + r.URL.Path})
	})
	s.router = r
}

// Handler returns the routed handler, for embedding or httptest.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on cfg.ServerAddr until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ServerAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "http.addr", s.cfg.ServerAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.NewUnexpectedFailure("listen", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.NewUnexpectedFailure("shutdown", err)
		}
		return nil
	}
}

// loadPipeline returns the pipeline at path, through the LRU cache.
func (s *Server) loadPipeline(path string) (*pipeline.Pipeline, error) {
	if v, ok := s.models.Get(path); ok {
		return v.(*pipeline.Pipeline), nil
	}
	p, err := pipeline.Load(path, s.logger)
	if err != nil {
		return nil, err
	}
	s.models.Add(path, p)
	return p, nil
}
