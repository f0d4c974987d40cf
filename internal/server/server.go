// Package server exposes pipeline runs over HTTP: uploads, the item list,
// consolidation and export downloads.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/quote-cli/internal/config"
	"github.com/sells-group/quote-cli/internal/export"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/pipeline"
)

// multipart form memory before spilling to disk.
const formMemory = 32 << 20

// Server is the HTTP boundary around an Orchestrator.
type Server struct {
	orch     *pipeline.Orchestrator
	sessions *Sessions
	cfg      config.ServerConfig
	maxBytes int64
	limiter  *rate.Limiter
}

// New creates a Server. maxFileBytes bounds each uploaded file; the
// extraction layer rejects larger files with an outcome, the server only
// caps the request body.
func New(orch *pipeline.Orchestrator, sessions *Sessions, cfg config.ServerConfig, maxFileBytes int64) *Server {
	limit := rate.Inf
	if cfg.UploadRatePerSec > 0 {
		limit = rate.Limit(cfg.UploadRatePerSec)
	}
	burst := cfg.UploadBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		orch:     orch,
		sessions: sessions,
		cfg:      cfg,
		maxBytes: maxFileBytes,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/runs", func(r chi.Router) {
		r.With(s.throttle).Post("/", s.createRun)

		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.getRun)
			r.Delete("/", s.deleteRun)
			r.Post("/restart", s.restartRun)
			r.Get("/items", s.listItems)
			r.Get("/items/{itemID}", s.getItem)
			r.Post("/consolidate", s.consolidate)
			r.Get("/export", s.exportRun)
		})
	})
	return r
}

type runResponse struct {
	Run   pipeline.Snapshot `json:"run"`
	Items []model.Item      `json:"items"`
}

// createRun accepts a multipart batch under the "files" field and runs
// extraction on it.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit())
	if err := r.ParseMultipartForm(formMemory); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "parse upload"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var uploads []model.Upload
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrapf(err, "open %s", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrapf(err, "read %s", fh.Filename))
			return
		}
		uploads = append(uploads, model.Upload{Name: filepath.Base(fh.Filename), Content: data})
	}
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, eris.New("no files in upload"))
		return
	}

	run := pipeline.NewRun()
	s.sessions.Put(run)

	_, err := s.orch.Submit(r.Context(), run, uploads)
	if err != nil && !eris.Is(err, model.ErrNoValidFiles) {
		writeError(w, statusFor(err), err)
		return
	}
	status := http.StatusCreated
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, runResponse{Run: run.Snapshot(), Items: run.Items()})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot())
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "runID")) {
		writeError(w, http.StatusNotFound, eris.New("run not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// restartRun discards a run and opens a fresh one in its place.
func (s *Server) restartRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	fresh := s.orch.Restart(run)
	s.sessions.Delete(run.ID)
	s.sessions.Put(fresh)
	writeJSON(w, http.StatusCreated, fresh.Snapshot())
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	items := model.FilterItems(run.Items(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{
		"stage": run.Stage(),
		"count": len(items),
		"items": items,
	})
}

// getItem resolves an item id, following merges made by consolidation.
func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	it, id, found := run.Resolve(chi.URLParam(r, "itemID"))
	if !found {
		writeError(w, http.StatusNotFound, eris.New("item not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolved_id": id, "item": it})
}

func (s *Server) consolidate(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	opts := pipeline.ConsolidateOptions{PassThrough: r.URL.Query().Get("merge") == "false"}
	res, err := s.orch.Consolidate(r.Context(), run, opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":    run.Snapshot(),
		"items":  res.Items,
		"groups": res.Groups,
	})
}

// exportRun streams the export artifact as a download. The artifact is
// buffered so a failed export never sends a partial file.
func (s *Server) exportRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatXLSX
	}
	if format != export.FormatXLSX && format != export.FormatCSV {
		writeError(w, http.StatusBadRequest, eris.Errorf("unknown export format %q", format))
		return
	}

	var buf bytes.Buffer
	res, err := s.orch.Export(r.Context(), run, &buf, format)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	name := fmt.Sprintf("quote-%s.%s", time.Now().Format("2006-01-02"), res.Format)
	w.Header().Set("Content-Type", contentType(res.Format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) (*pipeline.Run, bool) {
	run, ok := s.sessions.Get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, http.StatusNotFound, eris.New("run not found"))
		return nil, false
	}
	return run, true
}

// throttle rejects uploads beyond the configured rate.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, eris.New("upload rate exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bodyLimit caps a batch request at a generous multiple of the per-file
// limit.
func (s *Server) bodyLimit() int64 {
	if s.maxBytes <= 0 {
		return 512 << 20
	}
	return s.maxBytes*16 + formMemory
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, model.ErrStageOrder):
		return http.StatusConflict
	case eris.Is(err, model.ErrRunDiscarded):
		return http.StatusGone
	case eris.Is(err, model.ErrNoValidFiles):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func contentType(format string) string {
	if format == export.FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("component", "server"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("component", "server"), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
