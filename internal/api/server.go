package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/ingest"
	"github.com/verdano/sdgscope/internal/model"
	"github.com/verdano/sdgscope/internal/pipeline"
	"github.com/verdano/sdgscope/internal/worker"
)

// PipelineRunner runs the assessment pipeline for one project.
type PipelineRunner interface {
	Run(ctx context.Context, projectID string, mode model.Mode, progress pipeline.Progress) (*pipeline.Result, error)
}

// Ingestor downloads a registry project's documents.
type Ingestor interface {
	DownloadProject(ctx context.Context, registry ingest.Registry, id, destDir string) (int, error)
}

// Server is the HTTP job API: submit a registry project for assessment,
// poll the job, read the results.
type Server struct {
	cfg      *config.Config
	pipeline PipelineRunner
	ingestor Ingestor
	store    *Store
	pool     *worker.Pool
	log      *zap.Logger
}

// NewServer wires the job API. The pool must be started by the caller.
func NewServer(cfg *config.Config, p PipelineRunner, ing Ingestor, pool *worker.Pool, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		pipeline: p,
		ingestor: ing,
		store:    NewStore(),
		pool:     pool,
		log:      log,
	}
}

// Router builds the chi router for the job API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/run", s.handleRun)
	r.Get("/jobs/{job_id}", s.handleJob)

	return r
}

type runRequest struct {
	Registry string `json:"registry"`
	ID       string `json:"id"`
}

type runResponse struct {
	JobID     string `json:"job_id"`
	ProjectID string `json:"project_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	registry, err := ingest.ParseRegistry(req.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	projectID := registry.ProjectID(id)
	mode := s.selectMode(projectID)

	job, err := s.store.Create(projectID, mode)
	if err != nil {
		if errors.Is(err, ErrProjectBusy) {
			writeError(w, http.StatusConflict, "project "+projectID+" already has an active job")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	submitted := s.pool.Submit(worker.TaskFunc(func(ctx context.Context) {
		s.execute(ctx, job.ID, registry, id, projectID, mode)
	}))
	if !submitted {
		s.store.SetFailed(job.ID, errors.New("job queue full"))
		writeError(w, http.StatusServiceUnavailable, "job queue full, retry later")
		return
	}

	s.log.Info("job accepted",
		zap.String("job_id", job.ID),
		zap.String("project_id", projectID),
		zap.String("mode", string(mode)))
	writeJSON(w, http.StatusAccepted, runResponse{JobID: job.ID, ProjectID: projectID})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no such job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// selectMode reuses the refined artifact when one exists; otherwise the full
// pipeline runs.
func (s *Server) selectMode(projectID string) model.Mode {
	if pipeline.RefinedExists(s.cfg.OutputDir(projectID)) {
		return model.ModeInferenceOnly
	}
	return model.ModeFull
}

// execute runs one job on a pool worker.
func (s *Server) execute(ctx context.Context, jobID string, registry ingest.Registry, registryID, projectID string, mode model.Mode) {
	progress := func(step, message string) {
		s.store.SetRunning(jobID, step, message)
	}

	if mode == model.ModeFull && !pipeline.PDFsExist(s.cfg.PDFDir(projectID)) {
		if s.ingestor == nil {
			s.store.SetFailed(jobID, errors.New("no PDFs for "+projectID+" and ingestion is disabled"))
			return
		}
		progress("ingest", "downloading project documents")
		n, err := s.ingestor.DownloadProject(ctx, registry, registryID, s.cfg.PDFDir(projectID))
		if err != nil {
			s.store.SetFailed(jobID, err)
			return
		}
		s.log.Info("documents ingested", zap.String("project_id", projectID), zap.Int("count", n))
	}

	result, err := s.pipeline.Run(ctx, projectID, mode, progress)
	if err != nil {
		s.log.Warn("job failed", zap.String("job_id", jobID), zap.String("project_id", projectID), zap.Error(err))
		s.store.SetFailed(jobID, err)
		return
	}

	assessments := make(map[string]model.Assessment, len(result.Assessments))
	for _, a := range result.Assessments {
		assessments[a.SDG] = a
	}
	stats := result.Stats
	if stats == nil {
		stats = make(map[string]any)
	}
	stats["aggregate"] = result.Aggregate

	s.store.SetCompleted(jobID, assessments, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
