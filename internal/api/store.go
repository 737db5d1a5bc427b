// Package api exposes the pipeline as an asynchronous HTTP job service.
package api

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdano/sdgscope/internal/model"
)

// ErrProjectBusy reports a run request for a project that already has a
// queued or running job. Concurrent runs would race on the project's
// artifact files, so the second request is rejected outright.
var ErrProjectBusy = errors.New("project already has an active job")

// Store tracks jobs in memory and enforces one active job per project.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*model.Job
	inFlight map[string]string // project id -> active job id
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]*model.Job),
		inFlight: make(map[string]string),
	}
}

// Create registers a new queued job for a project. Returns ErrProjectBusy
// when the project already has an active job.
func (s *Store) Create(projectID string, mode model.Mode) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[projectID]; busy {
		return model.Job{}, ErrProjectBusy
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    model.JobQueued,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job
	s.inFlight[projectID] = job.ID
	return *job, nil
}

// Get returns a snapshot of a job by id.
func (s *Store) Get(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return snapshot(job), true
}

// SetRunning marks a job as running at the given step.
func (s *Store) SetRunning(id, step, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = model.JobRunning
		job.Step = step
		job.Message = message
		job.UpdatedAt = time.Now().UTC()
	}
}

// SetCompleted marks a job as completed with its results, releasing the
// project for new runs.
func (s *Store) SetCompleted(id string, assessments map[string]model.Assessment, stats map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = model.JobCompleted
	job.Step = "done"
	job.Message = ""
	job.Assessments = assessments
	job.Stats = stats
	job.UpdatedAt = time.Now().UTC()
	s.release(job)
}

// SetFailed marks a job as failed, releasing the project for new runs.
func (s *Store) SetFailed(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = model.JobFailed
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now().UTC()
	s.release(job)
}

func (s *Store) release(job *model.Job) {
	if s.inFlight[job.ProjectID] == job.ID {
		delete(s.inFlight, job.ProjectID)
	}
}

func snapshot(job *model.Job) model.Job {
	out := *job
	if job.Stats != nil {
		out.Stats = make(map[string]any, len(job.Stats))
		for k, v := range job.Stats {
			out.Stats[k] = v
		}
	}
	if job.Assessments != nil {
		out.Assessments = make(map[string]model.Assessment, len(job.Assessments))
		for k, v := range job.Assessments {
			out.Assessments[k] = v
		}
	}
	return out
}
