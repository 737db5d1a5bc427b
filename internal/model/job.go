package model

import "time"

// JobStatus is the lifecycle state of a pipeline job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Mode selects how much of the pipeline a run executes.
type Mode string

const (
	// ModeFull runs extraction, matching, refinement, inference and scoring.
	ModeFull Mode = "full"
	// ModeInferenceOnly re-enters at classifier inference, reusing an
	// existing refined_sentences.json artifact.
	ModeInferenceOnly Mode = "inference_only"
)

// Job tracks one asynchronous pipeline run. Jobs are created on request,
// mutated in place by the worker executing them, and never deleted
// automatically.
type Job struct {
	ID        string         `json:"job_id"`
	ProjectID string         `json:"project_id"`
	Status    JobStatus      `json:"status"`
	Mode      Mode           `json:"mode,omitempty"`
	Step      string         `json:"step,omitempty"`
	Message   string         `json:"message,omitempty"`
	Stats     map[string]any `json:"stats,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Error     string         `json:"error,omitempty"`

	// Assessments is populated once the job completes; partial results of a
	// failed job are never exposed.
	Assessments map[string]Assessment `json:"assessments,omitempty"`
}
