package model

import "time"

// JobStatus represents the lifecycle state of a processing job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final. Terminal jobs are never
// mutated again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses along the pending → processing → terminal lifecycle
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition. Jobs never return to an earlier status.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	return next.rank() > s.rank()
}

// Job represents one end-to-end request to process a single uploaded audio file
type Job struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Status     JobStatus `json:"status"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message"`
	OutputFile string    `json:"output_file,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PipelineJobPayload is the task payload handed to the pipeline worker
type PipelineJobPayload struct {
	InputPath string `json:"inputPath"`
	Filename  string `json:"filename"`
	Model     string `json:"model,omitempty"`
}

// UploadResponse is returned when an upload is accepted
type UploadResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}
