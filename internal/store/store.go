package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemscribe/api/internal/model"
)

var (
	// ErrNotFound is returned when no job exists for the given id
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists is returned when creating a job whose id is taken
	ErrAlreadyExists = errors.New("job already exists")

	// ErrFinalized is returned when updating a job that reached a terminal status
	ErrFinalized = errors.New("job already finalized")
)

// Update carries a partial set of job fields. Nil fields are left untouched.
type Update struct {
	Status     *model.JobStatus
	Progress   *int
	Message    *string
	OutputFile *string
}

// Store is the durable record of job state. Implementations must apply
// updates atomically with respect to concurrent reads, and must never
// delete a job.
type Store interface {
	Create(ctx context.Context, job *model.Job) error
	Update(ctx context.Context, jobID string, u Update) (*model.Job, error)
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

// merge applies u onto job, enforcing the lifecycle invariants shared by all
// implementations: terminal jobs are frozen, status moves only forward, and
// progress never decreases.
func merge(job *model.Job, u Update) error {
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is %s: %w", job.ID, job.Status, ErrFinalized)
	}

	if u.Status != nil {
		if !job.Status.CanTransitionTo(*u.Status) {
			return fmt.Errorf("cannot transition job %s from %s to %s", job.ID, job.Status, *u.Status)
		}
		job.Status = *u.Status
	}
	if u.Progress != nil && *u.Progress > job.Progress {
		job.Progress = *u.Progress
	}
	if u.Message != nil {
		job.Message = *u.Message
	}
	if u.OutputFile != nil {
		job.OutputFile = *u.OutputFile
	}

	return nil
}

// Convenience pointer helpers for building partial updates.

func StatusOf(s model.JobStatus) *model.JobStatus { return &s }
func ProgressOf(p int) *int                       { return &p }
func MessageOf(m string) *string                  { return &m }
func OutputFileOf(f string) *string               { return &f }
