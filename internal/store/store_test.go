package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stemscribe/api/internal/model"
)

func newTestJob() *model.Job {
	now := time.Now().UTC()
	return &model.Job{
		ID:        uuid.New().String(),
		Filename:  "song.mp3",
		Status:    model.JobStatusPending,
		Progress:  0,
		Message:   "File uploaded, waiting to process...",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := newTestJob()
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	err := s.Create(ctx, job)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpdate_UnknownJob(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Update(context.Background(), "no-such-job", Update{
		Progress: ProgressOf(10),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_UnknownJob(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "no-such-job")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_MergesPartialFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := newTestJob()
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := s.Update(ctx, job.ID, Update{
		Status:   StatusOf(model.JobStatusProcessing),
		Progress: ProgressOf(10),
		Message:  MessageOf("Starting stem separation..."),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.Status != model.JobStatusProcessing {
		t.Errorf("status = %s, want processing", updated.Status)
	}
	if updated.Progress != 10 {
		t.Errorf("progress = %d, want 10", updated.Progress)
	}
	if updated.Filename != "song.mp3" {
		t.Errorf("filename changed on partial update: %s", updated.Filename)
	}
	if !updated.UpdatedAt.After(job.UpdatedAt) && !updated.UpdatedAt.Equal(job.UpdatedAt) {
		t.Error("updated_at was not refreshed")
	}
}

func TestUpdate_ProgressNeverDecreases(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := newTestJob()
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := s.Update(ctx, job.ID, Update{
		Status:   StatusOf(model.JobStatusProcessing),
		Progress: ProgressOf(50),
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	updated, err := s.Update(ctx, job.ID, Update{Progress: ProgressOf(20)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Progress != 50 {
		t.Errorf("progress regressed to %d, want 50", updated.Progress)
	}
}

func TestUpdate_NoBackwardStatusTransition(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := newTestJob()
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := s.Update(ctx, job.ID, Update{
		Status: StatusOf(model.JobStatusProcessing),
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if _, err := s.Update(ctx, job.ID, Update{
		Status: StatusOf(model.JobStatusPending),
	}); err == nil {
		t.Error("expected backward transition to fail")
	}
}

func TestUpdate_TerminalJobIsFrozen(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := newTestJob()
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := s.Update(ctx, job.ID, Update{
		Status:  StatusOf(model.JobStatusFailed),
		Message: MessageOf("Processing failed: demucs exited 1"),
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	_, err := s.Update(ctx, job.ID, Update{Progress: ProgressOf(99)})
	if !errors.Is(err, ErrFinalized) {
		t.Errorf("expected ErrFinalized, got %v", err)
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Progress != 0 {
		t.Errorf("progress mutated after terminal state: %d", got.Progress)
	}
}
