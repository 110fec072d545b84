package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/storage"
	"github.com/stemscribe/api/internal/store"
)

// TaskTypePipeline is the asynq task type for audio pipeline jobs
const TaskTypePipeline = "pipeline:process"

// QueuePipeline is the asynq queue pipeline tasks are enqueued on
const QueuePipeline = "pipeline"

var (
	// ErrNotCompleted is returned when downloading a job that has not finished
	ErrNotCompleted = errors.New("job not completed")

	// ErrArtifactMissing is returned when a completed job's archive is gone
	ErrArtifactMissing = errors.New("output file not found")
)

// AllowedExtensions is the upload allow-list.
var AllowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
}

// AllowedExtensionList returns the allow-list in stable order for messages.
func AllowedExtensionList() []string {
	exts := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Enqueuer is the subset of asynq.Client the service uses, injected so
// handlers can be tested without a live queue.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobService handles job submission and queries
type JobService struct {
	store    store.Store
	uploads  *storage.LocalStorage
	enqueuer Enqueuer
	workDir  string
}

func NewJobService(jobStore store.Store, uploads *storage.LocalStorage, enqueuer Enqueuer, workDir string) *JobService {
	return &JobService{
		store:    jobStore,
		uploads:  uploads,
		enqueuer: enqueuer,
		workDir:  workDir,
	}
}

// CreateJob persists the upload, creates the job record and schedules
// processing. The caller has already validated the file extension.
func (s *JobService) CreateJob(ctx context.Context, filename, separationModel string, file io.Reader) (*model.Job, error) {
	jobID := uuid.New().String()

	inputPath, err := s.uploads.SaveUpload(jobID, filename, file)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:        jobID,
		Filename:  filename,
		Status:    model.JobStatusPending,
		Progress:  0,
		Message:   "File uploaded, waiting to process...",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	payloadBytes, err := json.Marshal(&model.PipelineJobPayload{
		InputPath: inputPath,
		Filename:  filename,
		Model:     separationModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task, err := newPipelineTask(jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// failed pipelines are not retried automatically
	_, err = s.enqueuer.Enqueue(task,
		asynq.Queue(QueuePipeline),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		s.markScheduleFailure(ctx, jobID)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return job, nil
}

// GetStatus returns the current job record
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.Get(ctx, jobID)
}

// ResolveDownload returns the archive path and download filename for a
// completed job, distinguishing "not completed yet" from "artifact missing".
func (s *JobService) ResolveDownload(ctx context.Context, jobID string) (string, string, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return "", "", err
	}

	if job.Status != model.JobStatusCompleted {
		return "", "", fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrNotCompleted)
	}
	if job.OutputFile == "" {
		return "", "", fmt.Errorf("job %s: %w", jobID, ErrArtifactMissing)
	}

	path := filepath.Join(s.workDir, jobID, job.OutputFile)
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("job %s: %w", jobID, ErrArtifactMissing)
	}

	// give the download a name based on the original upload
	base := strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	return path, base + "_processed.zip", nil
}

func (s *JobService) markScheduleFailure(ctx context.Context, jobID string) {
	_, err := s.store.Update(ctx, jobID, store.Update{
		Status:  store.StatusOf(model.JobStatusFailed),
		Message: store.MessageOf("Processing failed: could not schedule job"),
	})
	if err != nil {
		log.Printf("Job %s: failed to mark schedule failure: %v", jobID, err)
	}
}

func newPipelineTask(jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePipeline, data), nil
}
