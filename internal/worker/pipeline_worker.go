package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/pipeline"
)

// PipelineWorker processes audio pipeline jobs
type PipelineWorker struct {
	pipeline *pipeline.Pipeline
}

// NewPipelineWorker creates a new pipeline worker
func NewPipelineWorker(p *pipeline.Pipeline) *PipelineWorker {
	return &PipelineWorker{pipeline: p}
}

// ProcessTask handles one queued pipeline task
func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	var payload model.PipelineJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal pipeline payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting processing job: %s (%s)", jobID, payload.Filename)

	// the pipeline records its own terminal failure state; the returned
	// error only tells asynq the task did not succeed
	if err := w.pipeline.Run(ctx, pipeline.Request{
		JobID:     jobID,
		InputPath: payload.InputPath,
		Filename:  payload.Filename,
		Model:     payload.Model,
	}); err != nil {
		return err
	}

	log.Printf("Processing job %s completed", jobID)
	return nil
}
