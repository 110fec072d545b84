package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/pipeline"
	"github.com/stemscribe/api/internal/store"
)

type stubSeparator struct{}

func (stubSeparator) Separate(ctx context.Context, inputPath, outputDir, _ string) ([]string, error) {
	track := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	dir := filepath.Join(outputDir, "htdemucs_6s", track)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "vocals.wav")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, stemPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, "out.mid")
	return path, os.WriteFile(path, []byte("midi"), 0o644)
}

type stubNotation struct{}

func (stubNotation) Export(ctx context.Context, midiPath, outPath string) error {
	return os.WriteFile(outPath, []byte("<score/>"), 0o644)
}

func TestProcessTask_RunsJobToCompletion(t *testing.T) {
	memStore := store.NewMemoryStore()
	jobID := uuid.New().String()

	uploads := t.TempDir()
	inputPath := filepath.Join(uploads, jobID+".mp3")
	if err := os.WriteFile(inputPath, []byte("uploaded"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	now := time.Now().UTC()
	if err := memStore.Create(context.Background(), &model.Job{
		ID:        jobID,
		Filename:  "song.mp3",
		Status:    model.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	pipe := pipeline.New(memStore, stubSeparator{}, stubTranscriber{}, stubNotation{}, t.TempDir(), nil)
	w := NewPipelineWorker(pipe)

	payload, _ := json.Marshal(&model.PipelineJobPayload{
		InputPath: inputPath,
		Filename:  "song.mp3",
	})
	envelope, _ := json.Marshal(map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	})

	task := asynq.NewTask("pipeline:process", envelope)
	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}

	job, err := memStore.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if job.Status != model.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
}

func TestProcessTask_MalformedPayload(t *testing.T) {
	pipe := pipeline.New(store.NewMemoryStore(), stubSeparator{}, stubTranscriber{}, stubNotation{}, t.TempDir(), nil)
	w := NewPipelineWorker(pipe)

	task := asynq.NewTask("pipeline:process", []byte("not json"))
	if err := w.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
