// Package pipeline drives one job through separation, transcription,
// notation export and packaging, recording progress in the job store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/store"
	"github.com/stemscribe/api/internal/websocket"
	"github.com/stemscribe/api/internal/workspace"
)

// Separator splits an audio file into per-voice stem files.
type Separator interface {
	Separate(ctx context.Context, inputPath, outputDir, model string) ([]string, error)
}

// Transcriber converts one stem into a MIDI note file.
type Transcriber interface {
	Transcribe(ctx context.Context, stemPath, outputDir string) (string, error)
}

// NotationExporter converts a MIDI note file into a notation document.
type NotationExporter interface {
	Export(ctx context.Context, midiPath, outPath string) error
}

// Request identifies one job run.
type Request struct {
	JobID     string
	InputPath string
	Filename  string
	Model     string
}

// Pipeline is the orchestrator. Each Run owns exactly one job id and one
// workspace; instances are safe for concurrent runs of different jobs.
type Pipeline struct {
	store       store.Store
	separator   Separator
	transcriber Transcriber
	notation    NotationExporter
	workDir     string
	hub         *websocket.Hub
}

func New(jobStore store.Store, separator Separator, transcriber Transcriber, notation NotationExporter, workDir string, hub *websocket.Hub) *Pipeline {
	return &Pipeline{
		store:       jobStore,
		separator:   separator,
		transcriber: transcriber,
		notation:    notation,
		workDir:     workDir,
		hub:         hub,
	}
}

// Run processes a single job to a terminal status. Whatever happens inside,
// the job record ends up completed or failed — never stuck in processing.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	if err := p.process(ctx, req); err != nil {
		p.fail(req.JobID, err)
		return err
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, req Request) error {
	p.update(req.JobID, model.JobStatusProcessing, 10, "Starting stem separation...")

	ws, err := workspace.Allocate(p.workDir, req.JobID)
	if err != nil {
		return newError(KindResource, "workspace allocation", err)
	}

	p.update(req.JobID, model.JobStatusProcessing, 20, "Separating audio into stems (this may take a few minutes)...")

	stems, err := p.separator.Separate(ctx, req.InputPath, ws.SeparationDir(), req.Model)
	if err != nil {
		return newError(KindExternalTool, "stem separation", err)
	}
	if len(stems) == 0 {
		return newError(KindEmptyOutput, "stem separation", errors.New("separation produced no stems"))
	}

	total := len(stems)
	p.update(req.JobID, model.JobStatusProcessing, 50, fmt.Sprintf("Found %d stems. Converting to MIDI...", total))

	for idx, stemPath := range stems {
		if ctx.Err() != nil {
			return newError(KindResource, "processing interrupted", ctx.Err())
		}

		voice := strings.TrimSuffix(filepath.Base(stemPath), filepath.Ext(stemPath))
		progress := 50 + (idx*40)/total
		p.update(req.JobID, model.JobStatusProcessing, progress,
			fmt.Sprintf("Converting %s to MIDI (%d/%d)...", voice, idx+1, total))

		if _, err := ws.Stage(workspace.ArtifactStem, stemPath, voice); err != nil {
			return newError(KindResource, "stem staging", err)
		}

		scratch := ws.TranscriptionScratch(voice)
		midiPath, err := p.transcriber.Transcribe(ctx, stemPath, scratch)
		if err != nil {
			// one voice without a note file must not abort the job
			log.Printf("Job %s: no MIDI produced for %s: %v", req.JobID, voice, err)
		} else {
			staged, err := ws.Stage(workspace.ArtifactNoteFile, midiPath, voice)
			if err != nil {
				return newError(KindResource, "note file staging", err)
			}
			if err := p.notation.Export(ctx, staged, ws.NotationPath(voice)); err != nil {
				log.Printf("Job %s: MusicXML conversion failed for %s: %v", req.JobID, voice, err)
			}
		}

		os.RemoveAll(scratch)
	}

	p.update(req.JobID, model.JobStatusProcessing, 90, "Creating download package...")

	baseName := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	archivePath, err := ws.Package(baseName)
	if err != nil {
		return newError(KindPackaging, "packaging", err)
	}

	job, err := p.store.Update(context.Background(), req.JobID, store.Update{
		Status:     store.StatusOf(model.JobStatusCompleted),
		Progress:   store.ProgressOf(100),
		Message:    store.MessageOf("Processing complete! Your files are ready for download."),
		OutputFile: store.OutputFileOf(filepath.Base(archivePath)),
	})
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	if p.hub != nil {
		p.hub.BroadcastComplete(req.JobID, job)
	}

	ws.CleanupIntermediate()
	return nil
}

// update writes a progress step. Store failures are logged, not fatal: a
// missed intermediate update is preferable to aborting a long-running job.
func (p *Pipeline) update(jobID string, status model.JobStatus, progress int, message string) {
	// terminal updates use a caller context; progress updates should land
	// even when the task context is on its way out
	_, err := p.store.Update(context.Background(), jobID, store.Update{
		Status:   store.StatusOf(status),
		Progress: store.ProgressOf(progress),
		Message:  store.MessageOf(message),
	})
	if err != nil {
		log.Printf("Job %s: failed to update progress: %v", jobID, err)
	}

	if p.hub != nil {
		p.hub.BroadcastProgress(jobID, progress, status, message)
	}
}

// fail records a terminal failure, preserving the last progress value.
func (p *Pipeline) fail(jobID string, cause error) {
	log.Printf("Job %s: processing failed: %v", jobID, cause)

	_, err := p.store.Update(context.Background(), jobID, store.Update{
		Status:  store.StatusOf(model.JobStatusFailed),
		Message: store.MessageOf(fmt.Sprintf("Processing failed: %v", cause)),
	})
	if err != nil {
		log.Printf("Job %s: failed to mark job as failed: %v", jobID, err)
	}

	if p.hub != nil {
		code := string(KindOf(cause))
		if code == "" {
			code = "processing_failure"
		}
		p.hub.BroadcastError(jobID, strings.ToUpper(code), cause.Error())
	}
}
