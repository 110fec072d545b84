package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoOutput indicates a tool ran but produced no usable artifact.
var ErrNoOutput = errors.New("tool produced no output")

// Transcriber runs basic-pitch to convert one stem into a MIDI note file.
type Transcriber struct {
	binPath  string
	executor Executor
}

func NewTranscriber(binPath string, executor Executor) *Transcriber {
	return &Transcriber{
		binPath:  binPath,
		executor: executor,
	}
}

// Transcribe invokes basic-pitch on stemPath with outputDir as its output
// directory and returns the path of the produced MIDI file. basic-pitch's
// exit code is not a reliable success signal; the artifact on disk is.
func (t *Transcriber) Transcribe(ctx context.Context, stemPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create transcription output dir: %w", err)
	}

	cmd := t.executor.CommandContext(ctx, t.binPath, outputDir, stemPath)
	output, runErr := cmd.CombinedOutput()

	midiFiles, err := filepath.Glob(filepath.Join(outputDir, "*.mid"))
	if err != nil {
		return "", fmt.Errorf("failed to enumerate MIDI output: %w", err)
	}
	if len(midiFiles) == 0 {
		if runErr != nil {
			return "", fmt.Errorf("basic-pitch failed: %s: %w", trimOutput(output), runErr)
		}
		return "", fmt.Errorf("no MIDI file for %s: %w", filepath.Base(stemPath), ErrNoOutput)
	}

	sort.Strings(midiFiles)
	return midiFiles[0], nil
}
