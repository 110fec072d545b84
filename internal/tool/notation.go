package tool

import (
	"context"
	"fmt"
	"os"
)

// NotationExporter runs MuseScore to convert a MIDI file into MusicXML.
type NotationExporter struct {
	binPath  string
	executor Executor
}

func NewNotationExporter(binPath string, executor Executor) *NotationExporter {
	return &NotationExporter{
		binPath:  binPath,
		executor: executor,
	}
}

// Export converts midiPath into a notation document at outPath. The output
// format is derived by MuseScore from the outPath extension.
func (e *NotationExporter) Export(ctx context.Context, midiPath, outPath string) error {
	cmd := e.executor.CommandContext(ctx, e.binPath, "-o", outPath, midiPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mscore failed: %s: %w", trimOutput(output), err)
	}

	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("notation output missing: %w", ErrNoOutput)
	}
	return nil
}
