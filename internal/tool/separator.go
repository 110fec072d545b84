package tool

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Separator runs demucs to split an audio file into per-voice stems.
type Separator struct {
	binPath      string
	defaultModel string
	executor     Executor
}

func NewSeparator(binPath, defaultModel string, executor Executor) *Separator {
	return &Separator{
		binPath:      binPath,
		defaultModel: defaultModel,
		executor:     executor,
	}
}

// Separate invokes demucs on inputPath, writing under outputDir, and returns
// the produced stem files sorted by name. The requested model declares the
// expected voice set, but whatever the tool actually produces is
// authoritative. A failed run and a run with missing output are both errors;
// an empty stem list is returned as a success with zero entries so the
// caller can distinguish "tool broke" from "tool produced nothing usable".
func (s *Separator) Separate(ctx context.Context, inputPath, outputDir, model string) ([]string, error) {
	if model == "" {
		model = s.defaultModel
	}

	args := []string{"-n", model, "-o", outputDir, inputPath}
	log.Printf("Running demucs: %s %s", s.binPath, strings.Join(args, " "))

	cmd := s.executor.CommandContext(ctx, s.binPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("demucs failed: %s: %w", trimOutput(output), err)
	}

	// demucs writes stems under {outputDir}/{model}/{track}/
	track := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	separatedDir := filepath.Join(outputDir, model, track)
	if _, err := os.Stat(separatedDir); err != nil {
		return nil, fmt.Errorf("stem separation output not found at %s: %w", separatedDir, err)
	}

	stems, err := filepath.Glob(filepath.Join(separatedDir, "*.wav"))
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate stems: %w", err)
	}
	sort.Strings(stems)
	return stems, nil
}

func trimOutput(output []byte) string {
	s := strings.TrimSpace(string(output))
	// tool output can be huge; keep the tail where the error usually is
	const limit = 2048
	if len(s) > limit {
		s = "..." + s[len(s)-limit:]
	}
	return s
}
