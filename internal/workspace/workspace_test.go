package workspace

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestAllocate_CreatesTree(t *testing.T) {
	base := t.TempDir()

	ws, err := Allocate(base, "job-1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	for _, sub := range []string{"stems", "midi", "musicxml"} {
		info, err := os.Stat(filepath.Join(ws.Root(), sub))
		if err != nil || !info.IsDir() {
			t.Errorf("subdirectory %s missing: %v", sub, err)
		}
	}
}

func TestAllocate_RefusesNonEmptyTree(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "job-1", "leftover.txt"), []byte("x"))

	if _, err := Allocate(base, "job-1"); err == nil {
		t.Fatal("expected error for non-empty existing workspace")
	}
}

func TestStage_StemCopiedAndNoteFileMoved(t *testing.T) {
	ws, err := Allocate(t.TempDir(), "job-1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	src := t.TempDir()
	stemSrc := filepath.Join(src, "vocals.wav")
	writeFile(t, stemSrc, []byte("stem bytes"))

	staged, err := ws.Stage(ArtifactStem, stemSrc, "vocals")
	if err != nil {
		t.Fatalf("Stage stem failed: %v", err)
	}
	if filepath.Base(staged) != "vocals.wav" {
		t.Errorf("stem staged as %s", staged)
	}
	if _, err := os.Stat(stemSrc); err != nil {
		t.Error("stem source should not be consumed by staging")
	}

	midiSrc := filepath.Join(ws.TranscriptionScratch("vocals"), "vocals_basic_pitch.mid")
	writeFile(t, midiSrc, []byte("midi bytes"))

	staged, err = ws.Stage(ArtifactNoteFile, midiSrc, "vocals")
	if err != nil {
		t.Fatalf("Stage note file failed: %v", err)
	}
	if filepath.Base(staged) != "vocals.mid" {
		t.Errorf("note file staged as %s", staged)
	}
	if _, err := os.Stat(midiSrc); !os.IsNotExist(err) {
		t.Error("note file source should be moved, not copied")
	}
}

func TestPackage_RoundTripsArtifacts(t *testing.T) {
	ws, err := Allocate(t.TempDir(), "job-1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	artifacts := map[string][]byte{
		"stems/bass.wav":        []byte("bass audio"),
		"stems/vocals.wav":      []byte("vocals audio"),
		"midi/bass.mid":         []byte("bass midi"),
		"midi/vocals.mid":       []byte("vocals midi"),
		"musicxml/bass.musicxml": []byte("<score/>"),
	}
	for name, data := range artifacts {
		writeFile(t, filepath.Join(ws.Root(), name), data)
	}

	archivePath, err := ws.Package("track")
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if filepath.Base(archivePath) != "track_processed.zip" {
		t.Errorf("archive named %s", archivePath)
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer r.Close()

	found := map[string][]byte{}
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read entry %s: %v", f.Name, err)
		}
		found[f.Name] = data
	}

	if len(found) != len(artifacts) {
		t.Fatalf("archive has %d entries, want %d", len(found), len(artifacts))
	}
	for name, want := range artifacts {
		if !bytes.Equal(found[name], want) {
			t.Errorf("entry %s not byte-identical to staged artifact", name)
		}
	}
}

func TestPackage_ToleratesEmptyNotationDir(t *testing.T) {
	ws, err := Allocate(t.TempDir(), "job-1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	writeFile(t, filepath.Join(ws.Root(), "stems", "vocals.wav"), []byte("audio"))
	writeFile(t, filepath.Join(ws.Root(), "midi", "vocals.mid"), []byte("midi"))

	if _, err := ws.Package("track"); err != nil {
		t.Fatalf("Package should tolerate empty musicxml dir: %v", err)
	}
}

func TestPackage_FailsWithoutRequiredArtifacts(t *testing.T) {
	ws, err := Allocate(t.TempDir(), "job-1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	writeFile(t, filepath.Join(ws.Root(), "stems", "vocals.wav"), []byte("audio"))

	_, err = ws.Package("track")
	if err == nil || !strings.Contains(err.Error(), "midi/") {
		t.Fatalf("expected empty midi dir to fail packaging, got %v", err)
	}
}

func TestPackage_SkipsLeftoverScratchDirs(t *testing.T) {
	ws, err := Allocate(t.TempDir(), "job-1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	writeFile(t, filepath.Join(ws.Root(), "stems", "vocals.wav"), []byte("audio"))
	writeFile(t, filepath.Join(ws.Root(), "midi", "vocals.mid"), []byte("midi"))
	// scratch dir the transcription tool left behind
	writeFile(t, filepath.Join(ws.TranscriptionScratch("drums"), "junk.tmp"), []byte("x"))

	archivePath, err := ws.Package("track")
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if strings.Contains(f.Name, "junk") {
			t.Errorf("scratch file packaged: %s", f.Name)
		}
	}
}

func TestCleanupIntermediate(t *testing.T) {
	ws, err := Allocate(t.TempDir(), "job-1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	writeFile(t, filepath.Join(ws.SeparationDir(), "htdemucs_6s", "track", "vocals.wav"), []byte("raw"))
	ws.CleanupIntermediate()

	if _, err := os.Stat(ws.SeparationDir()); !os.IsNotExist(err) {
		t.Error("separation output should be removed")
	}

	// calling again on a clean tree must not panic or error
	ws.CleanupIntermediate()
}
