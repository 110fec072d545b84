// Package workspace manages the per-job scratch directory tree and packages
// the final downloadable archive.
package workspace

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	stemsSubdir     = "stems"
	midiSubdir      = "midi"
	notationSubdir  = "musicxml"
	separatedSubdir = "separated"
)

// ArtifactKind identifies which subdirectory a staged artifact belongs to.
type ArtifactKind string

const (
	ArtifactStem     ArtifactKind = "stem"
	ArtifactNoteFile ArtifactKind = "midi"
)

// Workspace is a job-scoped directory tree holding intermediate artifacts
// and the final archive. It is owned by a single pipeline run.
type Workspace struct {
	root string
}

// Allocate creates the workspace tree for a job. It refuses to reuse an
// existing non-empty directory.
func Allocate(baseDir, jobID string) (*Workspace, error) {
	root := filepath.Join(baseDir, jobID)

	if entries, err := os.ReadDir(root); err == nil && len(entries) > 0 {
		return nil, fmt.Errorf("workspace %s already exists and is not empty", root)
	}

	for _, sub := range []string{stemsSubdir, midiSubdir, notationSubdir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create workspace directory: %w", err)
		}
	}
	return &Workspace{root: root}, nil
}

func (w *Workspace) Root() string { return w.root }

// SeparationDir is where the separation tool writes its raw output tree.
func (w *Workspace) SeparationDir() string {
	return filepath.Join(w.root, separatedSubdir)
}

// TranscriptionScratch is the per-voice working directory handed to the
// transcription tool, removed once its output has been staged.
func (w *Workspace) TranscriptionScratch(voice string) string {
	return filepath.Join(w.root, midiSubdir, voice)
}

// NotationPath is where the notation document for a voice is written.
func (w *Workspace) NotationPath(voice string) string {
	return filepath.Join(w.root, notationSubdir, voice+".musicxml")
}

// Stage places a produced artifact into its subdirectory under a name
// derived from the voice it represents. Stems are copied (the source tree
// is still being consumed); note files are moved.
func (w *Workspace) Stage(kind ArtifactKind, sourcePath, voice string) (string, error) {
	var dest string
	switch kind {
	case ArtifactStem:
		dest = filepath.Join(w.root, stemsSubdir, voice+filepath.Ext(sourcePath))
		if err := copyFile(sourcePath, dest); err != nil {
			return "", fmt.Errorf("failed to stage stem %s: %w", voice, err)
		}
	case ArtifactNoteFile:
		dest = filepath.Join(w.root, midiSubdir, voice+".mid")
		if err := os.Rename(sourcePath, dest); err != nil {
			return "", fmt.Errorf("failed to stage note file %s: %w", voice, err)
		}
	default:
		return "", fmt.Errorf("unknown artifact kind %q", kind)
	}
	return dest, nil
}

// Package builds {root}/{baseName}_processed.zip containing every staged
// artifact with its subdirectory as the entry prefix. Notation export is
// best-effort per voice, so an empty musicxml directory is tolerated; empty
// stems or midi directories are not.
func (w *Workspace) Package(baseName string) (string, error) {
	archivePath := filepath.Join(w.root, baseName+"_processed.zip")

	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	for _, sub := range []struct {
		dir      string
		required bool
	}{
		{stemsSubdir, true},
		{midiSubdir, true},
		{notationSubdir, false},
	} {
		count, err := w.addDirEntries(zw, sub.dir)
		if err != nil {
			zw.Close()
			return "", err
		}
		if sub.required && count == 0 {
			zw.Close()
			return "", fmt.Errorf("no artifacts to package under %s/", sub.dir)
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	return archivePath, nil
}

func (w *Workspace) addDirEntries(zw *zip.Writer, subdir string) (int, error) {
	dir := filepath.Join(w.root, subdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			// leftover tool scratch dirs are not artifacts
			continue
		}
		src := filepath.Join(dir, entry.Name())
		if err := addZipEntry(zw, src, subdir+"/"+entry.Name()); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func addZipEntry(zw *zip.Writer, srcPath, entryName string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", srcPath, err)
	}
	defer src.Close()

	entry, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", entryName, err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", entryName, err)
	}
	return nil
}

// CleanupIntermediate removes the large raw separation output once the
// archive has been produced. Removal errors are swallowed.
func (w *Workspace) CleanupIntermediate() {
	os.RemoveAll(w.SeparationDir())
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
