// Package skeleton — file_writer.go
//
// FileWriter implements Writer by persisting a SkeletonSequence as an
// indented JSON document under a configured output directory, matching
// the original pipeline's one-file-per-event layout (original_source/src/
// lifecycle/schema/validator.py operates over exactly this kind of file).
package skeleton

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileWriter writes SkeletonSequence documents to OutputDir/<event_id>.json.
type FileWriter struct {
	OutputDir string
}

// NewFileWriter constructs a FileWriter rooted at dir.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{OutputDir: dir}
}

// Write implements Writer.
func (w *FileWriter) Write(seq SkeletonSequence) (string, error) {
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("skeleton file writer: mkdir %s: %w", w.OutputDir, err)
	}

	data, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return "", fmt.Errorf("skeleton file writer: marshal %s: %w", seq.EventID, err)
	}

	path := filepath.Join(w.OutputDir, seq.EventID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("skeleton file writer: write %s: %w", path, err)
	}
	return path, nil
}
