package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"competesync/pkg/paginator"
)

type exportFile struct {
	Total        int                 `json:"total_participants"`
	Participants []paginator.RawItem `json:"participants"`
}

// ExportJSON writes {"total_participants": n, "participants": [...]} to path
// through a temp file and rename
func ExportJSON(path string, items []paginator.RawItem) error {
	if items == nil {
		items = []paginator.RawItem{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exportFile{Total: len(items), Participants: items}); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, buf.Bytes(), 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
