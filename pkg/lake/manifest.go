package lake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Manifest lists the partition units written by one clean run.
type Manifest struct {
	RunID     string         `json:"run_id"`
	WrittenAt time.Time      `json:"written_at"`
	Units     []ManifestUnit `json:"units"`
}

// ManifestUnit is one partition unit of a manifest.
type ManifestUnit struct {
	Slug  string `json:"slug"`
	State string `json:"state"`
	File  string `json:"file"`
	Rows  int    `json:"rows"`
}

// Paths returns the absolute unit paths of m inside l.
func (m Manifest) Paths(l Layout) []string {
	paths := make([]string, len(m.Units))
	for i, u := range m.Units {
		paths[i] = filepath.Join(l.Silver, u.File)
	}
	return paths
}

// WriteManifest commits m atomically.
func WriteManifest(l Layout, m Manifest) error {
	return WriteFile(l.Manifest(), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
}

// RemoveManifest deletes the manifest. A manifest that does not exist is
// not an error.
func RemoveManifest(l Layout) error {
	if err := os.Remove(l.Manifest()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest. A missing manifest returns an error
// wrapping os.ErrNotExist.
func ReadManifest(l Layout) (Manifest, error) {
	f, err := os.Open(l.Manifest())
	if err != nil {
		return Manifest{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var m Manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
