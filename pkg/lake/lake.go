// Package lake defines the on-disk medallion layout shared by the pipeline
// stages and the atomic write used for every artifact.
//
// Layout under the data root:
//
//	bronze/breweries_raw.json                   raw snapshot
//	bronze/breweries_raw_converted.csv          converted table
//	bronze/breweries_raw_converted.csv.schema.json
//	silver/<slug>.parquet                       one unit per state
//	silver/_manifest.json                       units written by the last clean run
//	gold/breweries_final.parquet                aggregate
package lake

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File names inside the layers.
const (
	RawSnapshotFile = "breweries_raw.json"
	ConvertedFile   = "breweries_raw_converted.csv"
	SchemaSuffix    = ".schema.json"
	ManifestFile    = "_manifest.json"
	AggregateFile   = "breweries_final.parquet"
	UnitExt         = ".parquet"
)

// Layout resolves artifact paths. Each layer directory can be set on its
// own; NewLayout derives all three from one root.
type Layout struct {
	Bronze string
	Silver string
	Gold   string
}

// NewLayout returns the default layout under root.
func NewLayout(root string) Layout {
	return Layout{
		Bronze: filepath.Join(root, "bronze"),
		Silver: filepath.Join(root, "silver"),
		Gold:   filepath.Join(root, "gold"),
	}
}

func (l Layout) RawSnapshot() string     { return filepath.Join(l.Bronze, RawSnapshotFile) }
func (l Layout) Converted() string       { return filepath.Join(l.Bronze, ConvertedFile) }
func (l Layout) ConvertedSchema() string { return l.Converted() + SchemaSuffix }
func (l Layout) Manifest() string        { return filepath.Join(l.Silver, ManifestFile) }
func (l Layout) Aggregate() string       { return filepath.Join(l.Gold, AggregateFile) }

// Unit returns the path of the partition unit for slug.
func (l Layout) Unit(slug string) string {
	return filepath.Join(l.Silver, slug+UnitExt)
}

// ListUnits returns the partition unit paths currently in the silver
// directory, sorted by name. A missing directory has no units.
func (l Layout) ListUnits() ([]string, error) {
	entries, err := os.ReadDir(l.Silver)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list units: %w", err)
	}

	var units []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), UnitExt) {
			continue
		}
		units = append(units, filepath.Join(l.Silver, e.Name()))
	}
	sort.Strings(units)
	return units, nil
}

// WriteFile writes path atomically: the content goes to a temporary file in
// the same directory which is synced and renamed over path. On error the
// previous content of path is untouched.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	// Encoders that close their sink must not close the temp file early.
	if err := write(struct{ io.Writer }{tmp}); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
