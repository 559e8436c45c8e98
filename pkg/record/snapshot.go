package record

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteSnapshot encodes recs as one indented JSON array. Non-ASCII text is
// written as UTF-8 rather than escaped so the snapshot stays human-readable.
// A nil or empty slice is written as an empty array.
func WriteSnapshot(w io.Writer, recs []Raw) error {
	if recs == nil {
		recs = []Raw{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]Raw, error) {
	recs, err := DecodeArray(r)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return recs, nil
}
