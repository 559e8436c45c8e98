// Package table is the typed tabular model shared by the converter, the
// cleaner and the aggregator.
//
// A Table is a Schema (named, typed columns) plus rows. A cell holds nil for
// null or a Go value matching its column kind:
//
//	KindString -> string
//	KindInt    -> int64
//	KindFloat  -> float64
//	KindBool   -> bool
package table

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is returned when data does not match its declared schema.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Kind is the type of a column.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool:
		return true
	}
	return false
}

// Column is a named, typed column.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is an ordered list of columns.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the named column exists.
func (s Schema) Has(name string) bool { return s.Index(name) >= 0 }

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks for empty, duplicate or untyped columns.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("%w: column %d has no name", ErrSchemaMismatch, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate column %q", ErrSchemaMismatch, c.Name)
		}
		if !c.Kind.Valid() {
			return fmt.Errorf("%w: column %q has unknown kind %q", ErrSchemaMismatch, c.Name, c.Kind)
		}
		seen[c.Name] = true
	}
	return nil
}

// Row is one table row, aligned with the schema columns.
type Row []any

// Table is a schema plus rows.
type Table struct {
	Schema Schema
	Rows   []Row
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Get returns the cell of row i in the named column. Missing columns read as
// null.
func (t *Table) Get(i int, name string) any {
	c := t.Schema.Index(name)
	if c < 0 {
		return nil
	}
	return t.Rows[i][c]
}

// AddColumn appends a column and fills every existing row with fill. It is a
// no-op when the column already exists.
func (t *Table) AddColumn(col Column, fill any) {
	if t.Schema.Has(col.Name) {
		return
	}
	t.Schema.Columns = append(t.Schema.Columns, col)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
}

// Filter keeps the rows for which keep returns true and returns how many
// rows were dropped. Row order is preserved.
func (t *Table) Filter(keep func(Row) bool) int {
	kept := t.Rows[:0]
	for _, r := range t.Rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	dropped := len(t.Rows) - len(kept)
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
	return dropped
}

// CheckRow verifies that every cell of r matches its column kind.
func (s Schema) CheckRow(r Row) error {
	if len(r) != len(s.Columns) {
		return fmt.Errorf("%w: row has %d cells, schema has %d columns", ErrSchemaMismatch, len(r), len(s.Columns))
	}
	for i, v := range r {
		if v == nil {
			continue
		}
		ok := false
		switch s.Columns[i].Kind {
		case KindString:
			_, ok = v.(string)
		case KindInt:
			_, ok = v.(int64)
		case KindFloat:
			_, ok = v.(float64)
		case KindBool:
			_, ok = v.(bool)
		}
		if !ok {
			return fmt.Errorf("%w: column %q holds %T, want %s", ErrSchemaMismatch, s.Columns[i].Name, v, s.Columns[i].Kind)
		}
	}
	return nil
}
