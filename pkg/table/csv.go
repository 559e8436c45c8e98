package table

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// NullToken is the CSV encoding of a null cell. An empty cell is an empty
// string, so null and "" survive a round trip as different values.
const NullToken = `\N`

// WriteCSV writes t as CSV with a header row. Strings starting with a
// backslash get one extra leading backslash so they cannot be mistaken for
// NullToken.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Schema.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	cells := make([]string, len(t.Schema.Columns))
	for ri, r := range t.Rows {
		if len(r) != len(cells) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrSchemaMismatch, ri, len(r), len(cells))
		}
		for ci, v := range r {
			s, err := formatCell(v)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", ri, t.Schema.Columns[ci].Name, err)
			}
			cells[ci] = s
		}
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("write row %d: %w", ri, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return NullToken, nil
	case string:
		if strings.HasPrefix(x, `\`) {
			return `\` + x, nil
		}
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("non-finite float %v", x)
		}
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("unsupported cell type %T", v)
	}
}

// ReadCSV reads a CSV written by WriteCSV and validates it against schema:
// the header must list exactly the schema columns in order and every cell
// must parse as its column kind.
func ReadCSV(r io.Reader, schema Schema) (Table, error) {
	if err := schema.Validate(); err != nil {
		return Table{}, err
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// A zero-column table is written as a single empty line.
			if len(schema.Columns) == 0 {
				return Table{Schema: schema}, nil
			}
			return Table{}, fmt.Errorf("%w: missing header", ErrSchemaMismatch)
		}
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	want := schema.Names()
	if len(header) != len(want) {
		return Table{}, fmt.Errorf("%w: header has %d columns, schema has %d", ErrSchemaMismatch, len(header), len(want))
	}
	for i := range header {
		if header[i] != want[i] {
			return Table{}, fmt.Errorf("%w: header column %d is %q, schema says %q", ErrSchemaMismatch, i, header[i], want[i])
		}
	}

	t := Table{Schema: schema}
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		row := make(Row, len(cells))
		for ci, cell := range cells {
			v, err := parseCell(cell, schema.Columns[ci].Kind)
			if err != nil {
				return Table{}, fmt.Errorf("%w: line %d column %q: %v", ErrSchemaMismatch, line, schema.Columns[ci].Name, err)
			}
			row[ci] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseCell(cell string, kind Kind) (any, error) {
	if cell == NullToken {
		return nil, nil
	}
	switch kind {
	case KindString:
		if strings.HasPrefix(cell, `\\`) {
			return cell[1:], nil
		}
		return cell, nil
	case KindInt:
		return strconv.ParseInt(cell, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(cell, 64)
	case KindBool:
		return strconv.ParseBool(cell)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

// WriteSchema writes the schema sidecar as indented JSON.
func WriteSchema(w io.Writer, s Schema) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadSchema reads and validates a schema sidecar.
func ReadSchema(r io.Reader) (Schema, error) {
	var s Schema
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Schema{}, fmt.Errorf("%w: decode schema: %v", ErrSchemaMismatch, err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}
