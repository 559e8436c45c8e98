// Package columnar stores table.Table values as Parquet files through Apache
// Arrow. Partition units and the aggregate are written with it so that they
// are read back with their column kinds intact.
package columnar

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/lake"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/table"
)

// DefaultRowGroupSize is the maximum number of rows per Parquet row group.
const DefaultRowGroupSize = 64 * 1024

// Codec converts between table.Table and Parquet.
type Codec struct {
	mem          memory.Allocator
	rowGroupSize int64
}

// New returns a codec allocating from mem. A nil mem uses a Go allocator.
func New(mem memory.Allocator) *Codec {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Codec{mem: mem, rowGroupSize: DefaultRowGroupSize}
}

// ArrowSchema maps a table schema to an Arrow schema. Every field is
// nullable.
func ArrowSchema(s table.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(s.Columns))
	for i, c := range s.Columns {
		dt, err := arrowType(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func arrowType(k table.Kind) (arrow.DataType, error) {
	switch k {
	case table.KindString:
		return arrow.BinaryTypes.String, nil
	case table.KindInt:
		return arrow.PrimitiveTypes.Int64, nil
	case table.KindFloat:
		return arrow.PrimitiveTypes.Float64, nil
	case table.KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", table.ErrSchemaMismatch, k)
	}
}

func kindOf(dt arrow.DataType) (table.Kind, error) {
	switch dt.ID() {
	case arrow.STRING:
		return table.KindString, nil
	case arrow.INT64:
		return table.KindInt, nil
	case arrow.FLOAT64:
		return table.KindFloat, nil
	case arrow.BOOL:
		return table.KindBool, nil
	default:
		return "", fmt.Errorf("%w: unsupported arrow type %s", table.ErrSchemaMismatch, dt)
	}
}

// Record builds one Arrow record holding every row of t. The caller must
// release it.
func (c *Codec) Record(t *table.Table) (arrow.Record, error) {
	schema, err := ArrowSchema(t.Schema)
	if err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(c.mem, schema)
	defer b.Release()

	for ri, row := range t.Rows {
		if err := t.Schema.CheckRow(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", ri, err)
		}
		for ci, v := range row {
			appendValue(b.Field(ci), v)
		}
	}
	return b.NewRecord(), nil
}

func appendValue(fb array.Builder, v any) {
	if v == nil {
		fb.AppendNull()
		return
	}
	switch x := fb.(type) {
	case *array.StringBuilder:
		x.Append(v.(string))
	case *array.Int64Builder:
		x.Append(v.(int64))
	case *array.Float64Builder:
		x.Append(v.(float64))
	case *array.BooleanBuilder:
		x.Append(v.(bool))
	}
}

// Write encodes t as a Snappy-compressed Parquet file.
func (c *Codec) Write(w io.Writer, t *table.Table) error {
	rec, err := c.Record(t)
	if err != nil {
		return err
	}
	defer rec.Release()

	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(c.mem),
	)
	arrProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(c.mem),
	)
	if err := pqarrow.WriteTable(tbl, w, c.rowGroupSize, props, arrProps); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

// Read decodes a Parquet file into a table.
func (c *Codec) Read(ctx context.Context, r parquet.ReaderAtSeeker) (table.Table, error) {
	tbl, err := pqarrow.ReadTable(ctx, r, parquet.NewReaderProperties(c.mem), pqarrow.ArrowReadProperties{}, c.mem)
	if err != nil {
		return table.Table{}, fmt.Errorf("%w: read parquet: %v", table.ErrSchemaMismatch, err)
	}
	defer tbl.Release()

	var out table.Table
	for _, f := range tbl.Schema().Fields() {
		k, err := kindOf(f.Type)
		if err != nil {
			return table.Table{}, fmt.Errorf("column %q: %w", f.Name, err)
		}
		out.Schema.Columns = append(out.Schema.Columns, table.Column{Name: f.Name, Kind: k})
	}
	if err := out.Schema.Validate(); err != nil {
		return table.Table{}, err
	}

	tr := array.NewTableReader(tbl, c.rowGroupSize)
	defer tr.Release()

	for tr.Next() {
		rec := tr.Record()
		n := int(rec.NumRows())
		base := len(out.Rows)
		for i := 0; i < n; i++ {
			out.Rows = append(out.Rows, make(table.Row, len(out.Schema.Columns)))
		}
		for ci := range out.Schema.Columns {
			col := rec.Column(ci)
			for i := 0; i < n; i++ {
				out.Rows[base+i][ci] = valueAt(col, i)
			}
		}
	}
	if err := tr.Err(); err != nil {
		return table.Table{}, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}

func valueAt(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.String:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	}
	return nil
}

// WriteFile writes t to path atomically.
func (c *Codec) WriteFile(path string, t *table.Table) error {
	return lake.WriteFile(path, func(w io.Writer) error {
		return c.Write(w, t)
	})
}

// ReadFile reads the Parquet file at path.
func (c *Codec) ReadFile(ctx context.Context, path string) (table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table.Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := c.Read(ctx, f)
	if err != nil {
		return table.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
