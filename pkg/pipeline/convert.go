package pipeline

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/lake"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/record"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/table"
)

// Convert flattens the raw snapshot into a typed table and writes it as CSV
// with a JSON schema sidecar. The same snapshot always yields the same
// bytes.
func (p *Pipeline) Convert(ctx context.Context) stage.Result {
	return p.run(ctx, stage.Convert, func(ctx context.Context, log zerolog.Logger) (stage.Outcome, error) {
		src := p.layout.RawSnapshot()
		f, err := os.Open(src)
		if err != nil {
			return stage.Outcome{}, missing(src, err)
		}
		defer f.Close()

		recs, err := record.ReadSnapshot(f)
		if err != nil {
			return stage.Outcome{}, invalid(src, err)
		}

		tbl := table.FromRecords(recs)
		log.Debug().
			Int("records", len(recs)).
			Strs("columns", tbl.Schema.Names()).
			Msg("Snapshot flattened")

		csvPath, schemaPath := p.layout.Converted(), p.layout.ConvertedSchema()
		if err := lake.WriteFile(csvPath, func(w io.Writer) error {
			return table.WriteCSV(w, &tbl)
		}); err != nil {
			return stage.Outcome{}, stage.Internal(err)
		}
		if err := lake.WriteFile(schemaPath, func(w io.Writer) error {
			return table.WriteSchema(w, tbl.Schema)
		}); err != nil {
			return stage.Outcome{}, stage.Internal(err)
		}
		convertedColumns.Set(float64(len(tbl.Schema.Columns)))

		return stage.Outcome{
			Artifacts: []string{csvPath, schemaPath},
			RowsIn:    len(recs),
			RowsOut:   tbl.Len(),
			Counters:  map[string]int64{"columns": int64(len(tbl.Schema.Columns))},
		}, nil
	})
}
