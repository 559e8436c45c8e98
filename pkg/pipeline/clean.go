package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/cleaning"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/lake"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/table"
)

// CleanAndPartition reads the converted table, validates it against its
// schema sidecar, applies the cleaning rules and writes one Parquet unit per
// state slug. Units are written only once every rule has run. The previous
// manifest is removed before the first unit write and the new one is
// committed last, so a run that fails midway leaves no manifest behind.
// Units of states absent from this run are left in place.
func (p *Pipeline) CleanAndPartition(ctx context.Context) stage.Result {
	return p.run(ctx, stage.Clean, func(ctx context.Context, log zerolog.Logger) (stage.Outcome, error) {
		tbl, err := p.readConverted()
		if err != nil {
			return stage.Outcome{}, err
		}

		cleaner := cleaning.New(log)
		report := cleaner.Apply(&tbl)
		units, nullState := cleaner.Partition(&tbl)

		manifest := lake.Manifest{
			RunID:     stage.RunID(ctx),
			WrittenAt: p.now().UTC(),
			Units:     make([]lake.ManifestUnit, 0, len(units)),
		}
		artifacts := make([]string, 0, len(units)+1)
		if err := lake.RemoveManifest(p.layout); err != nil {
			return stage.Outcome{}, stage.Internal(err)
		}
		for i := range units {
			if err := ctx.Err(); err != nil {
				return stage.Outcome{}, stage.Internal(err)
			}
			u := &units[i]
			path := p.layout.Unit(u.Slug)
			if err := p.codec.WriteFile(path, &u.Table); err != nil {
				return stage.Outcome{}, stage.Internal(fmt.Errorf("unit %s: %w", u.Slug, err))
			}
			log.Debug().Str("slug", u.Slug).Int("rows", u.Table.Len()).Msg("Partition unit written")

			artifacts = append(artifacts, path)
			manifest.Units = append(manifest.Units, lake.ManifestUnit{
				Slug:  u.Slug,
				State: u.State,
				File:  filepath.Base(path),
				Rows:  u.Table.Len(),
			})
		}

		if err := lake.WriteManifest(p.layout, manifest); err != nil {
			return stage.Outcome{}, stage.Internal(err)
		}
		artifacts = append(artifacts, p.layout.Manifest())
		partitionUnits.Set(float64(len(units)))

		counters := make(map[string]int64, len(report.Rules)+2)
		for _, r := range report.Rules {
			counters[r.Rule] = int64(r.Affected)
		}
		counters["units"] = int64(len(units))
		counters["null_state_rows"] = int64(nullState)

		return stage.Outcome{
			Message:   fmt.Sprintf("%d partition units", len(units)),
			Artifacts: artifacts,
			RowsIn:    report.RowsIn,
			RowsOut:   report.RowsOut - nullState,
			Counters:  counters,
		}, nil
	})
}

// readConverted loads the converted CSV checked against its schema sidecar.
func (p *Pipeline) readConverted() (table.Table, error) {
	schemaPath := p.layout.ConvertedSchema()
	sf, err := os.Open(schemaPath)
	if err != nil {
		return table.Table{}, missing(schemaPath, err)
	}
	defer sf.Close()

	schema, err := table.ReadSchema(sf)
	if err != nil {
		return table.Table{}, invalid(schemaPath, err)
	}

	csvPath := p.layout.Converted()
	cf, err := os.Open(csvPath)
	if err != nil {
		return table.Table{}, missing(csvPath, err)
	}
	defer cf.Close()

	tbl, err := table.ReadCSV(cf, schema)
	if err != nil {
		return table.Table{}, invalid(csvPath, err)
	}
	return tbl, nil
}
