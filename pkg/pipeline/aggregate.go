package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/cleaning"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/config"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/lake"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/table"
)

// Aggregate column names.
const (
	ColBreweryCount = "brewery_count"
)

// AggregateSchema is the schema of the gold artifact.
var AggregateSchema = table.Schema{Columns: []table.Column{
	{Name: cleaning.ColBreweryType, Kind: table.KindString},
	{Name: cleaning.ColState, Kind: table.KindString},
	{Name: ColBreweryCount, Kind: table.KindInt},
}}

// AggregateRow is one (brewery_type, state) group.
type AggregateRow struct {
	BreweryType string
	State       string
	Count       int64
}

// Aggregate counts breweries per (brewery_type, state) over the partition
// units selected by the aggregate scope and writes the result sorted by type
// then state. Without any unit it finishes as skipped and writes nothing.
func (p *Pipeline) Aggregate(ctx context.Context) stage.Result {
	return p.run(ctx, stage.Aggregate, func(ctx context.Context, log zerolog.Logger) (stage.Outcome, error) {
		units, err := p.selectUnits(log)
		if err != nil {
			return stage.Outcome{}, err
		}
		if len(units) == 0 {
			return stage.Outcome{
				Status:  stage.StatusSkipped,
				Message: "no partition units to aggregate",
			}, nil
		}

		counts := make(map[[2]string]int64)
		rowsIn, nullKeys := 0, 0
		for _, path := range units {
			if err := ctx.Err(); err != nil {
				return stage.Outcome{}, stage.Internal(err)
			}
			unit, err := p.codec.ReadFile(ctx, path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return stage.Outcome{}, missing(path, err)
				}
				return stage.Outcome{}, invalid(path, err)
			}
			if err := requireStrings(unit.Schema, cleaning.ColBreweryType, cleaning.ColState); err != nil {
				return stage.Outcome{}, invalid(path, err)
			}

			ti, si := unit.Schema.Index(cleaning.ColBreweryType), unit.Schema.Index(cleaning.ColState)
			for _, r := range unit.Rows {
				typ, ok1 := r[ti].(string)
				st, ok2 := r[si].(string)
				if !ok1 || !ok2 {
					nullKeys++
					continue
				}
				counts[[2]string{typ, st}]++
			}
			rowsIn += unit.Len()
		}
		if nullKeys > 0 {
			log.Warn().Int("rows", nullKeys).Msg("Rows with a null group key were not counted")
		}

		rows := groupRows(counts)
		out := table.Table{Schema: AggregateSchema, Rows: make([]table.Row, len(rows))}
		for i, r := range rows {
			out.Rows[i] = table.Row{r.BreweryType, r.State, r.Count}
		}

		path := p.layout.Aggregate()
		if err := p.codec.WriteFile(path, &out); err != nil {
			return stage.Outcome{}, stage.Internal(err)
		}
		aggregateGroups.Set(float64(len(rows)))

		return stage.Outcome{
			Message:   fmt.Sprintf("%d groups from %d units", len(rows), len(units)),
			Artifacts: []string{path},
			RowsIn:    rowsIn,
			RowsOut:   len(rows),
			Counters: map[string]int64{
				"units":         int64(len(units)),
				"groups":        int64(len(rows)),
				"null_key_rows": int64(nullKeys),
			},
		}, nil
	})
}

// selectUnits lists the units the configured scope covers.
func (p *Pipeline) selectUnits(log zerolog.Logger) ([]string, error) {
	if p.cfg.AggregateScope == config.ScopeCurrentRun {
		m, err := lake.ReadManifest(p.layout)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("manifest", p.layout.Manifest()).Msg("No manifest, nothing from a current run")
			return nil, nil
		}
		if err != nil {
			return nil, invalid(p.layout.Manifest(), err)
		}
		return m.Paths(p.layout), nil
	}

	units, err := p.layout.ListUnits()
	if err != nil {
		return nil, stage.Internal(err)
	}
	return units, nil
}

func requireStrings(s table.Schema, names ...string) error {
	for _, name := range names {
		i := s.Index(name)
		if i < 0 {
			return fmt.Errorf("%w: missing column %q", table.ErrSchemaMismatch, name)
		}
		if k := s.Columns[i].Kind; k != table.KindString {
			return fmt.Errorf("%w: column %q is %s, want string", table.ErrSchemaMismatch, name, k)
		}
	}
	return nil
}

// groupRows turns group counts into rows sorted by type then state.
func groupRows(counts map[[2]string]int64) []AggregateRow {
	rows := make([]AggregateRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, AggregateRow{BreweryType: k[0], State: k[1], Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].BreweryType != rows[j].BreweryType {
			return rows[i].BreweryType < rows[j].BreweryType
		}
		return rows[i].State < rows[j].State
	})
	return rows
}

// ReadAggregate loads the gold artifact as rows.
func (p *Pipeline) ReadAggregate(ctx context.Context) ([]AggregateRow, error) {
	t, err := p.codec.ReadFile(ctx, p.layout.Aggregate())
	if err != nil {
		return nil, err
	}
	if err := requireStrings(t.Schema, cleaning.ColBreweryType, cleaning.ColState); err != nil {
		return nil, err
	}
	ci := t.Schema.Index(ColBreweryCount)
	if ci < 0 || t.Schema.Columns[ci].Kind != table.KindInt {
		return nil, fmt.Errorf("%w: %s must be an int column", table.ErrSchemaMismatch, ColBreweryCount)
	}

	ti, si := t.Schema.Index(cleaning.ColBreweryType), t.Schema.Index(cleaning.ColState)
	rows := make([]AggregateRow, 0, t.Len())
	for _, r := range t.Rows {
		typ, _ := r[ti].(string)
		st, _ := r[si].(string)
		n, _ := r[ci].(int64)
		rows = append(rows, AggregateRow{BreweryType: typ, State: st, Count: n})
	}
	return rows, nil
}
