package pipeline

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/client"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/lake"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/pagination"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/record"
	"github.com/lucasllimati/Projeto-AB-InBev/pkg/stage"
)

// Extract walks the API listing to its first empty page and writes every
// record as one raw snapshot. A failed page aborts the stage before
// anything is written. Zero records is a valid snapshot.
func (p *Pipeline) Extract(ctx context.Context) stage.Result {
	return p.run(ctx, stage.Extract, func(ctx context.Context, log zerolog.Logger) (stage.Outcome, error) {
		fetcher := pagination.NewFetcher(p.fetcher, p.cfg.Pagination(), log)
		res, err := fetcher.FetchAll(ctx)
		if err != nil {
			class := client.ClassOf(err)
			log.Warn().
				Str("api_error_class", string(class)).
				Bool("retryable", class.Retryable()).
				Msg("Extraction aborted, snapshot left untouched")
			return stage.Outcome{}, stage.Transport(err)
		}

		path := p.layout.RawSnapshot()
		err = lake.WriteFile(path, func(w io.Writer) error {
			return record.WriteSnapshot(w, res.Records)
		})
		if err != nil {
			return stage.Outcome{}, stage.Internal(err)
		}
		snapshotRecords.Set(float64(len(res.Records)))

		truncated := int64(0)
		if res.Truncated {
			truncated = 1
		}
		return stage.Outcome{
			Artifacts: []string{path},
			RowsOut:   len(res.Records),
			Counters: map[string]int64{
				"pages":     int64(res.Pages),
				"truncated": truncated,
			},
		}, nil
	})
}
