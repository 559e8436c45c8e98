package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/record"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brewery_pages_fetched_total",
		Help: "Total listing pages fetched, including the terminating empty page",
	})

	recordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brewery_records_fetched_total",
		Help: "Total brewery records received from the listing",
	})
)

// Config holds fetcher configuration.
type Config struct {
	// PerPage is the fixed page size requested from the API.
	PerPage int
	// MaxPages stops the walk after this many pages. 0 means no limit.
	MaxPages int
	// Timeout per page fetch. 0 leaves timing to the client.
	Timeout time.Duration
	// ProgressEvery logs progress every N pages.
	ProgressEvery int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PerPage:       50,
		MaxPages:      0,
		Timeout:       0,
		ProgressEvery: 20,
	}
}

// PageFetcher fetches one page of the listing.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, perPage int) ([]record.Raw, error)
}

// Result is the outcome of a full walk.
type Result struct {
	Records []record.Raw
	// Pages is the number of non-empty pages.
	Pages int
	// Truncated is set when MaxPages ended the walk before an empty page.
	Truncated bool
}

// Fetcher walks the listing sequentially.
type Fetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewFetcher creates a new fetcher.
func NewFetcher(fetcher PageFetcher, config Config, logger zerolog.Logger) *Fetcher {
	if config.PerPage <= 0 {
		config.PerPage = 50
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 20
	}

	return &Fetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// FetchAll requests pages until one comes back empty and returns every
// record in page order.
func (f *Fetcher) FetchAll(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	f.logger.Info().
		Int("per_page", f.config.PerPage).
		Int("max_pages", f.config.MaxPages).
		Msg("Starting page walk")

	for page := 1; ; page++ {
		if f.config.MaxPages > 0 && page > f.config.MaxPages {
			res.Truncated = true
			f.logger.Warn().
				Int("max_pages", f.config.MaxPages).
				Int("records", len(res.Records)).
				Msg("Page limit reached before an empty page")
			break
		}

		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("page %d: %w", page, err)
		}

		recs, err := f.fetchPage(ctx, page)
		if err != nil {
			f.logger.Warn().
				Err(err).
				Int("page", page).
				Int("records_discarded", len(res.Records)).
				Msg("Page fetch failed, aborting walk")
			return Result{}, err
		}
		pagesFetchedTotal.Inc()

		if len(recs) == 0 {
			f.logger.Debug().Int("page", page).Msg("Empty page, walk complete")
			break
		}

		res.Records = append(res.Records, recs...)
		res.Pages++
		recordsFetchedTotal.Add(float64(len(recs)))

		if res.Pages%f.config.ProgressEvery == 0 {
			f.logger.Info().
				Int("pages", res.Pages).
				Int("records", len(res.Records)).
				Msg("Fetch progress")
		}
	}

	f.logger.Info().
		Int("pages", res.Pages).
		Int("records", len(res.Records)).
		Bool("truncated", res.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return res, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, page int) ([]record.Raw, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}
	return f.fetcher.FetchPage(ctx, page, f.config.PerPage)
}
