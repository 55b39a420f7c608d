package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kestrel/internal/domain"
	"kestrel/internal/store"
	"kestrel/internal/util"
)

// Fetcher is the upstream bar source the ingester pulls from.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error)
}

// Ingester bulk-loads daily bars for a symbol universe into the bar store,
// batching API calls and respecting the upstream rate limit.
type Ingester struct {
	fetcher    Fetcher
	store      store.BarStore
	batchSize  int
	maxRetries int
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// NewIngester creates an Ingester. batchSize is symbols per API call;
// rateLimitPerMin caps API calls per minute.
func NewIngester(fetcher Fetcher, s store.BarStore, batchSize, rateLimitPerMin, maxRetries int) *Ingester {
	if batchSize <= 0 {
		batchSize = 200
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Ingester{
		fetcher:    fetcher,
		store:      s,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		limiter:    util.NewRateLimiter(rateLimitPerMin),
		log:        slog.Default().With("component", "ingest"),
	}
}

// Run fetches daily bars for every symbol within the inclusive [start, end]
// range and upserts them into the store. Batches are independent: a batch
// that still fails after retries aborts the run with the position reported
// in the error.
func (ing *Ingester) Run(ctx context.Context, symbols []string, start, end time.Time) error {
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to ingest")
	}

	runStart := time.Now()
	totalBars := 0
	totalBatches := (len(symbols) + ing.batchSize - 1) / ing.batchSize

	ing.log.Info("starting ingest",
		"symbols", len(symbols),
		"batches", totalBatches,
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)

	for i := 0; i < len(symbols); i += ing.batchSize {
		batchIdx := i/ing.batchSize + 1
		batch := symbols[i:min(i+ing.batchSize, len(symbols))]

		if err := ing.limiter.Wait(ctx); err != nil {
			return err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, ing.maxRetries, time.Second, func() error {
			var fetchErr error
			bars, fetchErr = ing.fetcher.FetchDailyBars(ctx, batch, start, end)
			return fetchErr
		})
		if err != nil {
			return fmt.Errorf("fetching batch %d/%d: %w", batchIdx, totalBatches, err)
		}

		if len(bars) > 0 {
			if err := ing.store.WriteBars(ctx, bars); err != nil {
				return fmt.Errorf("writing batch %d/%d: %w", batchIdx, totalBatches, err)
			}
		}
		totalBars += len(bars)

		ing.log.Info("batch done",
			"batch", fmt.Sprintf("%d/%d", batchIdx, totalBatches),
			"bars", len(bars),
			"elapsed", time.Since(runStart).Round(time.Second),
		)
	}

	ing.log.Info("ingest complete", "bars", totalBars, "elapsed", time.Since(runStart).Round(time.Second))
	return nil
}
