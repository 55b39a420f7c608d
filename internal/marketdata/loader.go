// Package marketdata assembles validated daily-bar datasets for the
// backtester. The loader reads from the local store first, detects gaps
// against the trading calendar, and backfills missing ranges from the
// upstream market-data API before handing the engine a complete dataset.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kestrel/internal/backtest"
	"kestrel/internal/domain"
	"kestrel/internal/store"
	"kestrel/internal/util"
)

var _ backtest.DatasetLoader = (*Loader)(nil)

// Fetcher retrieves daily bars from an upstream source. It is the seam the
// loader uses for backfilling; nil means store-only operation.
type Fetcher interface {
	// FetchDailyBars returns daily bars for the given symbols within the
	// inclusive [start, end] date range.
	FetchDailyBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error)
}

// Loader builds backtest datasets from the bar store, backfilling gaps
// through the fetcher when one is configured.
type Loader struct {
	store    store.BarStore
	fetcher  Fetcher
	calendar *util.TradingCalendar
	log      *slog.Logger
}

// NewLoader creates a Loader over the given store. fetcher may be nil, in
// which case missing data is an error instead of a backfill.
func NewLoader(s store.BarStore, fetcher Fetcher) *Loader {
	return &Loader{
		store:    s,
		fetcher:  fetcher,
		calendar: util.NewTradingCalendar(),
		log:      slog.Default().With("component", "marketdata"),
	}
}

// LoadDataset returns a chronologically sorted dataset covering every
// requested symbol over the inclusive [start, end] range. A symbol with no
// bars at all, before and after backfill, fails the load with
// DataUnavailableError.
func (l *Loader) LoadDataset(ctx context.Context, symbols []string, start, end time.Time) (*domain.Dataset, error) {
	start, end = domain.Day(start), domain.Day(end)

	var all []domain.Bar
	for _, symbol := range symbols {
		bars, err := l.loadSymbol(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		all = append(all, bars...)
	}
	return domain.NewDataset(all), nil
}

// loadSymbol reads one symbol's bars, validating coverage against the
// trading calendar and backfilling any missing ranges.
func (l *Loader) loadSymbol(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := l.store.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading stored bars for %s: %w", symbol, err)
	}

	if len(bars) == 0 {
		bars, err = l.backfill(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, &backtest.DataUnavailableError{Symbol: symbol}
		}
		return bars, nil
	}

	missing := l.missingDays(bars, start, end)
	if len(missing) == 0 {
		return bars, nil
	}

	l.log.Info("gap detected",
		"symbol", symbol,
		"missing", len(missing),
		"first", missing[0].Format("2006-01-02"),
		"last", missing[len(missing)-1].Format("2006-01-02"),
	)

	// Backfill the span covering the gaps, then re-read so the result
	// reflects exactly what the store now holds.
	if _, err := l.backfill(ctx, symbol, missing[0], missing[len(missing)-1]); err != nil {
		return nil, err
	}
	bars, err = l.store.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("re-reading bars for %s after backfill: %w", symbol, err)
	}
	// Gaps the upstream could not fill (delistings, halts) are tolerated as
	// long as the symbol still has rows; the engine only iterates dates that
	// exist.
	if still := l.missingDays(bars, start, end); len(still) > 0 {
		l.log.Warn("gaps remain after backfill", "symbol", symbol, "missing", len(still))
	}
	return bars, nil
}

// backfill fetches [start, end] for one symbol from upstream and persists
// the result. With no fetcher configured it returns nothing.
func (l *Loader) backfill(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if l.fetcher == nil {
		return nil, nil
	}

	bars, err := l.fetcher.FetchDailyBars(ctx, []string{symbol}, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching %s from upstream: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, nil
	}

	if err := l.store.WriteBars(ctx, bars); err != nil {
		return nil, fmt.Errorf("persisting backfilled bars for %s: %w", symbol, err)
	}
	l.log.Info("backfilled", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

// missingDays returns expected trading days in [start, end] with no stored
// bar, restricted to the span the symbol actually traded. Days before the
// first stored bar or after the last are listing boundaries, not gaps: a
// symbol that IPO'd mid-range is complete, not broken.
func (l *Loader) missingDays(bars []domain.Bar, start, end time.Time) []time.Time {
	have := make(map[time.Time]struct{}, len(bars))
	for _, b := range bars {
		have[domain.Day(b.Date)] = struct{}{}
	}

	first, last := domain.Day(bars[0].Date), domain.Day(bars[len(bars)-1].Date)
	if first.Before(start) {
		first = start
	}
	if last.After(end) {
		last = end
	}

	var missing []time.Time
	for _, day := range l.calendar.TradingDays(first, last) {
		if _, ok := have[day]; !ok {
			missing = append(missing, day)
		}
	}
	return missing
}
