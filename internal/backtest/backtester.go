package backtest

import (
	"context"
	"fmt"
	"time"

	"kestrel/internal/domain"
	"kestrel/internal/strategy"
)

// DatasetLoader supplies a validated, gap-free, chronologically sorted
// dataset for the requested symbols and inclusive date range. The engine
// trusts this completeness and does not itself detect or backfill gaps.
type DatasetLoader interface {
	LoadDataset(ctx context.Context, symbols []string, start, end time.Time) (*domain.Dataset, error)
}

// Backtester replays historical bar data through a named strategy and
// computes performance metrics. It is the composition root the transport
// layer talks to.
type Backtester struct {
	loader   DatasetLoader
	registry *strategy.Registry
}

// NewBacktester creates a Backtester that loads data through the given
// loader and looks up strategies in the provided registry.
func NewBacktester(loader DatasetLoader, registry *strategy.Registry) *Backtester {
	return &Backtester{
		loader:   loader,
		registry: registry,
	}
}

// Run executes a backtest for the named strategy over the specified symbols
// and inclusive date range, starting with initialCash, and returns the
// computed metrics and trade list.
func (bt *Backtester) Run(
	ctx context.Context,
	strategyName string,
	params map[string]any,
	symbols []string,
	start, end time.Time,
	initialCash float64,
) (Summary, error) {
	strat, err := bt.registry.Build(strategyName, params)
	if err != nil {
		return Summary{}, err
	}

	dataset, err := bt.loader.LoadDataset(ctx, symbols, start, end)
	if err != nil {
		return Summary{}, fmt.Errorf("loading market data: %w", err)
	}

	portfolio, err := Run(ctx, dataset, strat, initialCash)
	if err != nil {
		return Summary{}, err
	}

	return Report(dataset, portfolio), nil
}
