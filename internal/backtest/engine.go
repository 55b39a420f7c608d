package backtest

import (
	"context"
	"fmt"

	"kestrel/internal/domain"
	"kestrel/internal/strategy"
)

// Run replays the dataset date by date through the strategy and returns the
// finished portfolio. Each simulated date is fully processed before the
// next begins: mark-to-market, strategy decision, trade execution. After
// the loop the remaining holdings are liquidated at the final date's close.
//
// The context is checked once per simulated date. On cancellation Run stops
// before the next step and returns the portfolio as-is (un-liquidated)
// together with the context error, so callers get partial state rather than
// corrupted state.
func Run(ctx context.Context, dataset *domain.Dataset, strat strategy.Strategy, initialCash float64) (*Portfolio, error) {
	portfolio := NewPortfolio(initialCash)

	if dataset.Empty() {
		return portfolio, &DataUnavailableError{}
	}

	if err := strat.Init(ctx); err != nil {
		return portfolio, fmt.Errorf("initializing strategy %s: %w", strat.Name(), err)
	}

	var window domain.Window
	for _, date := range dataset.Dates() {
		if err := ctx.Err(); err != nil {
			return portfolio, err
		}

		window = dataset.Through(date)

		if err := portfolio.MarkToMarket(window); err != nil {
			return portfolio, fmt.Errorf("valuing portfolio on %s: %w", date.Format("2006-01-02"), err)
		}

		requests, err := strat.Next(ctx, window, portfolio.Snapshot())
		if err != nil {
			return portfolio, fmt.Errorf("strategy %s on %s: %w", strat.Name(), date.Format("2006-01-02"), err)
		}

		portfolio.ExecuteRequests(window, requests)
	}

	if err := portfolio.Liquidate(window); err != nil {
		return portfolio, fmt.Errorf("liquidating portfolio: %w", err)
	}

	return portfolio, nil
}
