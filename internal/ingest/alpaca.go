// Package ingest pulls daily OHLCV bars from the Alpaca market-data API
// into the local bar store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"kestrel/internal/domain"
)

// AlpacaClient fetches daily bars from Alpaca. It satisfies the loader's
// backfill seam, so a backtest against an incomplete store can pull the
// missing days on demand.
type AlpacaClient struct {
	client *marketdata.Client
	log    *slog.Logger
}

// NewAlpacaClient creates an AlpacaClient with the given credentials.
// dataURL overrides the default API endpoint when non-empty.
func NewAlpacaClient(apiKey, apiSecret, dataURL string) *AlpacaClient {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaClient{
		client: marketdata.NewClient(opts),
		log:    slog.Default().With("component", "alpaca"),
	}
}

// FetchDailyBars fetches daily bars for the given symbols within the
// inclusive [start, end] date range.
func (c *AlpacaClient) FetchDailyBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	multiBars, err := c.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Split,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:   strings.ToUpper(symbol),
				Date:     domain.Day(ab.Timestamp),
				Open:     ab.Open,
				High:     ab.High,
				Low:      ab.Low,
				Close:    ab.Close,
				AdjClose: ab.Close,
				Volume:   int64(ab.Volume),
			})
		}
	}

	c.log.Debug("fetched daily bars", "symbols", len(symbols), "bars", len(bars))
	return bars, nil
}
