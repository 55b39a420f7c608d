// Package store persists and retrieves historical daily bar data. Two
// backends exist: SQLite (default) and Parquet files on disk.
package store

import (
	"context"
	"time"

	"kestrel/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars upserts a batch of bars keyed by (symbol, date).
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end],
	// sorted by date ascending.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}
