// Package domain holds the shared value types of the kestrel platform:
// daily bars, trade requests, and executed trades.
package domain

import "time"

// Side is the direction of a trade request or executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Bar is one daily OHLCV record for a symbol. (Date, Symbol) is unique
// within a Dataset. Date is truncated to UTC midnight.
type Bar struct {
	Symbol   string
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// TradeRequest is a strategy's intent to trade on the current simulated
// date. Requests live for a single step and are never persisted.
type TradeRequest struct {
	Symbol string
	Shares int64
	Side   Side
}

// Trade is an immutable ledger entry recorded when a request executes,
// including forced liquidation sells. Price is the acting date's close.
type Trade struct {
	Symbol string
	Shares int64
	Side   Side
	Price  float64
	Date   time.Time
}

// PortfolioView is the read-only snapshot of portfolio state handed to
// strategies each step. Both fields are copies; mutating them has no effect
// on the simulation.
type PortfolioView struct {
	Cash     float64
	Holdings map[string]int64
}

// Shares returns the held share count for symbol, zero if not held.
func (v PortfolioView) Shares(symbol string) int64 {
	return v.Holdings[symbol]
}

// Day truncates t to UTC midnight. All dataset and portfolio dates pass
// through this so map keys and comparisons line up.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
