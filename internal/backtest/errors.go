package backtest

import (
	"fmt"
	"time"
)

// DataUnavailableError reports that a requested symbol has no price rows in
// the requested range. It is fatal and raised before the simulation loop
// starts.
type DataUnavailableError struct {
	Symbol string
}

func (e *DataUnavailableError) Error() string {
	if e.Symbol == "" {
		return "no price data available for requested range"
	}
	return fmt.Sprintf("no price data available for %s in requested range", e.Symbol)
}

// MissingPriceError reports that a currently-held symbol has no quoted
// close on a date being valued. This is a data-integrity failure: skipping
// it would corrupt the valuation and drawdown history, so the run aborts.
type MissingPriceError struct {
	Symbol string
	Date   time.Time
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no close price for held symbol %s on %s", e.Symbol, e.Date.Format("2006-01-02"))
}
