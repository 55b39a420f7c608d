package strategy

import (
	"context"
	"fmt"

	"kestrel/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*PriceThreshold)(nil)

// PriceThreshold buys a fixed quantity of a symbol on the day its close
// crosses a constant threshold from below. Positions are carried until the
// terminal liquidation.
type PriceThreshold struct {
	threshold float64
	quantity  int64
}

// NewPriceThreshold creates a PriceThreshold strategy.
func NewPriceThreshold(threshold float64, quantity int64) *PriceThreshold {
	return &PriceThreshold{threshold: threshold, quantity: quantity}
}

// NewPriceThresholdFromParams builds the strategy from request parameters:
// "threshold" (number, required) and "quantity" (integer, default 1).
func NewPriceThresholdFromParams(params map[string]any) (Strategy, error) {
	threshold, err := floatParam(params, "threshold", 0)
	if err != nil {
		return nil, err
	}
	if _, ok := params["threshold"]; !ok {
		return nil, fmt.Errorf("parameter %q is required", "threshold")
	}
	quantity, err := intParam(params, "quantity", 1)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("parameter %q must be positive", "quantity")
	}
	return NewPriceThreshold(threshold, quantity), nil
}

// Name returns "price-threshold".
func (s *PriceThreshold) Name() string { return "price-threshold" }

// Init performs no setup.
func (s *PriceThreshold) Init(_ context.Context) error { return nil }

// Next emits a buy request for every symbol whose close crossed the
// threshold from below on the window's last date.
func (s *PriceThreshold) Next(_ context.Context, w domain.Window, _ domain.PortfolioView) ([]domain.TradeRequest, error) {
	var requests []domain.TradeRequest
	for _, symbol := range w.Symbols() {
		closes := w.History(symbol)
		n := len(closes)
		if n == 0 || closes[n-1] < s.threshold {
			continue
		}
		// On the first day a symbol appears there is no previous close;
		// treat it as below the threshold so an already-high price still
		// opens a position.
		if n >= 2 && closes[n-2] >= s.threshold {
			continue
		}
		requests = append(requests, domain.TradeRequest{
			Symbol: symbol,
			Shares: s.quantity,
			Side:   domain.SideBuy,
		})
	}
	return requests, nil
}
