package strategy

import (
	"context"
	"fmt"

	"kestrel/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It buys a
// fixed quantity when the short-period SMA crosses above the long-period
// SMA, and sells the whole position when it crosses back below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	quantity    int64
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods and order quantity.
func NewSMACross(short, long int, quantity int64) *SMACross {
	return &SMACross{shortPeriod: short, longPeriod: long, quantity: quantity}
}

// NewSMACrossFromParams builds the strategy from request parameters:
// "short" (default 10), "long" (default 30), "quantity" (default 1).
func NewSMACrossFromParams(params map[string]any) (Strategy, error) {
	short, err := intParam(params, "short", 10)
	if err != nil {
		return nil, err
	}
	long, err := intParam(params, "long", 30)
	if err != nil {
		return nil, err
	}
	quantity, err := intParam(params, "quantity", 1)
	if err != nil {
		return nil, err
	}
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("require 0 < short < long, got short=%d long=%d", short, long)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("parameter %q must be positive", "quantity")
	}
	return NewSMACross(int(short), int(long), quantity), nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return "sma-cross" }

// Init performs no setup.
func (s *SMACross) Init(_ context.Context) error { return nil }

// Next evaluates the crossover for every symbol in the window.
func (s *SMACross) Next(_ context.Context, w domain.Window, view domain.PortfolioView) ([]domain.TradeRequest, error) {
	var requests []domain.TradeRequest
	for _, symbol := range w.Symbols() {
		closes := w.History(symbol)
		// Need one extra close to evaluate yesterday's SMAs.
		if len(closes) < s.longPeriod+1 {
			continue
		}

		shortNow := sma(closes, s.shortPeriod)
		longNow := sma(closes, s.longPeriod)
		prev := closes[:len(closes)-1]
		shortPrev := sma(prev, s.shortPeriod)
		longPrev := sma(prev, s.longPeriod)

		crossedUp := shortPrev <= longPrev && shortNow > longNow
		crossedDown := shortPrev >= longPrev && shortNow < longNow

		switch {
		case crossedUp && view.Shares(symbol) == 0:
			requests = append(requests, domain.TradeRequest{
				Symbol: symbol,
				Shares: s.quantity,
				Side:   domain.SideBuy,
			})
		case crossedDown && view.Shares(symbol) > 0:
			requests = append(requests, domain.TradeRequest{
				Symbol: symbol,
				Shares: view.Shares(symbol),
				Side:   domain.SideSell,
			})
		}
	}
	return requests, nil
}

// sma returns the mean of the last period closes.
func sma(closes []float64, period int) float64 {
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}
