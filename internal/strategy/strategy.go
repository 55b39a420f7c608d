// Package strategy defines the Strategy interface consumed by the backtest
// engine and provides a Registry of named strategy factories for the
// transport boundary.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"kestrel/internal/domain"
)

// ErrUnknownStrategy is returned by Build for a name with no registered
// factory.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy is a pluggable trading decision function. Implementations may
// keep internal state between steps but must never mutate the window or
// the portfolio view they are given.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init is called exactly once before the simulation loop begins, for
	// one-time setup.
	Init(ctx context.Context) error

	// Next is called once per simulated date with the expanding-window
	// price slice and a read-only portfolio snapshot. It returns zero or
	// more trade requests to attempt on that date.
	Next(ctx context.Context, w domain.Window, view domain.PortfolioView) ([]domain.TradeRequest, error)
}

// Factory builds a strategy instance from request-supplied parameters.
type Factory func(params map[string]any) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration. It lives at the transport boundary; the engine itself only
// ever sees a constructed Strategy.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build constructs the named strategy with the given parameters.
func (r *Registry) Build(name string, params map[string]any) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return f(params)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a Registry with the built-in strategies
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("price-threshold", NewPriceThresholdFromParams)
	r.Register("sma-cross", NewSMACrossFromParams)
	return r
}

// ---------------------------------------------------------------------------
// Parameter helpers
// ---------------------------------------------------------------------------

// floatParam reads a numeric parameter, accepting float64 and int (JSON
// numbers decode as float64; literals in Go tests are ints).
func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parameter %q: expected number, got %T", key, v)
	}
}

func intParam(params map[string]any, key string, def int64) (int64, error) {
	f, err := floatParam(params, key, float64(def))
	if err != nil {
		return 0, err
	}
	n := int64(f)
	if float64(n) != f {
		return 0, fmt.Errorf("parameter %q: expected integer, got %v", key, f)
	}
	return n, nil
}
