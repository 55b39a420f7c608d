// Package backtest replays historical daily bars through a trading
// strategy and computes performance metrics over the finished run. The
// Portfolio is the single piece of mutable state; one instance exists per
// run and is owned by the engine driving it.
package backtest

import (
	"fmt"
	"sort"
	"time"

	"kestrel/internal/domain"
)

// HoldingValue is one mark-to-market entry: the value of a single holding
// (shares × close) on a simulated date. Append-only.
type HoldingValue struct {
	Date   time.Time
	Symbol string
	Value  float64
}

// CashPoint is the cash balance snapshot taken at the start of a simulated
// date, before that date's trades execute. Exactly one per date.
type CashPoint struct {
	Date time.Time
	Cash float64
}

// Rejection records a trade request that failed an execution gate. A
// rejection is a normal business outcome, not an error; it is kept so
// strategies that systematically over-request can be debugged.
type Rejection struct {
	Date    time.Time
	Request domain.TradeRequest
	Reason  string
}

// Rejection reasons.
const (
	RejectNotHeld          = "symbol not held"
	RejectInsufficientHeld = "requested shares exceed held shares"
	RejectInsufficientCash = "cost exceeds available cash"
	RejectNoPrice          = "price unavailable on acting date"
	RejectBadShares        = "share count not positive"
)

// Portfolio owns the simulation state: cash, holdings, the trade ledger,
// and the valuation/cash history. It is mutated once per simulated date
// (snapshot, then execution) and force-liquidated exactly once at the
// terminal date; afterwards it is read-only.
type Portfolio struct {
	initialCash float64
	cash        float64
	holdings    map[string]int64
	trades      []domain.Trade
	valuations  []HoldingValue
	cashHistory []CashPoint
	rejections  []Rejection
	liquidated  bool
}

// NewPortfolio creates a Portfolio funded with the given starting cash.
func NewPortfolio(cash float64) *Portfolio {
	return &Portfolio{
		initialCash: cash,
		cash:        cash,
		holdings:    make(map[string]int64),
	}
}

// MarkToMarket records the cash balance and the value of every current
// holding at the window's last date. A held symbol without a close on that
// date is a data-integrity failure and aborts the run.
func (p *Portfolio) MarkToMarket(w domain.Window) error {
	date := w.LastDate()
	p.cashHistory = append(p.cashHistory, CashPoint{Date: date, Cash: p.cash})

	for _, symbol := range p.heldSymbols() {
		shares := p.holdings[symbol]
		price, ok := w.Close(date, symbol)
		if !ok {
			return &MissingPriceError{Symbol: symbol, Date: date}
		}
		p.valuations = append(p.valuations, HoldingValue{
			Date:   date,
			Symbol: symbol,
			Value:  float64(shares) * price,
		})
	}
	return nil
}

// ExecuteRequests attempts the given trade requests at the window's last
// date. All sells execute before any buy, so cash freed by a sell is
// available to the same step's buys; within each side the caller's order is
// preserved. Gated requests are rejected without error. The execution price
// is always the acting date's close.
func (p *Portfolio) ExecuteRequests(w domain.Window, requests []domain.TradeRequest) {
	date := w.LastDate()

	var buys []domain.TradeRequest
	for _, req := range requests {
		if req.Side == domain.SideBuy {
			buys = append(buys, req)
			continue
		}
		p.executeSell(w, date, req)
	}
	for _, req := range buys {
		p.executeBuy(w, date, req)
	}
}

func (p *Portfolio) executeSell(w domain.Window, date time.Time, req domain.TradeRequest) {
	if req.Shares <= 0 {
		p.reject(date, req, RejectBadShares)
		return
	}
	held, ok := p.holdings[req.Symbol]
	if !ok || held == 0 {
		p.reject(date, req, RejectNotHeld)
		return
	}
	if req.Shares > held {
		p.reject(date, req, RejectInsufficientHeld)
		return
	}
	price, ok := w.Close(date, req.Symbol)
	if !ok {
		p.reject(date, req, RejectNoPrice)
		return
	}

	p.holdings[req.Symbol] = held - req.Shares
	p.cash += float64(req.Shares) * price
	p.trades = append(p.trades, domain.Trade{
		Symbol: req.Symbol,
		Shares: req.Shares,
		Side:   domain.SideSell,
		Price:  price,
		Date:   date,
	})
}

func (p *Portfolio) executeBuy(w domain.Window, date time.Time, req domain.TradeRequest) {
	if req.Shares <= 0 {
		p.reject(date, req, RejectBadShares)
		return
	}
	price, ok := w.Close(date, req.Symbol)
	if !ok {
		p.reject(date, req, RejectNoPrice)
		return
	}
	cost := float64(req.Shares) * price
	if cost > p.cash {
		p.reject(date, req, RejectInsufficientCash)
		return
	}

	p.holdings[req.Symbol] += req.Shares
	p.cash -= cost
	p.trades = append(p.trades, domain.Trade{
		Symbol: req.Symbol,
		Shares: req.Shares,
		Side:   domain.SideBuy,
		Price:  price,
		Date:   date,
	})
}

func (p *Portfolio) reject(date time.Time, req domain.TradeRequest, reason string) {
	p.rejections = append(p.rejections, Rejection{Date: date, Request: req, Reason: reason})
}

// Liquidate force-sells every remaining holding at the window's last
// date's close. It must run exactly once, after the final execution step,
// against the true final market snapshot.
func (p *Portfolio) Liquidate(w domain.Window) error {
	if p.liquidated {
		return fmt.Errorf("portfolio already liquidated")
	}
	date := w.LastDate()

	for _, symbol := range p.heldSymbols() {
		shares := p.holdings[symbol]
		price, ok := w.Close(date, symbol)
		if !ok {
			return &MissingPriceError{Symbol: symbol, Date: date}
		}
		p.holdings[symbol] = 0
		p.cash += float64(shares) * price
		p.trades = append(p.trades, domain.Trade{
			Symbol: symbol,
			Shares: shares,
			Side:   domain.SideSell,
			Price:  price,
			Date:   date,
		})
	}
	p.liquidated = true
	return nil
}

// heldSymbols returns symbols with a positive share count, sorted, so
// valuation and liquidation order is deterministic.
func (p *Portfolio) heldSymbols() []string {
	symbols := make([]string, 0, len(p.holdings))
	for s, n := range p.holdings {
		if n > 0 {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// ---------------------------------------------------------------------------
// Read accessors — all return copies; callers cannot mutate the run state.
// ---------------------------------------------------------------------------

// InitialCash returns the cash the portfolio was funded with.
func (p *Portfolio) InitialCash() float64 { return p.initialCash }

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// Liquidated reports whether the terminal liquidation has run.
func (p *Portfolio) Liquidated() bool { return p.liquidated }

// Holdings returns a copy of the symbol → share-count map. Zeroed
// positions are omitted.
func (p *Portfolio) Holdings() map[string]int64 {
	out := make(map[string]int64, len(p.holdings))
	for s, n := range p.holdings {
		if n > 0 {
			out[s] = n
		}
	}
	return out
}

// Trades returns a copy of the trade ledger in execution order.
func (p *Portfolio) Trades() []domain.Trade {
	out := make([]domain.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Valuations returns a copy of the mark-to-market history in append order
// (date-ascending, symbol-sorted within a date).
func (p *Portfolio) Valuations() []HoldingValue {
	out := make([]HoldingValue, len(p.valuations))
	copy(out, p.valuations)
	return out
}

// CashHistory returns a copy of the per-date cash snapshots in date order.
func (p *Portfolio) CashHistory() []CashPoint {
	out := make([]CashPoint, len(p.cashHistory))
	copy(out, p.cashHistory)
	return out
}

// Rejections returns a copy of every gated-out trade request.
func (p *Portfolio) Rejections() []Rejection {
	out := make([]Rejection, len(p.rejections))
	copy(out, p.rejections)
	return out
}

// Snapshot returns the read-only view handed to strategies.
func (p *Portfolio) Snapshot() domain.PortfolioView {
	return domain.PortfolioView{
		Cash:     p.cash,
		Holdings: p.Holdings(),
	}
}
