package backtest

import (
	"math"
	"testing"

	"kestrel/internal/domain"
)

// ledgerPortfolio builds a finished-looking portfolio directly from a trade
// sequence, for metric tests that do not need a full engine run.
func ledgerPortfolio(initialCash float64, trades []domain.Trade) *Portfolio {
	p := NewPortfolio(initialCash)
	for _, tr := range trades {
		value := float64(tr.Shares) * tr.Price
		if tr.Side == domain.SideBuy {
			p.cash -= value
			p.holdings[tr.Symbol] += tr.Shares
		} else {
			p.cash += value
			p.holdings[tr.Symbol] -= tr.Shares
		}
		p.trades = append(p.trades, tr)
	}
	return p
}

// curvePortfolio builds a portfolio whose account-value history is the
// given series, with all value carried in cash.
func curvePortfolio(values []float64) *Portfolio {
	p := NewPortfolio(0)
	for i, v := range values {
		p.cashHistory = append(p.cashHistory, CashPoint{
			Date: date(2024, 1, 2).AddDate(0, 0, i),
			Cash: v,
		})
	}
	return p
}

func TestProfitLoss(t *testing.T) {
	p := NewPortfolio(1000)
	p.cash = 990
	if got := ProfitLoss(p); got != -10 {
		t.Errorf("ProfitLoss = %v, want -10", got)
	}
}

func TestAnnualizedReturnZeroProfit(t *testing.T) {
	ds := domain.NewDataset([]domain.Bar{
		bar("AAPL", date(2023, 1, 2), 10),
		bar("AAPL", date(2024, 1, 2), 10),
	})
	p := NewPortfolio(1000) // cash unchanged, zero profit

	if got := AnnualizedReturn(ds, p); got != 0 {
		t.Errorf("AnnualizedReturn on zero-profit run = %v, want exactly 0", got)
	}
}

func TestAnnualizedReturnDegenerate(t *testing.T) {
	p := NewPortfolio(1000)
	p.cash = 1100

	// Empty dataset.
	if got := AnnualizedReturn(domain.NewDataset(nil), p); got != 0 {
		t.Errorf("AnnualizedReturn on empty dataset = %v, want 0", got)
	}

	// Single-day run: duration is zero, exponent undefined.
	ds := domain.NewDataset([]domain.Bar{bar("AAPL", date(2024, 1, 2), 10)})
	if got := AnnualizedReturn(ds, p); got != 0 {
		t.Errorf("AnnualizedReturn on single-day run = %v, want 0", got)
	}
}

func TestAnnualizedReturnOneYearDouble(t *testing.T) {
	// 365 calendar days at 100% cumulative return. durationYears is
	// 365/365.25, so the annualized rate is 2^(365.25/365) - 1.
	ds := domain.NewDataset([]domain.Bar{
		bar("AAPL", date(2023, 1, 1), 10),
		bar("AAPL", date(2024, 1, 1), 20),
	})
	p := NewPortfolio(1000)
	p.cash = 2000

	got := AnnualizedReturn(ds, p)
	want := math.Pow(2, 365.25/365.0) - 1
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("AnnualizedReturn = %v, want %v", got, want)
	}
}

func TestMaxDrawdownMonotonic(t *testing.T) {
	p := curvePortfolio([]float64{100, 100, 120, 150})
	if got := MaxDrawdown(p); got != 0 {
		t.Errorf("MaxDrawdown on non-decreasing series = %v, want 0", got)
	}
}

func TestMaxDrawdownKnownSeries(t *testing.T) {
	// Peak 100 before trough 80: 20% drawdown. The later recovery to 120
	// does not erase it.
	p := curvePortfolio([]float64{100, 80, 120})
	got := MaxDrawdown(p)
	if math.Abs(got-0.2) > 1e-12 {
		t.Errorf("MaxDrawdown([100 80 120]) = %v, want 0.2", got)
	}
}

func TestMaxDrawdownDegenerate(t *testing.T) {
	if got := MaxDrawdown(NewPortfolio(0)); got != 0 {
		t.Errorf("MaxDrawdown on empty history = %v, want 0", got)
	}
	// A zero peak must not divide by zero.
	p := curvePortfolio([]float64{0, 0, 10, 5})
	got := MaxDrawdown(p)
	if math.Abs(got-0.5) > 1e-12 {
		t.Errorf("MaxDrawdown with zero-peak prefix = %v, want 0.5", got)
	}
}

func TestMaxDrawdownSumsHoldingsAndCash(t *testing.T) {
	p := NewPortfolio(0)
	d1, d2 := date(2024, 1, 2), date(2024, 1, 3)
	p.cashHistory = []CashPoint{{Date: d1, Cash: 50}, {Date: d2, Cash: 50}}
	p.valuations = []HoldingValue{
		{Date: d1, Symbol: "AAPL", Value: 30},
		{Date: d1, Symbol: "MSFT", Value: 20},
		{Date: d2, Symbol: "AAPL", Value: 20},
		{Date: d2, Symbol: "MSFT", Value: 10},
	}
	// Account value: 100 then 80 → 20% drawdown.
	got := MaxDrawdown(p)
	if math.Abs(got-0.2) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want 0.2", got)
	}
}

func TestWinProbabilityNoClosedTrades(t *testing.T) {
	if got := WinProbability(NewPortfolio(1000)); got != 0 {
		t.Errorf("WinProbability with empty ledger = %v, want 0", got)
	}

	p := ledgerPortfolio(1000, []domain.Trade{
		{Symbol: "AAPL", Shares: 5, Side: domain.SideBuy, Price: 10, Date: date(2024, 1, 2)},
	})
	if got := WinProbability(p); got != 0 {
		t.Errorf("WinProbability with only open lots = %v, want 0", got)
	}
}

func TestWinProbabilityWinsAndLosses(t *testing.T) {
	p := ledgerPortfolio(1000, []domain.Trade{
		{Symbol: "AAPL", Shares: 10, Side: domain.SideBuy, Price: 10, Date: date(2024, 1, 2)},
		{Symbol: "AAPL", Shares: 10, Side: domain.SideSell, Price: 12, Date: date(2024, 1, 3)}, // win
		{Symbol: "MSFT", Shares: 5, Side: domain.SideBuy, Price: 100, Date: date(2024, 1, 3)},
		{Symbol: "MSFT", Shares: 5, Side: domain.SideSell, Price: 90, Date: date(2024, 1, 4)}, // loss
	})
	got := WinProbability(p)
	if got != 0.5 {
		t.Errorf("WinProbability = %v, want 0.5", got)
	}
}

func TestWinProbabilitySellAtCostIsNotAWin(t *testing.T) {
	p := ledgerPortfolio(1000, []domain.Trade{
		{Symbol: "AAPL", Shares: 10, Side: domain.SideBuy, Price: 10, Date: date(2024, 1, 2)},
		{Symbol: "AAPL", Shares: 10, Side: domain.SideSell, Price: 10, Date: date(2024, 1, 3)},
	})
	if got := WinProbability(p); got != 0 {
		t.Errorf("WinProbability for sell at exact cost = %v, want 0 (strictly greater wins)", got)
	}
}

// Regression for the weighted-average cost basis: the denominator must be
// the post-trade total share count. With buys of 10@10 and 10@20 the
// average is 15; a sell at 16 is a win, a sell at 14 is not.
func TestWinProbabilityWeightedAverageCost(t *testing.T) {
	p := ledgerPortfolio(10000, []domain.Trade{
		{Symbol: "AAPL", Shares: 10, Side: domain.SideBuy, Price: 10, Date: date(2024, 1, 2)},
		{Symbol: "AAPL", Shares: 10, Side: domain.SideBuy, Price: 20, Date: date(2024, 1, 3)},
		{Symbol: "AAPL", Shares: 20, Side: domain.SideSell, Price: 16, Date: date(2024, 1, 4)},
	})
	if got := WinProbability(p); got != 1 {
		t.Errorf("WinProbability = %v, want 1 (16 > weighted avg 15)", got)
	}

	p = ledgerPortfolio(10000, []domain.Trade{
		{Symbol: "AAPL", Shares: 10, Side: domain.SideBuy, Price: 10, Date: date(2024, 1, 2)},
		{Symbol: "AAPL", Shares: 10, Side: domain.SideBuy, Price: 20, Date: date(2024, 1, 3)},
		{Symbol: "AAPL", Shares: 20, Side: domain.SideSell, Price: 14, Date: date(2024, 1, 4)},
	})
	if got := WinProbability(p); got != 0 {
		t.Errorf("WinProbability = %v, want 0 (14 < weighted avg 15)", got)
	}
}

func TestWinProbabilitySellWithoutLotIgnored(t *testing.T) {
	// Should not occur given execution gating, but must not crash or count.
	p := ledgerPortfolio(1000, []domain.Trade{
		{Symbol: "AAPL", Shares: 5, Side: domain.SideSell, Price: 10, Date: date(2024, 1, 2)},
		{Symbol: "MSFT", Shares: 5, Side: domain.SideBuy, Price: 10, Date: date(2024, 1, 2)},
		{Symbol: "MSFT", Shares: 5, Side: domain.SideSell, Price: 11, Date: date(2024, 1, 3)},
	})
	if got := WinProbability(p); got != 1 {
		t.Errorf("WinProbability = %v, want 1 (orphan sell ignored)", got)
	}
}
