package backtest

import (
	"math"

	"kestrel/internal/domain"
)

// Summary holds the performance metrics computed over a finished run.
type Summary struct {
	ProfitLoss       float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	WinProbability   float64
	Trades           []domain.Trade
	RejectedRequests int
}

// Report computes every metric over a finished (dataset, portfolio) pair.
// All metric functions are total: degenerate inputs resolve to 0, never to
// a panic or a NaN in the result.
func Report(dataset *domain.Dataset, p *Portfolio) Summary {
	return Summary{
		ProfitLoss:       ProfitLoss(p),
		AnnualizedReturn: AnnualizedReturn(dataset, p),
		MaxDrawdown:      MaxDrawdown(p),
		WinProbability:   WinProbability(p),
		Trades:           p.Trades(),
		RejectedRequests: len(p.Rejections()),
	}
}

// ProfitLoss is final cash minus initial cash.
func ProfitLoss(p *Portfolio) float64 {
	return p.Cash() - p.InitialCash()
}

// AnnualizedReturn converts the run's cumulative return into a yearly rate
// using the dataset's calendar span. Empty datasets and single-day runs
// return 0, avoiding an undefined exponent.
func AnnualizedReturn(dataset *domain.Dataset, p *Portfolio) float64 {
	if dataset.Empty() || p.InitialCash() <= 0 {
		return 0
	}
	duration := dataset.LastDate().Sub(dataset.FirstDate())
	durationYears := duration.Hours() / 24 / 365.25
	if durationYears <= 0 {
		return 0
	}
	cumulativeReturn := ProfitLoss(p) / p.InitialCash()
	return math.Pow(1+cumulativeReturn, 1/durationYears) - 1
}

// MaxDrawdown is the largest fractional decline of total account value
// (holdings plus cash) from its running peak, across every recorded date.
// Empty histories and non-finite intermediate values return 0.
func MaxDrawdown(p *Portfolio) float64 {
	curve := accountValueCurve(p)
	if len(curve) == 0 {
		return 0
	}

	var maxDrawdown, peak float64
	for i, value := range curve {
		if i == 0 || value > peak {
			peak = value
		}
		if peak == 0 {
			// A zero peak yields a defined drawdown of 0 at this date.
			continue
		}
		drawdown := (peak - value) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	if math.IsNaN(maxDrawdown) || math.IsInf(maxDrawdown, 0) {
		return 0
	}
	return maxDrawdown
}

// accountValueCurve builds total account value per recorded date, in date
// order: the sum of that date's holding valuations plus its cash snapshot.
func accountValueCurve(p *Portfolio) []float64 {
	valuationsByDate := make(map[int64]float64)
	for _, v := range p.Valuations() {
		valuationsByDate[v.Date.UnixMilli()] += v.Value
	}

	cashHistory := p.CashHistory()
	curve := make([]float64, 0, len(cashHistory))
	for _, c := range cashHistory {
		curve = append(curve, c.Cash+valuationsByDate[c.Date.UnixMilli()])
	}
	return curve
}

// lot is the open position state tracked per symbol while walking the
// ledger: total shares and their weighted-average cost.
type lot struct {
	shares  int64
	avgCost float64
}

// WinProbability walks the trade ledger in chronological order maintaining
// per-symbol cost-basis lots. Every sell against an open lot closes a
// trade; a sell price strictly above the lot's average cost counts as a
// win. Returns wins/closed, or 0 when no trade closed. Sells with no
// matching lot are ignored.
func WinProbability(p *Portfolio) float64 {
	lots := make(map[string]*lot)
	var wins, closed int

	for _, t := range p.Trades() {
		switch t.Side {
		case domain.SideBuy:
			l, ok := lots[t.Symbol]
			if !ok {
				lots[t.Symbol] = &lot{shares: t.Shares, avgCost: t.Price}
				continue
			}
			// Weighted-average cost: the denominator is the post-trade
			// total share count.
			total := l.shares + t.Shares
			l.avgCost = (float64(l.shares)*l.avgCost + float64(t.Shares)*t.Price) / float64(total)
			l.shares = total

		case domain.SideSell:
			l, ok := lots[t.Symbol]
			if !ok {
				continue
			}
			closed++
			if t.Price > l.avgCost {
				wins++
			}
			l.shares -= t.Shares
			if l.shares <= 0 {
				delete(lots, t.Symbol)
			}
		}
	}

	if closed == 0 {
		return 0
	}
	return float64(wins) / float64(closed)
}
