package domain

import (
	"sort"
	"time"
)

// Dataset is an immutable, gap-free table of daily bars sorted by date then
// symbol, with (date, symbol) unique. It is produced once by the market-data
// loader and only read afterwards.
type Dataset struct {
	bars  []Bar
	dates []time.Time
	// closes indexes bars[i].Close by date, then symbol.
	closes map[time.Time]map[string]float64
}

// NewDataset builds a Dataset from bars in any order. Duplicate
// (date, symbol) pairs collapse to the last bar seen.
func NewDataset(bars []Bar) *Dataset {
	type key struct {
		date   time.Time
		symbol string
	}
	seen := make(map[key]Bar, len(bars))
	for _, b := range bars {
		b.Date = Day(b.Date)
		seen[key{b.Date, b.Symbol}] = b
	}

	sorted := make([]Bar, 0, len(seen))
	for _, b := range seen {
		sorted = append(sorted, b)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})

	ds := &Dataset{
		bars:   sorted,
		closes: make(map[time.Time]map[string]float64),
	}
	for _, b := range sorted {
		if n := len(ds.dates); n == 0 || !ds.dates[n-1].Equal(b.Date) {
			ds.dates = append(ds.dates, b.Date)
		}
		bySymbol := ds.closes[b.Date]
		if bySymbol == nil {
			bySymbol = make(map[string]float64)
			ds.closes[b.Date] = bySymbol
		}
		bySymbol[b.Symbol] = b.Close
	}
	return ds
}

// Empty reports whether the dataset holds no bars.
func (d *Dataset) Empty() bool { return len(d.bars) == 0 }

// Len returns the number of bars.
func (d *Dataset) Len() int { return len(d.bars) }

// Dates returns the distinct simulated dates in ascending order.
func (d *Dataset) Dates() []time.Time {
	out := make([]time.Time, len(d.dates))
	copy(out, d.dates)
	return out
}

// FirstDate returns the earliest date, or the zero time if empty.
func (d *Dataset) FirstDate() time.Time {
	if len(d.dates) == 0 {
		return time.Time{}
	}
	return d.dates[0]
}

// LastDate returns the latest date, or the zero time if empty.
func (d *Dataset) LastDate() time.Time {
	if len(d.dates) == 0 {
		return time.Time{}
	}
	return d.dates[len(d.dates)-1]
}

// Symbols returns the distinct symbols present, sorted.
func (d *Dataset) Symbols() []string {
	set := make(map[string]struct{})
	for _, b := range d.bars {
		set[b.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Close returns the closing price for symbol on date.
func (d *Dataset) Close(date time.Time, symbol string) (float64, bool) {
	c, ok := d.closes[Day(date)][symbol]
	return c, ok
}

// Through returns the expanding window of all bars dated on or before date.
// The window shares the dataset's backing storage; callers treat it as
// read-only.
func (d *Dataset) Through(date time.Time) Window {
	date = Day(date)
	// Bars are date-sorted, so the window is a prefix.
	n := sort.Search(len(d.bars), func(i int) bool {
		return d.bars[i].Date.After(date)
	})
	m := sort.Search(len(d.dates), func(i int) bool {
		return d.dates[i].After(date)
	})
	return Window{ds: d, bars: d.bars[:n], dates: d.dates[:m]}
}

// Window is a read-only expanding slice of a Dataset: every bar known up to
// and including the current simulated date. It is what strategies and the
// portfolio see; neither may mutate it.
type Window struct {
	ds    *Dataset
	bars  []Bar
	dates []time.Time
}

// Bars returns the bars in the window in (date, symbol) order.
func (w Window) Bars() []Bar { return w.bars }

// Len returns the number of bars in the window.
func (w Window) Len() int { return len(w.bars) }

// LastDate returns the window's maximum date, the acting date of the
// current step. Zero time if the window is empty.
func (w Window) LastDate() time.Time {
	if len(w.dates) == 0 {
		return time.Time{}
	}
	return w.dates[len(w.dates)-1]
}

// Dates returns the distinct dates in the window, ascending.
func (w Window) Dates() []time.Time {
	out := make([]time.Time, len(w.dates))
	copy(out, w.dates)
	return out
}

// Close returns the closing price for symbol on date, when date lies inside
// the window.
func (w Window) Close(date time.Time, symbol string) (float64, bool) {
	date = Day(date)
	if len(w.dates) == 0 || date.After(w.dates[len(w.dates)-1]) {
		return 0, false
	}
	return w.ds.Close(date, symbol)
}

// Latest returns the most recent bar for symbol within the window.
func (w Window) Latest(symbol string) (Bar, bool) {
	for i := len(w.bars) - 1; i >= 0; i-- {
		if w.bars[i].Symbol == symbol {
			return w.bars[i], true
		}
	}
	return Bar{}, false
}

// History returns all closes for symbol within the window in date order.
func (w Window) History(symbol string) []float64 {
	var closes []float64
	for _, b := range w.bars {
		if b.Symbol == symbol {
			closes = append(closes, b.Close)
		}
	}
	return closes
}

// Symbols returns the distinct symbols in the window, sorted.
func (w Window) Symbols() []string {
	set := make(map[string]struct{})
	for _, b := range w.bars {
		set[b.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
