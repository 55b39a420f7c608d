package marketdata

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"kestrel/internal/backtest"
	"kestrel/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bar(symbol string, d time.Time, close float64) domain.Bar {
	return domain.Bar{Symbol: symbol, Date: d, Open: close, High: close, Low: close, Close: close, AdjClose: close, Volume: 1000}
}

// memStore is an in-memory BarStore for exercising the loader's gap logic
// without a database.
type memStore struct {
	bars map[string][]domain.Bar
}

func newMemStore(bars ...domain.Bar) *memStore {
	s := &memStore{bars: make(map[string][]domain.Bar)}
	_ = s.WriteBars(context.Background(), bars)
	return s
}

func (s *memStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	for _, b := range bars {
		existing := s.bars[b.Symbol]
		replaced := false
		for i, e := range existing {
			if e.Date.Equal(b.Date) {
				existing[i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, b)
		}
		sort.Slice(existing, func(i, j int) bool { return existing[i].Date.Before(existing[j].Date) })
		s.bars[b.Symbol] = existing
	}
	return nil
}

func (s *memStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, b := range s.bars[symbol] {
		if !b.Date.Before(start) && !b.Date.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) ListSymbols(_ context.Context) ([]string, error) {
	var syms []string
	for sym := range s.bars {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms, nil
}

// stubFetcher serves a canned bar set and records what was requested.
type stubFetcher struct {
	bars     []domain.Bar
	err      error
	requests [][2]time.Time
}

func (f *stubFetcher) FetchDailyBars(_ context.Context, _ []string, start, end time.Time) ([]domain.Bar, error) {
	f.requests = append(f.requests, [2]time.Time{start, end})
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Bar
	for _, b := range f.bars {
		if !b.Date.Before(start) && !b.Date.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func TestLoadDatasetFromStore(t *testing.T) {
	// 2024-01-02..04 are consecutive trading days.
	s := newMemStore(
		bar("AAPL", date(2024, 1, 2), 10),
		bar("AAPL", date(2024, 1, 3), 11),
		bar("AAPL", date(2024, 1, 4), 12),
	)
	l := NewLoader(s, nil)

	ds, err := l.LoadDataset(context.Background(), []string{"AAPL"}, date(2024, 1, 2), date(2024, 1, 4))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Len() != 3 {
		t.Errorf("dataset has %d bars, want 3", ds.Len())
	}
}

func TestLoadDatasetUnknownSymbol(t *testing.T) {
	l := NewLoader(newMemStore(), nil)

	_, err := l.LoadDataset(context.Background(), []string{"NOPE"}, date(2024, 1, 2), date(2024, 1, 4))
	var due *backtest.DataUnavailableError
	if !errors.As(err, &due) {
		t.Fatalf("LoadDataset returned %v, want DataUnavailableError", err)
	}
	if due.Symbol != "NOPE" {
		t.Errorf("DataUnavailableError.Symbol = %q, want NOPE", due.Symbol)
	}
}

func TestLoadDatasetBackfillsEmptySymbol(t *testing.T) {
	s := newMemStore()
	f := &stubFetcher{bars: []domain.Bar{
		bar("AAPL", date(2024, 1, 2), 10),
		bar("AAPL", date(2024, 1, 3), 11),
	}}
	l := NewLoader(s, f)

	ds, err := l.LoadDataset(context.Background(), []string{"AAPL"}, date(2024, 1, 2), date(2024, 1, 3))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("dataset has %d bars, want 2", ds.Len())
	}

	// Fetched bars must have been persisted.
	stored, _ := s.ReadBars(context.Background(), "AAPL", date(2024, 1, 2), date(2024, 1, 3))
	if len(stored) != 2 {
		t.Errorf("store holds %d bars after backfill, want 2", len(stored))
	}
}

func TestLoadDatasetBackfillsGap(t *testing.T) {
	// Stored data skips Wednesday 2024-01-03, a trading day.
	s := newMemStore(
		bar("AAPL", date(2024, 1, 2), 10),
		bar("AAPL", date(2024, 1, 4), 12),
	)
	f := &stubFetcher{bars: []domain.Bar{
		bar("AAPL", date(2024, 1, 3), 11),
	}}
	l := NewLoader(s, f)

	ds, err := l.LoadDataset(context.Background(), []string{"AAPL"}, date(2024, 1, 2), date(2024, 1, 4))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Len() != 3 {
		t.Errorf("dataset has %d bars after gap backfill, want 3", ds.Len())
	}

	if len(f.requests) != 1 {
		t.Fatalf("fetcher called %d times, want 1", len(f.requests))
	}
	if !f.requests[0][0].Equal(date(2024, 1, 3)) || !f.requests[0][1].Equal(date(2024, 1, 3)) {
		t.Errorf("backfill requested [%s, %s], want the single missing day 2024-01-03",
			f.requests[0][0].Format("2006-01-02"), f.requests[0][1].Format("2006-01-02"))
	}
}

func TestLoadDatasetWeekendIsNotAGap(t *testing.T) {
	// Friday 2024-01-05 to Monday 2024-01-08: the weekend between them is
	// an ordinary market closure.
	s := newMemStore(
		bar("AAPL", date(2024, 1, 5), 10),
		bar("AAPL", date(2024, 1, 8), 11),
	)
	f := &stubFetcher{}
	l := NewLoader(s, f)

	if _, err := l.LoadDataset(context.Background(), []string{"AAPL"}, date(2024, 1, 5), date(2024, 1, 8)); err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(f.requests) != 0 {
		t.Errorf("fetcher called for a weekend closure: %v", f.requests)
	}
}

func TestLoadDatasetLateListingIsNotAGap(t *testing.T) {
	// Symbol first trades mid-range: the leading trading days without bars
	// are a listing boundary, not missing data.
	s := newMemStore(
		bar("NEWCO", date(2024, 1, 4), 20),
		bar("NEWCO", date(2024, 1, 5), 21),
	)
	f := &stubFetcher{}
	l := NewLoader(s, f)

	if _, err := l.LoadDataset(context.Background(), []string{"NEWCO"}, date(2024, 1, 2), date(2024, 1, 5)); err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(f.requests) != 0 {
		t.Errorf("fetcher called for pre-listing days: %v", f.requests)
	}
}

func TestLoadDatasetFetchErrorPropagates(t *testing.T) {
	f := &stubFetcher{err: errors.New("upstream down")}
	l := NewLoader(newMemStore(), f)

	_, err := l.LoadDataset(context.Background(), []string{"AAPL"}, date(2024, 1, 2), date(2024, 1, 3))
	if err == nil || !errors.Is(err, f.err) {
		t.Fatalf("LoadDataset error = %v, want wrapped fetch error", err)
	}
}

func TestLoadDatasetMultiSymbol(t *testing.T) {
	s := newMemStore(
		bar("AAPL", date(2024, 1, 2), 10),
		bar("MSFT", date(2024, 1, 2), 100),
	)
	l := NewLoader(s, nil)

	ds, err := l.LoadDataset(context.Background(), []string{"AAPL", "MSFT"}, date(2024, 1, 2), date(2024, 1, 2))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	syms := ds.Symbols()
	if len(syms) != 2 {
		t.Errorf("dataset symbols = %v, want AAPL and MSFT", syms)
	}
}
