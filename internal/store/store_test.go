package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kestrel/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testBars() []domain.Bar {
	return []domain.Bar{
		{
			Symbol: "AAPL", Date: day(2024, 1, 2),
			Open: 185.0, High: 186.5, Low: 184.0, Close: 185.5, AdjClose: 185.5,
			Volume: 50_000_000,
		},
		{
			Symbol: "AAPL", Date: day(2024, 1, 3),
			Open: 185.5, High: 187.0, Low: 185.0, Close: 186.0, AdjClose: 186.0,
			Volume: 45_000_000,
		},
		{
			Symbol: "GOOGL", Date: day(2024, 1, 2),
			Open: 140.0, High: 141.0, Low: 139.0, Close: 140.5, AdjClose: 140.5,
			Volume: 20_000_000,
		},
	}
}

// runBarStoreTests exercises the BarStore contract against any backend.
func runBarStoreTests(t *testing.T, s BarStore) {
	t.Helper()
	ctx := context.Background()

	if err := s.WriteBars(ctx, testBars()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := s.ReadBars(ctx, "AAPL", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 {
		t.Errorf("first bar Close = %v, want 185.5", got[0].Close)
	}
	if got[1].Close != 186.0 {
		t.Errorf("second bar Close = %v, want 186.0", got[1].Close)
	}
	if !got[0].Date.Before(got[1].Date) {
		t.Error("bars not sorted by date ascending")
	}

	// Range filter excludes out-of-range bars.
	got, err = s.ReadBars(ctx, "AAPL", day(2024, 1, 3), day(2024, 1, 3))
	if err != nil {
		t.Fatalf("ReadBars (narrow range): %v", err)
	}
	if len(got) != 1 || got[0].Close != 186.0 {
		t.Errorf("narrow range read = %v, want single bar with close 186.0", got)
	}

	// Upsert: rewriting the same (symbol, date) replaces, not duplicates.
	if err := s.WriteBars(ctx, []domain.Bar{{
		Symbol: "AAPL", Date: day(2024, 1, 2),
		Open: 185.0, High: 186.5, Low: 184.0, Close: 184.9, AdjClose: 184.9,
		Volume: 51_000_000,
	}}); err != nil {
		t.Fatalf("WriteBars (upsert): %v", err)
	}
	got, err = s.ReadBars(ctx, "AAPL", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars after upsert: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after upsert, want 2", len(got))
	}
	if got[0].Close != 184.9 {
		t.Errorf("upserted bar Close = %v, want 184.9", got[0].Close)
	}

	symbols, err := s.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}

	// Unknown symbol reads return no bars and no error.
	got, err = s.ReadBars(ctx, "TSLA", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars (unknown symbol): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadBars for unknown symbol returned %d bars, want 0", len(got))
	}
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bars.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q): %v", dbPath, err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()

	runBarStoreTests(t, s)
}

func TestParquetStore(t *testing.T) {
	s := NewParquetStore(t.TempDir())
	runBarStoreTests(t, s)
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")
	got := ps.barPath("AAPL", 2024)
	want := filepath.Join("/data", "daily", "AAPL", "2024.parquet")
	if got != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestSQLiteStoreNormalizesSymbolCase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bars.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.WriteBars(ctx, []domain.Bar{{Symbol: "msft", Date: day(2024, 3, 1), Close: 403.0}}); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := s.ReadBars(ctx, "MSFT", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ReadBars returned %d bars, want 1 (case-insensitive symbol)", len(got))
	}
	if got[0].Symbol != "MSFT" {
		t.Errorf("stored symbol = %q, want %q", got[0].Symbol, "MSFT")
	}
}
