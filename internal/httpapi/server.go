// Package httpapi exposes the backtester over HTTP: run a backtest, list
// strategies and stored symbols, and read raw daily bars.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kestrel/internal/backtest"
	"kestrel/internal/domain"
	"kestrel/internal/store"
	"kestrel/internal/strategy"
)

// Server serves the backtest HTTP API.
type Server struct {
	backtester *backtest.Backtester
	registry   *strategy.Registry
	store      store.BarStore
	log        *slog.Logger
}

// NewServer creates a Server over the given backtester, strategy registry,
// and bar store.
func NewServer(bt *backtest.Backtester, registry *strategy.Registry, s store.BarStore, log *slog.Logger) *Server {
	return &Server{
		backtester: bt,
		registry:   registry,
		store:      s,
		log:        log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/bars/{symbol}", s.handleBars)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.Strategy == "" {
		writeError(w, http.StatusBadRequest, "strategy required")
		return
	}
	if len(req.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "at least one symbol required")
		return
	}
	if req.InitialCash <= 0 {
		writeError(w, http.StatusBadRequest, "initialCash must be positive")
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start date %q", req.Start))
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end date %q", req.End))
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date before start date")
		return
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(sym)))
	}

	summary, err := s.backtester.Run(r.Context(), req.Strategy, req.Params, symbols, start, end, req.InitialCash)
	if err != nil {
		s.writeBacktestError(w, err)
		return
	}

	trades := make([]TradeJSON, 0, len(summary.Trades))
	for _, t := range summary.Trades {
		trades = append(trades, TradeJSON{
			Symbol: t.Symbol,
			Shares: t.Shares,
			Side:   string(t.Side),
			Price:  t.Price,
			Date:   t.Date.Format("2006-01-02"),
		})
	}

	writeJSON(w, BacktestResponse{
		Strategy:         req.Strategy,
		Symbols:          symbols,
		Start:            start.Format("2006-01-02"),
		End:              end.Format("2006-01-02"),
		InitialCash:      req.InitialCash,
		ProfitLoss:       summary.ProfitLoss,
		AnnualizedReturn: summary.AnnualizedReturn,
		MaxDrawdown:      summary.MaxDrawdown,
		WinProbability:   summary.WinProbability,
		RejectedRequests: summary.RejectedRequests,
		Trades:           trades,
	})
}

// writeBacktestError maps run failures to status codes: bad strategy input
// is the caller's fault, missing market data is a lookup failure, anything
// else is internal.
func (s *Server) writeBacktestError(w http.ResponseWriter, err error) {
	var (
		due *backtest.DataUnavailableError
		mpe *backtest.MissingPriceError
	)
	switch {
	case errors.Is(err, strategy.ErrUnknownStrategy):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &due):
		writeError(w, http.StatusNotFound, due.Error())
	case errors.As(err, &mpe):
		writeError(w, http.StatusUnprocessableEntity, mpe.Error())
	default:
		s.log.Error("backtest failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.store.ListSymbols(r.Context())
	if err != nil {
		s.log.Error("listing symbols", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, SymbolsResponse{Symbols: symbols})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	start, end, err := parseRangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bars, err := s.store.ReadBars(r.Context(), symbol, start, end)
	if err != nil {
		s.log.Error("reading bars", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read bars")
		return
	}
	if len(bars) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no bars for %s", symbol))
		return
	}

	out := make([]BarJSON, 0, len(bars))
	for _, b := range bars {
		out = append(out, BarJSON{
			Date:     b.Date.Format("2006-01-02"),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
			Volume:   b.Volume,
		})
	}
	writeJSON(w, BarsResponse{Symbol: symbol, Bars: out})
}

// parseRangeParams reads optional start/end query params, defaulting to an
// unbounded range.
func parseRangeParams(r *http.Request) (start, end time.Time, err error) {
	start = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	end = domain.Day(time.Now().UTC())

	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse("2006-01-02", v)
		if err != nil {
			return start, end, fmt.Errorf("invalid start date %q", v)
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse("2006-01-02", v)
		if err != nil {
			return start, end, fmt.Errorf("invalid end date %q", v)
		}
	}
	return start, end, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}
