// Package kestrel provides a Go client for the kestrel-server API.
package kestrel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BacktestRequest is the POST /api/backtest body.
type BacktestRequest struct {
	Strategy    string         `json:"strategy"`
	Params      map[string]any `json:"params,omitempty"`
	Symbols     []string       `json:"symbols"`
	Start       string         `json:"start"` // 2006-01-02
	End         string         `json:"end"`   // 2006-01-02
	InitialCash float64        `json:"initialCash"`
}

// Trade is one executed trade in a backtest result.
type Trade struct {
	Symbol string  `json:"symbol"`
	Shares int64   `json:"shares"`
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
	Date   string  `json:"date"`
}

// BacktestResult carries the metrics and trade ledger of a finished run.
type BacktestResult struct {
	Strategy         string   `json:"strategy"`
	Symbols          []string `json:"symbols"`
	Start            string   `json:"start"`
	End              string   `json:"end"`
	InitialCash      float64  `json:"initialCash"`
	ProfitLoss       float64  `json:"profitLoss"`
	AnnualizedReturn float64  `json:"annualizedReturn"`
	MaxDrawdown      float64  `json:"maxDrawdown"`
	WinProbability   float64  `json:"winProbability"`
	RejectedRequests int      `json:"rejectedRequests"`
	Trades           []Trade  `json:"trades"`
}

// Bar is one daily OHLCV record.
type Bar struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   int64   `json:"volume"`
}

// Bars is one symbol's stored daily bars.
type Bars struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running kestrel-server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// RunBacktest submits a backtest and blocks until the result is ready.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var result BacktestResult
	if err := c.post(ctx, "/api/backtest", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListStrategies returns the strategy names the server accepts.
func (c *Client) ListStrategies(ctx context.Context) ([]string, error) {
	var resp struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.get(ctx, "/api/strategies", &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// ListSymbols returns the symbols with stored bar data.
func (c *Client) ListSymbols(ctx context.Context) ([]string, error) {
	var resp struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.get(ctx, "/api/symbols", &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// GetBars retrieves a symbol's stored daily bars. Zero start or end leaves
// that bound unset.
func (c *Client) GetBars(ctx context.Context, symbol string, start, end time.Time) (*Bars, error) {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		q.Set("end", end.Format("2006-01-02"))
	}

	path := "/api/bars/" + url.PathEscape(strings.ToUpper(symbol))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp Bars
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	return c.get(ctx, "/api/health", &resp)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
