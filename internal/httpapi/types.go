package httpapi

// BacktestRequest is the POST /api/backtest body.
type BacktestRequest struct {
	Strategy    string         `json:"strategy"`
	Params      map[string]any `json:"params,omitempty"`
	Symbols     []string       `json:"symbols"`
	Start       string         `json:"start"` // 2006-01-02
	End         string         `json:"end"`   // 2006-01-02
	InitialCash float64        `json:"initialCash"`
}

// TradeJSON is one executed trade in a backtest response.
type TradeJSON struct {
	Symbol string  `json:"symbol"`
	Shares int64   `json:"shares"`
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
	Date   string  `json:"date"`
}

// BacktestResponse carries the metrics and trade ledger of a finished run.
type BacktestResponse struct {
	Strategy         string      `json:"strategy"`
	Symbols          []string    `json:"symbols"`
	Start            string      `json:"start"`
	End              string      `json:"end"`
	InitialCash      float64     `json:"initialCash"`
	ProfitLoss       float64     `json:"profitLoss"`
	AnnualizedReturn float64     `json:"annualizedReturn"`
	MaxDrawdown      float64     `json:"maxDrawdown"`
	WinProbability   float64     `json:"winProbability"`
	RejectedRequests int         `json:"rejectedRequests"`
	Trades           []TradeJSON `json:"trades"`
}

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// SymbolsResponse lists the symbols with stored bar data.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// BarJSON is one daily bar in a bars response.
type BarJSON struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   int64   `json:"volume"`
}

// BarsResponse carries one symbol's stored daily bars.
type BarsResponse struct {
	Symbol string    `json:"symbol"`
	Bars   []BarJSON `json:"bars"`
}

// HealthResponse is the GET /api/health body.
type HealthResponse struct {
	Status string `json:"status"`
}
