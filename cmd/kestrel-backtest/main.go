// kestrel-backtest runs a single backtest from the command line and prints
// the metrics as JSON, for quick strategy iteration without the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kestrel/internal/backtest"
	"kestrel/internal/config"
	"kestrel/internal/ingest"
	"kestrel/internal/marketdata"
	"kestrel/internal/store"
	"kestrel/internal/strategy"
	"kestrel/internal/util"
)

func main() {
	strategyFlag := flag.String("strategy", "", "strategy name (required; see -list)")
	paramsFlag := flag.String("params", "{}", "strategy parameters as a JSON object")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (required)")
	startFlag := flag.String("start", "", "start date YYYY-MM-DD (required)")
	endFlag := flag.String("end", time.Now().UTC().Format("2006-01-02"), "end date YYYY-MM-DD")
	cashFlag := flag.Float64("cash", 0, "initial cash (default from config)")
	listFlag := flag.Bool("list", false, "list available strategies and exit")
	flag.Parse()

	registry := strategy.DefaultRegistry()
	if *listFlag {
		for _, name := range registry.List() {
			fmt.Println(name)
		}
		return
	}

	if *strategyFlag == "" || *symbolsFlag == "" || *startFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfgPath := "config/kestrel.yaml"
	if p := os.Getenv("KESTREL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	var params map[string]any
	if err := json.Unmarshal([]byte(*paramsFlag), &params); err != nil {
		log.Fatalf("invalid -params: %v", err)
	}

	start, err := time.Parse("2006-01-02", *startFlag)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endFlag)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	var symbols []string
	for _, s := range strings.Split(*symbolsFlag, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}

	initialCash := *cashFlag
	if initialCash <= 0 {
		initialCash = cfg.Backtest.StartingCash
	}

	barStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	var fetcher marketdata.Fetcher
	if cfg.Alpaca.APIKey != "" {
		fetcher = ingest.NewAlpacaClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	}

	loader := marketdata.NewLoader(barStore, fetcher)
	backtester := backtest.NewBacktester(loader, registry)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := backtester.Run(ctx, *strategyFlag, params, symbols, start, end, initialCash)
	if err != nil {
		log.Fatalf("backtest error: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("encoding summary: %v", err)
	}
}

func openStore(cfg *config.Config) (store.BarStore, error) {
	switch cfg.Storage.Backend {
	case "parquet":
		return store.NewParquetStore(cfg.Storage.DataDir), nil
	case "sqlite", "":
		return store.NewSQLiteStore(cfg.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
