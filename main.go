// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadBotEnv()               – read .env (no shell exports required)
//   2) cfg := loadConfigFromEnv() – build runtime Config
//   3) wire collaborators (paper exchange or FTX REST + websocket feed)
//   4) wire ledger/book/reconciler/signal/engine/risk monitor
//   5) start Prometheus /metrics + /healthz server on cfg.Port
//   6) runLive until Flat or a fatal fault
//
// Flags:
//   -dry-run          Force the in-memory paper exchange (overrides env)
//   -interval <sec>   Tick interval in seconds (overrides env)
//
// Signals: the first interrupt requests a graceful unwind (the engine
// reduces both legs to flat, then exits 0); a second interrupt aborts.
//
// Exit codes: 0 after a completed unwind, 1 on any fatal fault.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var dryRun bool
	var intervalSec int
	flag.BoolVar(&dryRun, "dry-run", false, "Use the in-memory paper exchange")
	flag.IntVar(&intervalSec, "interval", 0, "Tick interval in seconds (0 = env/default)")
	flag.Parse()

	// ---- Environment & Config ----
	loadBotEnv()
	cfg := loadConfigFromEnv()
	if dryRun {
		cfg.DryRun = true
	}
	if intervalSec > 0 {
		cfg.TickIntervalSec = intervalSec
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Collaborator wiring ----
	var col Collaborators
	var feed *FtxFeed
	if cfg.DryRun {
		paper := NewPaperExchange()
		paper.SetPrice(cfg.SpotMarket, getEnvFloat("PAPER_SPOT_PRICE", 20000))
		paper.SetPrice(cfg.PerpMarket, getEnvFloat("PAPER_PERP_PRICE", 20200))
		paper.SetRates(getEnvFloat("PAPER_FUNDING_RATE", 0.0001), getEnvFloat("PAPER_BORROW_RATE", 0.00002))
		col = Collaborators{Market: paper, Events: paper, Gateway: paper, Funding: paper, Account: paper}
	} else {
		client, err := NewFtxClientFromEnv()
		if err != nil {
			log.Fatalf("ftx client init: %v", err)
		}
		f, err := NewFtxFeed(ctx, getEnv("FTX_WS_URL", "wss://ftx.com/ws/"),
			getEnv("FTX_API_KEY", ""), getEnv("FTX_API_SECRET", ""), getEnv("FTX_SUBACCOUNT", ""),
			[]string{cfg.SpotMarket, cfg.PerpMarket})
		if err != nil {
			log.Fatalf("ftx feed init: %v", err)
		}
		feed = f
		col = Collaborators{Market: client, Events: feed, Gateway: client, Funding: client, Account: client, Ready: feed.Ready}
	}
	if feed != nil {
		defer feed.Close()
	}

	// ---- Engine wiring ----
	ledger := NewLedger()
	book := NewOrderBook()
	rec := NewReconciler(book, ledger, cfg.SpotMarket, cfg.PerpMarket)
	sig := NewSignal(col.Funding, cfg.PerpMarket, cfg.BaseAsset, int64(cfg.FundingRefreshSec), time.Now)
	eng := NewEngine(cfg, ledger, book, sig)
	risk := NewRiskMonitor(cfg, ledger, book)

	// ---- HTTP metrics/health ----
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("serving metrics on :%d/metrics", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	// ---- Signals: first = graceful unwind, second = abort ----
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[SIGNAL] interrupt received: unwinding both legs (interrupt again to abort)")
		eng.RequestUnwind()
		<-sigCh
		log.Printf("[SIGNAL] second interrupt: aborting")
		cancel()
	}()

	// ---- Run ----
	err := runLive(ctx, cfg, eng, rec, risk, sig, ledger, book, col)

	// ---- Graceful shutdown for HTTP server ----
	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)

	if err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}
