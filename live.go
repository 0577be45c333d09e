// FILE: live.go
// Package main – Startup validation, readiness wait, and the tick loop.
//
// runLive drives the engine in real time. Each iteration synchronously:
//  1. drains the private feed and reconciles events into book + ledger
//  2. refreshes funding/borrow when the wall-clock cadence is due
//  3. takes a market snapshot (both legs' books + tickers)
//  4. runs the state machine, then the risk monitor
//  5. issues the accumulated gateway commands, in order
//  6. reports state and sleeps one interval
//
// The loop returns nil only when the engine reaches Flat after a
// successful unwind; any fatal fault returns an error and the process
// exits non-zero.
//
// Fatal: unexpected cancellation, startup validation failure, feed-ready
// timeout. Recoverable (log and continue): stale events, transient market
// data errors, a leg's position missing mid-sequence.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Collaborators bundles the external interfaces the loop needs. Ready is
// optional extra readiness (e.g. the websocket feed) on top of the
// market-data poll.
type Collaborators struct {
	Market  MarketData
	Events  OrderEvents
	Gateway Gateway
	Funding FundingSource
	Account Account
	Ready   func() bool
}

// validateStartup enforces the clean-slate preconditions before any order
// is placed: known symbols and a flat account.
func validateStartup(ctx context.Context, cfg Config, acct Account) error {
	markets, err := acct.Markets(ctx)
	if err != nil {
		return fmt.Errorf("list markets: %w", err)
	}
	valid := make(map[string]bool, len(markets))
	for _, m := range markets {
		valid[m] = true
	}
	if !valid[cfg.SpotMarket] || !valid[cfg.PerpMarket] {
		return fmt.Errorf("target market symbol(s) invalid (%s, %s): check ticker codes and restart", cfg.SpotMarket, cfg.PerpMarket)
	}

	positions, err := acct.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	orders, err := acct.OpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}
	if positions > 0 || orders > 0 {
		return errors.New("existing positions and/or orders detected: close all positions, orders and margin borrows, then restart. " +
			"Ensure collateral is denominated in an asset you will not be trading (e.g. hold USDT when trading BTC spot and BTC-PERP)")
	}
	return nil
}

// waitFeedReady polls for live snapshots on both legs within the bounded
// startup window. Not becoming ready in time is fatal.
func waitFeedReady(ctx context.Context, cfg Config, col Collaborators) error {
	deadline := time.Now().Add(time.Duration(cfg.FeedReadyTimeoutSec) * time.Second)
	for {
		_, errS := col.Market.GetTicker(ctx, cfg.SpotMarket)
		_, errP := col.Market.GetTicker(ctx, cfg.PerpMarket)
		extra := col.Ready == nil || col.Ready()
		if errS == nil && errP == nil && extra {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("market data not ready within %ds", cfg.FeedReadyTimeoutSec)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// takeSnapshot reads both legs' books and tickers for this tick.
func takeSnapshot(ctx context.Context, cfg Config, md MarketData) (MarketSnapshot, error) {
	spotBook, err := md.GetOrderbook(ctx, cfg.SpotMarket)
	if err != nil {
		return MarketSnapshot{}, fmt.Errorf("spot orderbook: %w", err)
	}
	perpBook, err := md.GetOrderbook(ctx, cfg.PerpMarket)
	if err != nil {
		return MarketSnapshot{}, fmt.Errorf("perp orderbook: %w", err)
	}
	spotTick, err := md.GetTicker(ctx, cfg.SpotMarket)
	if err != nil {
		return MarketSnapshot{}, fmt.Errorf("spot ticker: %w", err)
	}
	perpTick, err := md.GetTicker(ctx, cfg.PerpMarket)
	if err != nil {
		return MarketSnapshot{}, fmt.Errorf("perp ticker: %w", err)
	}
	return MarketSnapshot{
		SpotBook: spotBook,
		PerpBook: perpBook,
		SpotLast: spotTick.Last,
		PerpLast: perpTick.Last,
	}, nil
}

// issueCommands sends the tick's commands to the gateway in order. A
// failed call is logged and skipped: no retry here, state is only trusted
// once echoed back through the order feed. The failed commands are
// returned so the engine can release their in-flight markers (a rejected
// place never gets an echo).
func issueCommands(ctx context.Context, gw Gateway, cmds []Command) []Command {
	var failed []Command
	for _, c := range cmds {
		var err error
		switch c.Kind {
		case CmdPlace:
			err = gw.PlaceOrder(ctx, c.Place)
		case CmdCancel:
			err = gw.CancelOrder(ctx, c.OrderID)
		case CmdModify:
			err = gw.ModifyOrder(ctx, c.OrderID, c.Price)
		}
		if err != nil {
			log.Printf("[GATEWAY] %s failed: %v", c.Kind, err)
			failed = append(failed, c)
			continue
		}
		mtxCommands.WithLabelValues(string(c.Kind)).Inc()
	}
	return failed
}

// runLive executes the control loop until Flat, a fatal fault, or ctx
// cancellation.
func runLive(ctx context.Context, cfg Config, eng *Engine, rec *Reconciler, risk *RiskMonitor, sig *Signal, ledger *Ledger, book *OrderBook, col Collaborators) error {
	log.Printf("Starting %s — pair=%s:%s account=%.2fUSD threshold=%.4f%% dry_run=%v",
		col.Gateway.Name(), cfg.SpotMarket, cfg.PerpMarket, cfg.AccountValueUSD, cfg.BasisThresholdPct, cfg.DryRun)

	if err := validateStartup(ctx, cfg, col.Account); err != nil {
		IncFault("startup_validation")
		return fmt.Errorf("startup validation: %w", err)
	}
	if err := waitFeedReady(ctx, cfg, col); err != nil {
		IncFault("feed_timeout")
		return fmt.Errorf("feed readiness: %w", err)
	}
	if err := sig.Refresh(ctx); err != nil {
		IncFault("startup_validation")
		return fmt.Errorf("initial funding refresh: %w", err)
	}
	log.Printf("[BOOT] feed ready; funding=%.4f%% borrow=%.4f%%", sig.FundingPct, sig.BorrowPct)

	interval := time.Duration(cfg.TickIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		// 1. Reconcile order-lifecycle events.
		facts, err := rec.Apply(col.Events.OrderUpdates())
		eng.NoteFacts(facts)
		for _, f := range facts {
			log.Printf("[RECON] %s %s %s size=%.8f price=%.2f", f.Kind, f.Instrument, f.Side, f.Size, f.Price)
		}
		if err != nil {
			IncFault("unexpected_cancel")
			log.Printf("[FAULT] %v", err)
			log.Printf("[FAULT] orders were closed outside the engine's control (possible rate-limit rejection)")
			log.Printf("[FAULT] manually verify positions, orders and exposure are safe; close all positions and orders, then restart")
			return err
		}

		// 2. Funding/borrow refresh on its wall-clock cadence.
		if err := sig.Refresh(ctx); err != nil {
			log.Printf("[SIGNAL] refresh failed, reusing cached rates: %v", err)
		}

		// 3. Market snapshot.
		snap, err := takeSnapshot(ctx, cfg, col.Market)
		if err != nil {
			log.Printf("[TICK] snapshot failed, skipping tick: %v", err)
		} else {
			// 4.–5. Decide and act.
			cmds := eng.Step(snap)
			cmds = append(cmds, risk.Scan(snap)...)
			for _, c := range issueCommands(ctx, col.Gateway, cmds) {
				eng.NoteCommandFailure(c)
			}

			// 6. Report.
			mtxPositions.Set(float64(ledger.Count()))
			mtxResting.Set(float64(book.Len()))
			printDashboard(cfg, eng, sig, ledger, book, snap)
		}

		if eng.Phase() == PhaseFlat {
			log.Printf("[DONE] unwind complete, both legs flat")
			return nil
		}

		select {
		case <-ctx.Done():
			log.Println("shutdown")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
