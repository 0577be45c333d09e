// FILE: dashboard.go
// Package main – Per-tick console report.
//
// A plain-text snapshot of rates, basis, phase, positions and open orders
// printed once per tick. Purely informational; nothing reads it back.

package main

import "fmt"

func printDashboard(cfg Config, eng *Engine, sig *Signal, ledger *Ledger, book *OrderBook, snap MarketSnapshot) {
	basis, _ := ComputeBasis(snap)

	fmt.Printf("----------------- %s:%s -----------------\n", cfg.SpotMarket, cfg.PerpMarket)
	fmt.Printf("Phase:                        %s\n", eng.Phase())
	fmt.Printf("Margin borrow rate (%%):       %.4f\n", sig.BorrowPct)
	fmt.Printf("Perpetual funding rate (%%):   %.4f\n", sig.FundingPct)
	fmt.Printf("Basis (%%):                    %.5f\n", basis)
	fmt.Printf("Spot last / Perp last:        %.2f / %.2f\n", snap.SpotLast, snap.PerpLast)

	positions := ledger.All()
	fmt.Printf("\nActive positions: %d\n", len(positions))
	if len(positions) > 0 {
		fmt.Println("Ticker ---- Side ---- Entry ---- Size ---- Fills")
		for _, p := range positions {
			fmt.Printf("%-12s %-6s %12.2f %12.8f %5d\n", p.Instrument, p.Side, p.AvgEntryPrice, p.Size, p.FillCount)
		}
	}

	orders := book.All()
	fmt.Printf("\nOpen orders: %d\n", len(orders))
	if len(orders) > 0 {
		fmt.Println("Ticker ---- Side ---- Price ---- Size ---- Tag")
		for _, o := range orders {
			fmt.Printf("%-12s %-6s %12.2f %12.8f  %s\n", o.Instrument, o.Side, o.Price, o.Size, o.ClientTag)
		}
	}
	fmt.Println()
}
