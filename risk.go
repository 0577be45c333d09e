// FILE: risk.go
// Package main – Risk monitor / repricer for resting orders.
//
// Runs after the state machine each tick. For every resting order:
//
//  1. Stop check: the order's limit price is compared against a stop level
//     derived from the *opposing* filled leg's average entry, offset by
//     the cutoff percentage in the adverse direction. A breach cancels the
//     order and fires a market order that reduces the exposed position by
//     one fill's worth, closing the risk window immediately.
//  2. Stale-quote check: if the order has drifted more than RepriceLevels
//     book levels from the last trade (one level = mean absolute tick step
//     across the nearest levels), the order is repriced to the near touch.
//
// The stop check always wins over the reprice in the same pass.

package main

import "log"

// RiskMonitor scans the local order book against current positions.
type RiskMonitor struct {
	cfg    Config
	ledger *Ledger
	book   *OrderBook
}

func NewRiskMonitor(cfg Config, ledger *Ledger, book *OrderBook) *RiskMonitor {
	return &RiskMonitor{cfg: cfg, ledger: ledger, book: book}
}

// Scan returns the cancel/market/modify commands for this tick.
func (r *RiskMonitor) Scan(snap MarketSnapshot) []Command {
	var cmds []Command
	for _, o := range r.book.All() {
		if o.ClientTag == clientTagUnwind || o.ClientTag == clientTagStop {
			continue
		}
		if c, fired := r.stopCheck(o); fired {
			cmds = append(cmds, c...)
			continue
		}
		if c, fired := r.repriceCheck(o, snap); fired {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// stopCheck compares the order's price with the opposing leg's entry
// offset by the cutoff. Missing opposing position is not an error — the
// order has nothing to hedge against yet.
func (r *RiskMonitor) stopCheck(o Order) ([]Command, bool) {
	opp, ok := r.opposing(o.Instrument)
	if !ok {
		return nil, false
	}

	cutoff := r.cfg.StopCutoffPct / 100
	breached := false
	switch o.Side {
	case SideBuy: // adverse = having to pay ever more above the hedged entry
		breached = o.Price >= opp.AvgEntryPrice*(1+cutoff)
	case SideSell: // adverse = selling ever further below the hedged entry
		breached = o.Price <= opp.AvgEntryPrice*(1-cutoff)
	}
	if !breached {
		return nil, false
	}

	log.Printf("[STOP] order %s %s %s @ %.2f crossed cutoff vs %s entry %.2f; neutralizing",
		o.ID, o.Side, o.Instrument, o.Price, opp.Instrument, opp.AvgEntryPrice)
	mtxStops.Inc()

	return []Command{
		{Kind: CmdCancel, OrderID: o.ID},
		{Kind: CmdPlace, Place: OrderRequest{
			Instrument: opp.Instrument,
			Side:       opp.Side.Opposite(),
			Size:       opp.ReduceStep(),
			Type:       TypeMarket,
			ReduceOnly: true,
			ClientTag:  clientTagStop,
		}},
	}, true
}

// repriceCheck measures the order's distance from the last trade in book
// levels and refreshes a stale quote back to the near touch.
func (r *RiskMonitor) repriceCheck(o Order, snap MarketSnapshot) (Command, bool) {
	book := snap.SpotBook
	last := snap.SpotLast
	if o.Instrument == r.cfg.PerpMarket {
		book = snap.PerpBook
		last = snap.PerpLast
	}
	if last <= 0 {
		return Command{}, false
	}

	unit := meanTickStep(book)
	if unit <= 0 {
		return Command{}, false
	}
	drift := o.Price - last
	if drift < 0 {
		drift = -drift
	}
	if drift <= float64(r.cfg.RepriceLevels)*unit {
		return Command{}, false
	}

	fresh := book.BestBid()
	if o.Side == SideSell {
		fresh = book.BestAsk()
	}
	if fresh <= 0 || fresh == o.Price {
		return Command{}, false
	}
	log.Printf("[REPRICE] order %s %s %s %.2f -> %.2f (drift %.2f, unit %.4f)",
		o.ID, o.Side, o.Instrument, o.Price, fresh, drift, unit)
	mtxReprices.Inc()
	return Command{Kind: CmdModify, OrderID: o.ID, Price: fresh}, true
}

// opposing returns the position on the other leg of the pair.
func (r *RiskMonitor) opposing(instrument string) (Position, bool) {
	other := r.cfg.SpotMarket
	if instrument == r.cfg.SpotMarket {
		other = r.cfg.PerpMarket
	}
	return r.ledger.Get(other)
}

// meanTickStep averages the absolute price gaps between the nearest book
// levels on both sides; this is the "one level" unit for the drift check.
func meanTickStep(book Orderbook) float64 {
	sum, n := 0.0, 0
	for i := 1; i < len(book.Asks); i++ {
		d := book.Asks[i].Price - book.Asks[i-1].Price
		if d < 0 {
			d = -d
		}
		sum += d
		n++
	}
	for i := 1; i < len(book.Bids); i++ {
		d := book.Bids[i-1].Price - book.Bids[i].Price
		if d < 0 {
			d = -d
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
