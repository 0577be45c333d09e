// FILE: engine.go
// Package main – Entry/exit state machine: the per-tick decision core.
//
// Phases: Idle → Entering → Monitoring → Unwinding → Flat (terminal).
// Step consumes the tick's market snapshot plus the cached funding signal
// and emits an ordered command list for the gateway. All mutable decision
// state (phase, in-flight markers) lives here, owned by the single control
// loop — no locking beyond the operator's manual-exit flag.
//
// Two gates prevent duplicate orders on a leg:
//   • the local order book ("await fill": a resting order blocks the leg)
//   • the pending map (a command was issued but not yet echoed back by the
//     private feed; cleared when any event for that instrument lands)

package main

import (
	"log"
	"sync/atomic"
)

// Phase is the engine's top-level state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseEntering   Phase = "entering"
	PhaseMonitoring Phase = "monitoring"
	PhaseUnwinding  Phase = "unwinding"
	PhaseFlat       Phase = "flat"
)

// clientTagEntry and friends mark order intent on the wire so fills can be
// told apart when reading exchange history by hand.
const (
	clientTagEntry  = "basis-entry"
	clientTagHedge  = "basis-hedge"
	clientTagUnwind = "basis-unwind"
	clientTagStop   = "basis-stop"
)

// Engine drives the multi-phase basis trade.
type Engine struct {
	cfg    Config
	ledger *Ledger
	book   *OrderBook
	sig    *Signal

	phase      Phase
	pending    map[string]bool // instrument → command issued, echo not yet seen
	manualExit atomic.Bool     // set from the signal handler goroutine
}

func NewEngine(cfg Config, ledger *Ledger, book *OrderBook, sig *Signal) *Engine {
	return &Engine{
		cfg:     cfg,
		ledger:  ledger,
		book:    book,
		sig:     sig,
		phase:   PhaseIdle,
		pending: make(map[string]bool),
	}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// RequestUnwind asks the engine to start unwinding on its next tick. Safe
// to call from the signal-handler goroutine.
func (e *Engine) RequestUnwind() { e.manualExit.Store(true) }

// NoteFacts clears in-flight markers for instruments whose commands have
// been echoed back by the order feed.
func (e *Engine) NoteFacts(facts []Fact) {
	for _, f := range facts {
		if f.Instrument != "" {
			delete(e.pending, f.Instrument)
		}
	}
}

// NoteCommandFailure releases the in-flight marker for a place command the
// gateway rejected. No echo will ever arrive for it; without this the leg
// would stay blocked for the rest of the run.
func (e *Engine) NoteCommandFailure(c Command) {
	if c.Kind == CmdPlace {
		delete(e.pending, c.Place.Instrument)
	}
}

// legBusy reports whether a leg must not receive a new order this tick.
func (e *Engine) legBusy(instrument string) bool {
	return e.pending[instrument] || e.book.HasResting(instrument)
}

func (e *Engine) setPhase(p Phase) {
	if p == e.phase {
		return
	}
	log.Printf("[PHASE] %s -> %s", e.phase, p)
	mtxPhase.WithLabelValues(string(e.phase)).Set(0)
	mtxPhase.WithLabelValues(string(p)).Set(1)
	e.phase = p
}

// Step runs one decision pass and returns the gateway commands to issue.
func (e *Engine) Step(snap MarketSnapshot) []Command {
	basis, dir := ComputeBasis(snap)
	mtxBasis.Set(basis)

	if e.manualExit.Load() && e.phase != PhaseFlat && e.phase != PhaseUnwinding {
		log.Printf("[PHASE] manual exit requested")
		e.setPhase(PhaseUnwinding)
	}

	switch e.phase {
	case PhaseIdle, PhaseEntering:
		return e.stepEntering(snap, basis, dir)
	case PhaseMonitoring:
		e.checkExitTriggers()
		if e.phase == PhaseUnwinding {
			return e.stepUnwinding(snap)
		}
		return e.stepRebalance(snap, dir)
	case PhaseUnwinding:
		return e.stepUnwinding(snap)
	default: // PhaseFlat
		return nil
	}
}

// entryThreshold is the configured basis threshold, halved once any
// position exists: incremental legs tolerate a smaller edge than the
// first entry.
func (e *Engine) entryThreshold() float64 {
	t := e.cfg.BasisThresholdPct
	if e.ledger.Count() > 0 {
		t /= 2
	}
	return t
}

// fundingConsistent checks that the basis direction lines up with
// favorable funding: short the rich perp only while longs pay shorts,
// long the cheap perp only while shorts pay longs.
func (e *Engine) fundingConsistent(dir BasisDirection) bool {
	if dir == DirPerpRich {
		return e.sig.FundingPct > 0
	}
	return e.sig.FundingPct < 0
}

func (e *Engine) stepEntering(snap MarketSnapshot, basis float64, dir BasisDirection) []Command {
	// Fully sized? Hand over to monitoring.
	if e.ledger.TotalNotional() >= e.cfg.AccountValueUSD ||
		e.ledger.TotalFillCount() >= e.cfg.OrdersPerSide*2 {
		e.setPhase(PhaseMonitoring)
		return nil
	}

	plan := PlanExposure(e.ledger, e.book, e.cfg.SpotMarket, e.cfg.PerpMarket, dir)
	if plan.Wait {
		return nil
	}

	abs := basis
	if abs < 0 {
		abs = -abs
	}
	gatesOpen := abs >= e.entryThreshold() && e.fundingConsistent(dir)

	balanced := len(plan.Legs) == 0
	correcting := e.ledger.Count() == 1 || fillCountsDiffer(e.ledger, e.cfg.SpotMarket, e.cfg.PerpMarket)

	var legs []LegPlan
	switch {
	case correcting:
		// Exposure correction is never gated on the signal: a lagging leg
		// gets its order immediately.
		legs = plan.Legs
	case balanced && e.ledger.Count() == 2 && gatesOpen:
		// Both legs filled and even; queue the next increment pair.
		spotSide, perpSide := entrySides(dir)
		legs = []LegPlan{
			{Instrument: e.cfg.SpotMarket, Side: spotSide},
			{Instrument: e.cfg.PerpMarket, Side: perpSide},
		}
	case e.ledger.Count() == 0 && gatesOpen:
		legs = plan.Legs
	default:
		// Signal not there yet; idle until it is.
		if e.ledger.Count() == 0 {
			e.setPhase(PhaseIdle)
		}
		return nil
	}

	var cmds []Command
	for _, leg := range legs {
		if e.legBusy(leg.Instrument) {
			continue
		}
		req, ok := e.buildEntryOrder(snap, leg, correcting)
		if !ok {
			continue
		}
		e.pending[leg.Instrument] = true
		cmds = append(cmds, Command{Kind: CmdPlace, Place: req})
	}
	if len(cmds) > 0 {
		e.setPhase(PhaseEntering)
	}
	return cmds
}

// buildEntryOrder sizes and prices one entry/hedge limit order: one
// fill's worth of notional, joined at the near touch of the leg's book.
func (e *Engine) buildEntryOrder(snap MarketSnapshot, leg LegPlan, hedge bool) (OrderRequest, bool) {
	last := snap.SpotLast
	book := snap.SpotBook
	if leg.Instrument == e.cfg.PerpMarket {
		last = snap.PerpLast
		book = snap.PerpBook
	}
	if last <= 0 {
		return OrderRequest{}, false
	}

	size := e.cfg.AccountValueUSD / float64(e.cfg.OrdersPerSide) / 2 / last
	size = roundDownToIncrement(size, e.cfg.MinOrderSize)
	if size <= 0 {
		log.Printf("[SIZE] %s order below minimum increment (last=%.2f), skipping", leg.Instrument, last)
		return OrderRequest{}, false
	}

	price := book.BestBid()
	if leg.Side == SideSell {
		price = book.BestAsk()
	}
	if price <= 0 {
		return OrderRequest{}, false
	}

	tag := clientTagEntry
	if hedge {
		tag = clientTagHedge
	}
	return OrderRequest{
		Instrument: leg.Instrument,
		Side:       leg.Side,
		Price:      price,
		Size:       size,
		Type:       TypeLimit,
		ClientTag:  tag,
	}, true
}

// stepRebalance keeps the two legs' fill counts locked while monitoring:
// an imbalance that arises after entry (a stop reduced one leg, a hedge
// order was cancelled) gets its correcting order immediately, with no
// signal gate.
func (e *Engine) stepRebalance(snap MarketSnapshot, dir BasisDirection) []Command {
	plan := PlanExposure(e.ledger, e.book, e.cfg.SpotMarket, e.cfg.PerpMarket, dir)
	if plan.Wait {
		return nil
	}
	var cmds []Command
	for _, leg := range plan.Legs {
		if e.legBusy(leg.Instrument) {
			continue
		}
		req, ok := e.buildEntryOrder(snap, leg, true)
		if !ok {
			continue
		}
		e.pending[leg.Instrument] = true
		cmds = append(cmds, Command{Kind: CmdPlace, Place: req})
	}
	return cmds
}

// checkExitTriggers moves Monitoring → Unwinding when the thesis is done:
// the funding sign has flipped against the held perp side (basis has
// converged or reversed), or the net carry of the pair, funding flow minus
// spot borrow cost, has decayed past the exit threshold.
func (e *Engine) checkExitTriggers() {
	perp, ok := e.ledger.Get(e.cfg.PerpMarket)
	if !ok {
		// Perp leg vanished mid-sequence: nothing left to monitor on that
		// side, unwind the remainder.
		e.setPhase(PhaseUnwinding)
		return
	}

	adverse := false
	switch perp.Side {
	case SideSell: // short perp collects while funding > 0
		adverse = e.sig.FundingPct <= 0
	case SideBuy: // long perp collects while funding < 0
		adverse = e.sig.FundingPct >= 0
	}
	if adverse {
		log.Printf("[EXIT] funding turned against held perp side=%s funding=%.4f%%", perp.Side, e.sig.FundingPct)
		e.setPhase(PhaseUnwinding)
		return
	}

	if net := e.carryAPRPct(perp.Side); e.cfg.ExitFundingAPRPct > 0 && net <= -e.cfg.ExitFundingAPRPct {
		log.Printf("[EXIT] net carry APR %.2f%% past exit threshold -%.2f%%", net, e.cfg.ExitFundingAPRPct)
		e.setPhase(PhaseUnwinding)
	}
}

// carryAPRPct annualizes the net carry of the held pair: funding flow on
// the perp side minus the borrow paid on the margined spot leg. Can go
// negative while the funding sign is still favorable, when borrow
// dominates.
func (e *Engine) carryAPRPct(perpSide OrderSide) float64 {
	funding := e.sig.FundingAPRPct()
	if perpSide == SideBuy {
		funding = -funding
	}
	return funding - e.sig.BorrowAPRPct()
}

// stepUnwinding reduces both legs symmetrically: cancel any leftover
// entry orders, then peel one fill's worth off whichever leg's fill count
// is highest (both when even) until the ledger is empty.
func (e *Engine) stepUnwinding(snap MarketSnapshot) []Command {
	if e.ledger.Count() == 0 {
		e.setPhase(PhaseFlat)
		return nil
	}

	var cmds []Command

	// Leftover entry orders would fight the unwind; cancel them first and
	// let the echo free the leg.
	for _, o := range e.book.All() {
		if o.ClientTag != clientTagUnwind && o.ClientTag != clientTagStop {
			cmds = append(cmds, Command{Kind: CmdCancel, OrderID: o.ID})
		}
	}
	if len(cmds) > 0 {
		return cmds
	}

	spotPos, hasSpot := e.ledger.Get(e.cfg.SpotMarket)
	perpPos, hasPerp := e.ledger.Get(e.cfg.PerpMarket)

	reduce := func(pos Position) {
		if e.legBusy(pos.Instrument) {
			return
		}
		size := roundDownToIncrement(pos.ReduceStep(), e.cfg.MinOrderSize)
		if size <= 0 || size > pos.Size {
			size = pos.Size
		}
		e.pending[pos.Instrument] = true
		cmds = append(cmds, Command{Kind: CmdPlace, Place: OrderRequest{
			Instrument: pos.Instrument,
			Side:       pos.Side.Opposite(),
			Size:       size,
			Type:       TypeMarket,
			ReduceOnly: true,
			ClientTag:  clientTagUnwind,
		}})
	}

	switch {
	case hasSpot && hasPerp:
		// Higher fill count first; both when even.
		if spotPos.FillCount >= perpPos.FillCount {
			reduce(spotPos)
		}
		if perpPos.FillCount >= spotPos.FillCount {
			reduce(perpPos)
		}
	case hasSpot:
		reduce(spotPos)
	case hasPerp:
		reduce(perpPos)
	}
	return cmds
}

// fillCountsDiffer reports a fill-count imbalance between the two legs
// when both positions exist.
func fillCountsDiffer(l *Ledger, spot, perp string) bool {
	s, okS := l.Get(spot)
	p, okP := l.Get(perp)
	if !okS || !okP {
		return false
	}
	return s.FillCount != p.FillCount
}
