// FILE: reconcile.go
// Package main – Event reconciler: applies order-lifecycle events to the
// local order book and position ledger.
//
// One call per tick: Apply drains the batch delivered by the private feed,
// fences out stale/duplicate messages per order id, and mutates book +
// ledger in event order. It returns the "facts" the decision layer needs
// (order placed, leg filled, hedge needed) plus a hard error on the one
// fault that must stop trading: a cancellation for an order the engine
// never placed (orders being closed outside our control, e.g. rate-limit
// rejection).

package main

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

// ErrUnexpectedCancel is fatal: the exchange closed an order the engine
// does not know. Trading halts; the operator must verify account state.
var ErrUnexpectedCancel = errors.New("unexpected cancellation of unknown order")

// FactKind labels a reconciliation outcome for the decision layer.
type FactKind string

const (
	FactOrderPlaced    FactKind = "order_placed"
	FactOrderCancelled FactKind = "order_cancelled"
	FactLegFilled      FactKind = "leg_filled"
	FactHedgeNeeded    FactKind = "hedge_needed"
)

// Fact is one side-effect-free statement about what a tick's events did.
type Fact struct {
	Kind       FactKind
	OrderID    string
	Instrument string
	Side       OrderSide
	Size       float64
	Price      float64
}

// Reconciler folds order events into the book and ledger for one
// spot/perp instrument pair.
type Reconciler struct {
	book   *OrderBook
	ledger *Ledger
	spot   string
	perp   string
}

func NewReconciler(book *OrderBook, ledger *Ledger, spot, perp string) *Reconciler {
	return &Reconciler{book: book, ledger: ledger, spot: spot, perp: perp}
}

func (r *Reconciler) kindOf(instrument string) InstrumentKind {
	if instrument == r.perp {
		return KindPerp
	}
	return KindSpot
}

// Apply processes one drained batch of events. Events are applied in
// (MsgTime, id) order so per-id ordering respects the timestamp fence;
// ordering across distinct ids does not affect correctness. Returns the
// facts produced, or ErrUnexpectedCancel (wrapped with the order id) on
// the fatal unknown-cancellation fault.
func (r *Reconciler) Apply(batch map[string]OrderEvent) ([]Fact, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	events := make([]OrderEvent, 0, len(batch))
	for id, ev := range batch {
		if ev.ID == "" {
			ev.ID = id
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].MsgTime != events[j].MsgTime {
			return events[i].MsgTime < events[j].MsgTime
		}
		return events[i].ID < events[j].ID
	})

	var facts []Fact
	for _, ev := range events {
		if !r.book.ShouldApply(ev.ID, ev.MsgTime) {
			// Stale or duplicate delivery; recoverable, skip quietly.
			continue
		}

		switch {
		// Placement echo: order is live on the exchange.
		case ev.Status == StatusNew && ev.FilledSize == 0:
			r.book.Track(Order{
				ID:         ev.ID,
				Instrument: ev.Instrument,
				Side:       ev.Side,
				Size:       ev.Size,
				FilledSize: 0,
				Price:      ev.Price,
				Status:     StatusNew,
				MsgTime:    ev.MsgTime,
				ClientTag:  ev.ClientTag,
			})
			r.book.Advance(ev.ID, ev.MsgTime)
			facts = append(facts, Fact{Kind: FactOrderPlaced, OrderID: ev.ID, Instrument: ev.Instrument, Side: ev.Side, Size: ev.Size, Price: ev.Price})

		// Cancellation: closed with nothing filled.
		case ev.Status == StatusClosed && ev.FilledSize == 0:
			if !r.book.Known(ev.ID) {
				if r.book.Seen(ev.ID) {
					// Replay of a terminal event for an order we already
					// removed; the fence absorbed the original.
					continue
				}
				return facts, fmt.Errorf("order %s: %w", ev.ID, ErrUnexpectedCancel)
			}
			r.book.Remove(ev.ID)
			r.book.Advance(ev.ID, ev.MsgTime)
			facts = append(facts, Fact{Kind: FactOrderCancelled, OrderID: ev.ID, Instrument: ev.Instrument, Side: ev.Side})

		// Complete fill.
		case ev.Status == StatusClosed && ev.FilledSize == ev.Size && ev.Size > 0:
			price := ev.AvgFillPrice
			if price <= 0 {
				price = ev.Price
			}
			kind := r.kindOf(ev.Instrument)
			r.ledger.ApplyFill(ev.Instrument, kind, ev.Side, ev.FilledSize, price)
			r.book.Remove(ev.ID)
			r.book.Advance(ev.ID, ev.MsgTime)
			facts = append(facts, Fact{Kind: FactLegFilled, OrderID: ev.ID, Instrument: ev.Instrument, Side: ev.Side, Size: ev.FilledSize, Price: price})
			mtxFills.WithLabelValues(string(kind)).Inc()

			if kind == KindPerp && r.spotLags() {
				facts = append(facts, Fact{Kind: FactHedgeNeeded, Instrument: r.spot, Side: ev.Side.Opposite(), Size: ev.FilledSize})
			}

		default:
			// Partial fills and unknown shapes: remember the message but
			// take no action until a terminal event arrives.
			log.Printf("[RECON] unhandled event shape id=%s status=%s filled=%.8f size=%.8f", ev.ID, ev.Status, ev.FilledSize, ev.Size)
			r.book.Advance(ev.ID, ev.MsgTime)
		}
	}
	return facts, nil
}

// spotLags reports whether the spot leg's fill count trails the perp's,
// i.e. the perp fill that just landed has no equal-and-opposite spot fill.
func (r *Reconciler) spotLags() bool {
	perp, okP := r.ledger.Get(r.perp)
	if !okP {
		return false
	}
	spot, okS := r.ledger.Get(r.spot)
	if !okS {
		return true
	}
	return spot.FillCount < perp.FillCount
}
