// FILE: book.go
// Package main – Local order book: order id → last-known order state.
//
// Tracks the engine's own resting orders and the per-id timestamp fence
// that guards against re-delivered / out-of-order lifecycle events. The
// fence outlives the order record itself: a replayed "closed" event for an
// order we already removed must land on the fence, not on the unknown-id
// path (which is a fatal fault for cancellations).

package main

import "sort"

// OrderBook is the authoritative view of the engine's resting orders.
type OrderBook struct {
	orders map[string]*Order
	fence  map[string]int64 // last applied MsgTime per order id
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		orders: make(map[string]*Order),
		fence:  make(map[string]int64),
	}
}

// ShouldApply reports whether an event for id at msgTime passes the fence:
// strictly newer than the last applied message, or a first-seen id.
func (b *OrderBook) ShouldApply(id string, msgTime int64) bool {
	last, seen := b.fence[id]
	if !seen {
		return true
	}
	return msgTime > last
}

// Advance records msgTime as the last applied message for id.
func (b *OrderBook) Advance(id string, msgTime int64) {
	b.fence[id] = msgTime
}

// Known reports whether id currently has a tracked order record.
func (b *OrderBook) Known(id string) bool {
	_, ok := b.orders[id]
	return ok
}

// Seen reports whether id has ever passed through the fence, tracked or not.
func (b *OrderBook) Seen(id string) bool {
	_, ok := b.fence[id]
	return ok
}

// Track inserts or overwrites the record for o.ID.
func (b *OrderBook) Track(o Order) {
	cp := o
	b.orders[o.ID] = &cp
}

// Remove deletes the order record. The fence entry is kept so replays of
// the terminal event stay deduplicated.
func (b *OrderBook) Remove(id string) {
	delete(b.orders, id)
}

// Get returns a copy of the tracked order, if any.
func (b *OrderBook) Get(id string) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Len returns the number of resting orders.
func (b *OrderBook) Len() int { return len(b.orders) }

// HasResting reports whether any order rests on instrument. This is the
// "await fill" gate: no new order is placed on a leg that already has one.
func (b *OrderBook) HasResting(instrument string) bool {
	for _, o := range b.orders {
		if o.Instrument == instrument {
			return true
		}
	}
	return false
}

// All returns copies of every resting order, sorted by id for
// deterministic iteration (risk scans, reporting).
func (b *OrderBook) All() []Order {
	out := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
