// FILE: model.go
// Package main – Core domain types shared across the engine.
//
// What's here:
//   • OrderSide / OrderStatus / InstrumentKind enums
//   • Order       – last-known state of a resting exchange order
//   • Position    – a held leg (size, side, weighted entry, fill count)
//   • OrderEvent  – one order-lifecycle message from the private feed
//   • Orderbook / Ticker / MarketSnapshot – point-in-time market data
//
// Orders and positions are mutated only by the reconciler (reconcile.go);
// everything downstream of it reads these structs by value or via the
// Ledger/OrderBook accessors.

package main

import "github.com/shopspring/decimal"

// OrderSide is the side of a trade.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus are the two lifecycle states the engine distinguishes.
// Everything else ("open", partial fills) is inferred from filled size.
type OrderStatus string

const (
	StatusNew    OrderStatus = "new"
	StatusClosed OrderStatus = "closed"
)

// InstrumentKind classifies a leg as spot or perpetual future.
type InstrumentKind string

const (
	KindSpot InstrumentKind = "spot"
	KindPerp InstrumentKind = "perp"
)

// Order is the engine's last-known state of one exchange order.
type Order struct {
	ID         string
	Instrument string
	Side       OrderSide
	Size       float64
	FilledSize float64
	Price      float64
	Status     OrderStatus
	MsgTime    int64 // exchange message time, ms, monotonic per order
	ClientTag  string
}

// Position is one held leg. Size is always > 0 while the record exists.
type Position struct {
	Instrument    string
	Kind          InstrumentKind
	Side          OrderSide
	Size          float64
	AvgEntryPrice float64
	FillCount     int
}

// Notional returns the position's notional in quote terms at its entry.
func (p Position) Notional() float64 {
	return p.Size * p.AvgEntryPrice
}

// ReduceStep is the per-order size used during unwinding and risk
// neutralization: one fill's worth of the position.
func (p Position) ReduceStep() float64 {
	if p.FillCount <= 0 {
		return p.Size
	}
	return p.Size / float64(p.FillCount)
}

// OrderEvent is one order-lifecycle message as delivered by the private
// feed, keyed upstream by order id. MsgTime drives the replay fence.
type OrderEvent struct {
	ID           string
	Instrument   string
	Side         OrderSide
	Size         float64
	FilledSize   float64
	AvgFillPrice float64
	Price        float64
	Status       OrderStatus
	MsgTime      int64
	ClientTag    string
}

// BookLevel is one price level of an orderbook snapshot.
type BookLevel struct {
	Price float64
	Size  float64
}

// Orderbook is a point-in-time depth snapshot. Asks ascend, bids descend.
type Orderbook struct {
	Asks []BookLevel
	Bids []BookLevel
}

// BestAsk returns the lowest ask, or 0 if the book side is empty.
func (ob Orderbook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// BestBid returns the highest bid, or 0 if the book side is empty.
func (ob Orderbook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// Ticker carries the last traded price of one instrument.
type Ticker struct {
	Last float64
}

// MarketSnapshot is both legs' market data taken atomically per tick.
type MarketSnapshot struct {
	SpotBook Orderbook
	PerpBook Orderbook
	SpotLast float64
	PerpLast float64
}

// roundDownToIncrement floors size to a multiple of the instrument's
// minimum order increment. Exchanges reject sizes off the step grid, so
// the rounding must be exact; decimal avoids float64 ulp surprises like
// 0.0003/0.0001 -> 2.9999....
func roundDownToIncrement(size, increment float64) float64 {
	if increment <= 0 {
		return size
	}
	s := decimal.NewFromFloat(size)
	step := decimal.NewFromFloat(increment)
	// Round the quotient at 12 places before flooring so float64 noise
	// (9.999999999999998 for a true 10) cannot drop a whole step.
	f, _ := s.DivRound(step, 12).Floor().Mul(step).Float64()
	return f
}
