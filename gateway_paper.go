// FILE: gateway_paper.go
// Package main – In-memory paper exchange (no external dependencies).
//
// Simulates the whole collaborator surface — Gateway, OrderEvents,
// MarketData, FundingSource, Account — against a settable price per
// market. Used for dry runs and the loop tests. Orders placed here never
// touch a real exchange; lifecycle events are queued and drained exactly
// like the live private feed, so the engine code path is identical.
//
// Fill model:
//   • market orders fill immediately at the touch
//   • limit orders rest until SetPrice moves the market through them
//
// The mutex exists because SetPrice may be driven from a test goroutine
// while the control loop drains events.

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// paperDepth and paperTickPct shape the synthetic book built around the
// last price: 5 levels per side, 1 bp apart.
const (
	paperDepth   = 5
	paperTickPct = 0.0001
)

// PaperExchange is the in-memory exchange simulation.
type PaperExchange struct {
	mu      sync.Mutex
	last    map[string]float64
	resting map[string]*Order
	queue   map[string]OrderEvent
	funding float64
	borrow  float64
	msgTime int64 // strictly increasing message stamp
}

func NewPaperExchange() *PaperExchange {
	return &PaperExchange{
		last:    make(map[string]float64),
		resting: make(map[string]*Order),
		queue:   make(map[string]OrderEvent),
	}
}

func (p *PaperExchange) Name() string { return "paper" }

// SetPrice moves a market's last price, fills any resting limit orders
// the move crossed, and rebuilds the synthetic book implicitly.
func (p *PaperExchange) SetPrice(market string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last[market] = price
	for id, o := range p.resting {
		if o.Instrument != market {
			continue
		}
		crossed := (o.Side == SideBuy && price <= o.Price) ||
			(o.Side == SideSell && price >= o.Price)
		if !crossed {
			continue
		}
		p.enqueueLocked(OrderEvent{
			ID:           id,
			Instrument:   o.Instrument,
			Side:         o.Side,
			Size:         o.Size,
			FilledSize:   o.Size,
			AvgFillPrice: o.Price,
			Price:        o.Price,
			Status:       StatusClosed,
			ClientTag:    o.ClientTag,
		})
		delete(p.resting, id)
	}
}

// SetRates sets the funding and borrow rates returned to the signal.
func (p *PaperExchange) SetRates(funding, borrow float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.funding = funding
	p.borrow = borrow
}

func (p *PaperExchange) enqueueLocked(ev OrderEvent) {
	p.msgTime++
	ev.MsgTime = p.msgTime
	p.queue[ev.ID] = ev
}

// InjectEvent pushes a raw lifecycle event into the drain queue. Tests
// use this to simulate re-delivery and out-of-band cancellations.
func (p *PaperExchange) InjectEvent(ev OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.MsgTime == 0 {
		p.msgTime++
		ev.MsgTime = p.msgTime
	}
	p.queue[ev.ID] = ev
}

// ---- OrderEvents ----

// OrderUpdates drains and returns all queued lifecycle events.
func (p *PaperExchange) OrderUpdates() map[string]OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.queue
	p.queue = make(map[string]OrderEvent)
	return out
}

// ---- MarketData ----

func (p *PaperExchange) GetOrderbook(ctx context.Context, instrument string) (Orderbook, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.last[instrument]
	if !ok || last <= 0 {
		return Orderbook{}, fmt.Errorf("paper: no price for %s", instrument)
	}
	tick := last * paperTickPct
	ob := Orderbook{}
	for i := 1; i <= paperDepth; i++ {
		ob.Asks = append(ob.Asks, BookLevel{Price: last + float64(i)*tick, Size: 10})
		ob.Bids = append(ob.Bids, BookLevel{Price: last - float64(i)*tick, Size: 10})
	}
	return ob, nil
}

func (p *PaperExchange) GetTicker(ctx context.Context, instrument string) (Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.last[instrument]
	if !ok || last <= 0 {
		return Ticker{}, fmt.Errorf("paper: no price for %s", instrument)
	}
	return Ticker{Last: last}, nil
}

// ---- Gateway ----

func (p *PaperExchange) PlaceOrder(ctx context.Context, req OrderRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.last[req.Instrument]
	if last <= 0 {
		return fmt.Errorf("paper: no price for %s", req.Instrument)
	}
	id := uuid.New().String()

	if req.Type == TypeMarket {
		p.enqueueLocked(OrderEvent{
			ID:           id,
			Instrument:   req.Instrument,
			Side:         req.Side,
			Size:         req.Size,
			FilledSize:   req.Size,
			AvgFillPrice: last,
			Price:        last,
			Status:       StatusClosed,
			ClientTag:    req.ClientTag,
		})
		return nil
	}

	o := &Order{
		ID:         id,
		Instrument: req.Instrument,
		Side:       req.Side,
		Size:       req.Size,
		Price:      req.Price,
		Status:     StatusNew,
		ClientTag:  req.ClientTag,
	}
	p.resting[id] = o
	p.enqueueLocked(OrderEvent{
		ID:         id,
		Instrument: req.Instrument,
		Side:       req.Side,
		Size:       req.Size,
		Price:      req.Price,
		Status:     StatusNew,
		ClientTag:  req.ClientTag,
	})
	return nil
}

func (p *PaperExchange) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.resting[orderID]
	if !ok {
		return fmt.Errorf("paper: unknown order %s", orderID)
	}
	delete(p.resting, orderID)
	p.enqueueLocked(OrderEvent{
		ID:         orderID,
		Instrument: o.Instrument,
		Side:       o.Side,
		Size:       o.Size,
		Status:     StatusClosed,
		ClientTag:  o.ClientTag,
	})
	return nil
}

func (p *PaperExchange) ModifyOrder(ctx context.Context, orderID string, newPrice float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.resting[orderID]
	if !ok {
		return fmt.Errorf("paper: unknown order %s", orderID)
	}
	o.Price = newPrice
	p.enqueueLocked(OrderEvent{
		ID:         orderID,
		Instrument: o.Instrument,
		Side:       o.Side,
		Size:       o.Size,
		Price:      newPrice,
		Status:     StatusNew,
		ClientTag:  o.ClientTag,
	})
	return nil
}

// ---- FundingSource ----

func (p *PaperExchange) FundingRate(ctx context.Context, perp string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.funding, nil
}

func (p *PaperExchange) BorrowRate(ctx context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.borrow, nil
}

// ---- Account ----

// Markets lists every market a price has been set for.
func (p *PaperExchange) Markets(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.last))
	for m := range p.last {
		out = append(out, m)
	}
	return out, nil
}

func (p *PaperExchange) OpenPositions(ctx context.Context) (int, error) { return 0, nil }

func (p *PaperExchange) OpenOrders(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resting), nil
}

// RestingCount reports simulated resting orders on one market (tests).
func (p *PaperExchange) RestingCount(market string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, o := range p.resting {
		if o.Instrument == market {
			n++
		}
	}
	return n
}
