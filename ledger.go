// FILE: ledger.go
// Package main – Position ledger: authoritative instrument → position map.
//
// Pure data + update rules, no I/O. Created on first fill, grown by
// same-side fills (size-weighted average entry price, fillCount += 1),
// shrunk by opposite-side fills, and deleted when size returns to zero.
// The ledger is owned by the single control loop; no locking here.

package main

import "sort"

// sizeEpsilon absorbs float64 noise when a reduction brings a position
// back to exactly zero (e.g. three reduce steps of size/3).
const sizeEpsilon = 1e-9

// Ledger maps instrument name to its held position.
type Ledger struct {
	positions map[string]*Position
}

func NewLedger() *Ledger {
	return &Ledger{positions: make(map[string]*Position)}
}

// Get returns a copy of the position for instrument, if one exists.
// Absence is an expected condition ("leg needs entry/exit"), never an error.
func (l *Ledger) Get(instrument string) (Position, bool) {
	p, ok := l.positions[instrument]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Count returns the number of open positions.
func (l *Ledger) Count() int { return len(l.positions) }

// All returns copies of every open position, sorted by instrument for
// deterministic reporting.
func (l *Ledger) All() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// TotalFillCount sums fill counts across all open positions.
func (l *Ledger) TotalFillCount() int {
	n := 0
	for _, p := range l.positions {
		n += p.FillCount
	}
	return n
}

// TotalNotional sums Size×AvgEntryPrice across all open positions.
func (l *Ledger) TotalNotional() float64 {
	v := 0.0
	for _, p := range l.positions {
		v += p.Notional()
	}
	return v
}

// ApplyFill folds one complete fill into the ledger.
//
// Rules:
//   - no record        → create {size, side, price, fillCount 1}
//   - same-side fill   → size grows, entry price is re-averaged by size,
//     fillCount += 1
//   - opposite side    → size shrinks (fillCount -= 1); the record is
//     deleted once size reaches zero
//
// The incremental weighted average is associative, so N equal-size fills
// at p1…pN land on mean(p1…pN) regardless of arrival order.
func (l *Ledger) ApplyFill(instrument string, kind InstrumentKind, side OrderSide, size, price float64) {
	if size <= 0 {
		return
	}
	p, ok := l.positions[instrument]
	if !ok {
		l.positions[instrument] = &Position{
			Instrument:    instrument,
			Kind:          kind,
			Side:          side,
			Size:          size,
			AvgEntryPrice: price,
			FillCount:     1,
		}
		return
	}
	if side == p.Side {
		total := p.Size + size
		p.AvgEntryPrice = (p.AvgEntryPrice*p.Size + price*size) / total
		p.Size = total
		p.FillCount++
		return
	}
	p.Size -= size
	if p.FillCount > 1 {
		p.FillCount--
	}
	if p.Size <= sizeEpsilon {
		delete(l.positions, instrument)
	}
}
