// FILE: signal.go
// Package main – Basis & funding signal.
//
// ComputeBasis is a pure function of the per-tick market snapshot. The
// basis is quoted against the worse side of each book (cross the spread on
// both legs) rather than midpoints, so it is a conservative estimate of
// the gap actually captured at entry:
//
//	perp rich: (perpAsk − spotBid) / mid × 100
//	spot rich: (spotAsk − perpBid) / mid × 100
//
// Funding and borrow rates refresh only when the wall-clock second is an
// exact multiple of the refresh cadence (300 s); every other tick reuses
// the cached values. The clock is injected so tests can drive the cadence.

package main

import (
	"context"
	"fmt"
	"time"
)

// BasisDirection says which leg trades richer.
type BasisDirection int

const (
	DirPerpRich BasisDirection = iota // perp above spot: short perp, buy spot
	DirSpotRich                       // spot above perp: long perp, sell spot
)

// ComputeBasis returns the signed basis percentage and its direction.
// Direction follows the last trade prices; the formula prices against the
// ask of the richer leg and the bid of the cheaper one.
func ComputeBasis(snap MarketSnapshot) (float64, BasisDirection) {
	if snap.PerpLast > snap.SpotLast {
		ask, bid := snap.PerpBook.BestAsk(), snap.SpotBook.BestBid()
		if ask <= 0 || bid <= 0 {
			return 0, DirPerpRich
		}
		return (ask - bid) / ((ask + bid) / 2) * 100, DirPerpRich
	}
	ask, bid := snap.SpotBook.BestAsk(), snap.PerpBook.BestBid()
	if ask <= 0 || bid <= 0 {
		return 0, DirSpotRich
	}
	return (ask - bid) / ((ask + bid) / 2) * 100, DirSpotRich
}

// Signal caches funding/borrow rates and refreshes them on the wall-clock
// cadence, independent of the tick rate.
type Signal struct {
	funding   FundingSource
	perp      string
	baseAsset string
	cadence   int64            // seconds; refresh when now.Unix()%cadence == 0
	now       func() time.Time // injected clock

	FundingPct float64 // perp funding rate, % per funding period
	BorrowPct  float64 // spot margin borrow estimate, %
	refreshed  bool
}

func NewSignal(funding FundingSource, perp, baseAsset string, cadenceSec int64, now func() time.Time) *Signal {
	if cadenceSec <= 0 {
		cadenceSec = 300
	}
	if now == nil {
		now = time.Now
	}
	return &Signal{funding: funding, perp: perp, baseAsset: baseAsset, cadence: cadenceSec, now: now}
}

// Refresh pulls fresh funding/borrow rates when due. The first call always
// refreshes (startup); later calls refresh only on the cadence boundary.
func (s *Signal) Refresh(ctx context.Context) error {
	if s.refreshed && s.now().Unix()%s.cadence != 0 {
		return nil
	}
	f, err := s.funding.FundingRate(ctx, s.perp)
	if err != nil {
		return fmt.Errorf("funding rate: %w", err)
	}
	b, err := s.funding.BorrowRate(ctx, s.baseAsset)
	if err != nil {
		return fmt.Errorf("borrow rate: %w", err)
	}
	s.FundingPct = f * 100
	s.BorrowPct = b * 100
	s.refreshed = true
	mtxFunding.Set(s.FundingPct)
	mtxBorrow.Set(s.BorrowPct)
	return nil
}

// FundingAPRPct annualizes the cached hourly funding rate.
func (s *Signal) FundingAPRPct() float64 {
	return s.FundingPct * 24 * 365
}

// BorrowAPRPct annualizes the cached hourly borrow estimate.
func (s *Signal) BorrowAPRPct() float64 {
	return s.BorrowPct * 24 * 365
}
