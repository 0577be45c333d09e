// FILE: signal_test.go
package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapAround(spotLast, perpLast float64) MarketSnapshot {
	mk := func(last float64) Orderbook {
		tick := last * 0.0001
		return Orderbook{
			Asks: []BookLevel{{Price: last + tick, Size: 1}, {Price: last + 2*tick, Size: 1}},
			Bids: []BookLevel{{Price: last - tick, Size: 1}, {Price: last - 2*tick, Size: 1}},
		}
	}
	return MarketSnapshot{
		SpotBook: mk(spotLast),
		PerpBook: mk(perpLast),
		SpotLast: spotLast,
		PerpLast: perpLast,
	}
}

func TestComputeBasisPerpRich(t *testing.T) {
	snap := snapAround(20000, 20200)
	basis, dir := ComputeBasis(snap)
	assert.Equal(t, DirPerpRich, dir)

	perpAsk := snap.PerpBook.BestAsk()
	spotBid := snap.SpotBook.BestBid()
	want := (perpAsk - spotBid) / ((perpAsk + spotBid) / 2) * 100
	assert.InDelta(t, want, basis, 1e-12)
	assert.Greater(t, basis, 0.0)
}

func TestComputeBasisSpotRich(t *testing.T) {
	snap := snapAround(20200, 20000)
	basis, dir := ComputeBasis(snap)
	assert.Equal(t, DirSpotRich, dir)

	spotAsk := snap.SpotBook.BestAsk()
	perpBid := snap.PerpBook.BestBid()
	want := (spotAsk - perpBid) / ((spotAsk + perpBid) / 2) * 100
	assert.InDelta(t, want, basis, 1e-12)
}

func TestComputeBasisPricesAgainstWorseSide(t *testing.T) {
	// Perp rich: the formula must use the perp ask and the spot bid,
	// which makes the conservative number wider than midpoint distance.
	snap := snapAround(20000, 20200)
	basis, _ := ComputeBasis(snap)
	mids := (snap.PerpLast - snap.SpotLast) / ((snap.PerpLast + snap.SpotLast) / 2) * 100
	assert.Greater(t, basis, mids)
}

func TestComputeBasisEmptyBook(t *testing.T) {
	basis, _ := ComputeBasis(MarketSnapshot{SpotLast: 100, PerpLast: 101})
	assert.Equal(t, 0.0, basis)
}

func TestSignalRefreshCadence(t *testing.T) {
	paper := NewPaperExchange()
	paper.SetRates(0.0001, 0.00002)

	now := time.Unix(1000, 0) // not a multiple of 300
	clock := func() time.Time { return now }
	sig := NewSignal(paper, testPerp, "BTC", 300, clock)

	// First refresh always pulls (startup), regardless of the clock.
	require.NoError(t, sig.Refresh(context.Background()))
	assert.InDelta(t, 0.01, sig.FundingPct, 1e-12)
	assert.InDelta(t, 0.002, sig.BorrowPct, 1e-12)

	// Off-cadence ticks keep the cached values.
	paper.SetRates(0.0005, 0.0001)
	require.NoError(t, sig.Refresh(context.Background()))
	assert.InDelta(t, 0.01, sig.FundingPct, 1e-12)

	// On the 300 s boundary the cache is replaced.
	now = time.Unix(1200, 0) // 1200 % 300 == 0
	require.NoError(t, sig.Refresh(context.Background()))
	assert.InDelta(t, 0.05, sig.FundingPct, 1e-12)
	assert.InDelta(t, 0.01, sig.BorrowPct, 1e-12)
}

func TestSignalFundingAPR(t *testing.T) {
	sig := NewSignal(NewPaperExchange(), testPerp, "BTC", 300, time.Now)
	sig.FundingPct = 0.001
	assert.InDelta(t, 0.001*24*365, sig.FundingAPRPct(), 1e-9)
}
