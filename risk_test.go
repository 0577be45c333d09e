// FILE: risk_test.go
package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRisk(cfg Config) (*RiskMonitor, *Ledger, *OrderBook) {
	ledger := NewLedger()
	book := NewOrderBook()
	return NewRiskMonitor(cfg, ledger, book), ledger, book
}

func TestRiskStopTriggersNeutralizingTrade(t *testing.T) {
	cfg := testConfig()
	risk, ledger, book := newTestRisk(cfg)

	// Short perp filled at 20000; the hedge buy on spot has been repriced
	// up past entry × (1 + 0.5%) = 20100.
	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.002, 20000)
	p, _ := ledger.Get(testPerp)
	require.Equal(t, 1, p.FillCount)
	book.Track(Order{ID: "h1", Instrument: testSpot, Side: SideBuy, Price: 20150, Size: 0.002, Status: StatusNew, ClientTag: clientTagHedge})

	cmds := risk.Scan(snapAround(20150, 20000))
	require.Len(t, cmds, 2)

	assert.Equal(t, CmdCancel, cmds[0].Kind)
	assert.Equal(t, "h1", cmds[0].OrderID)

	require.Equal(t, CmdPlace, cmds[1].Kind)
	neutralize := cmds[1].Place
	assert.Equal(t, testPerp, neutralize.Instrument)
	assert.Equal(t, SideBuy, neutralize.Side, "close the exposed short")
	assert.Equal(t, TypeMarket, neutralize.Type)
	assert.True(t, neutralize.ReduceOnly)
	assert.InDelta(t, 0.002, neutralize.Size, 1e-12) // size / fillCount
}

func TestRiskStopSellSideCutoff(t *testing.T) {
	cfg := testConfig()
	risk, ledger, book := newTestRisk(cfg)

	// Long perp at 20000; the spot sell hedge has drifted below
	// entry × (1 − 0.5%) = 19900.
	ledger.ApplyFill(testPerp, KindPerp, SideBuy, 0.001, 20000)
	book.Track(Order{ID: "h2", Instrument: testSpot, Side: SideSell, Price: 19850, Size: 0.001, Status: StatusNew, ClientTag: clientTagHedge})

	cmds := risk.Scan(snapAround(19850, 20000))
	require.Len(t, cmds, 2)
	assert.Equal(t, CmdCancel, cmds[0].Kind)
	assert.Equal(t, SideSell, cmds[1].Place.Side)
	assert.Equal(t, testPerp, cmds[1].Place.Instrument)
}

func TestRiskNoStopWithoutOpposingPosition(t *testing.T) {
	risk, _, book := newTestRisk(testConfig())

	// Nothing filled on the perp leg: there is no exposure to protect,
	// and the order sits at the touch so no reprice either.
	snap := snapAround(20150, 20200)
	book.Track(Order{ID: "o1", Instrument: testSpot, Side: SideBuy, Price: snap.SpotBook.BestBid(), Size: 0.001, Status: StatusNew})

	assert.Empty(t, risk.Scan(snap))
}

func TestRiskRepricesStaleQuote(t *testing.T) {
	cfg := testConfig() // RepriceLevels = 3
	risk, ledger, book := newTestRisk(cfg)

	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.001, 20000)

	snap := snapAround(20000, 20000)
	// The synthetic book steps are 1 bp of 20000 = 2.0; the drift
	// allowance is 3 levels = 6.0. Price the buy 20 below last, still
	// safely under the stop cutoff (20100).
	book.Track(Order{ID: "s1", Instrument: testSpot, Side: SideBuy, Price: 19980, Size: 0.001, Status: StatusNew, ClientTag: clientTagEntry})

	cmds := risk.Scan(snap)
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdModify, cmds[0].Kind)
	assert.Equal(t, "s1", cmds[0].OrderID)
	assert.InDelta(t, snap.SpotBook.BestBid(), cmds[0].Price, 1e-9)
}

func TestRiskFreshQuoteLeftAlone(t *testing.T) {
	risk, ledger, book := newTestRisk(testConfig())
	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.001, 20000)

	snap := snapAround(20000, 20000)
	book.Track(Order{ID: "s1", Instrument: testSpot, Side: SideBuy, Price: snap.SpotBook.BestBid(), Size: 0.001, Status: StatusNew})

	assert.Empty(t, risk.Scan(snap))
}

func TestRiskStopWinsOverReprice(t *testing.T) {
	cfg := testConfig()
	risk, ledger, book := newTestRisk(cfg)

	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.001, 20000)
	// Price is both stale (far from last) and beyond the stop cutoff;
	// only the stop pair may come out.
	book.Track(Order{ID: "s1", Instrument: testSpot, Side: SideBuy, Price: 20200, Size: 0.001, Status: StatusNew})

	cmds := risk.Scan(snapAround(20000, 20000))
	require.Len(t, cmds, 2)
	assert.Equal(t, CmdCancel, cmds[0].Kind)
	assert.Equal(t, CmdPlace, cmds[1].Kind)
	assert.Equal(t, TypeMarket, cmds[1].Place.Type)
}

func TestMeanTickStep(t *testing.T) {
	book := Orderbook{
		Asks: []BookLevel{{Price: 100}, {Price: 101}, {Price: 103}},
		Bids: []BookLevel{{Price: 99}, {Price: 97}},
	}
	// Gaps: 1, 2 on asks; 2 on bids → mean 5/3.
	assert.InDelta(t, 5.0/3.0, meanTickStep(book), 1e-12)
	assert.Equal(t, 0.0, meanTickStep(Orderbook{}))
}
