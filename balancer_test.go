// FILE: balancer_test.go
package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanExposureInitialEntryFlagsBothLegs(t *testing.T) {
	ledger := NewLedger()
	book := NewOrderBook()

	plan := PlanExposure(ledger, book, testSpot, testPerp, DirPerpRich)
	require.Len(t, plan.Legs, 2)
	assert.False(t, plan.Wait)

	bySide := map[string]OrderSide{}
	for _, leg := range plan.Legs {
		bySide[leg.Instrument] = leg.Side
	}
	assert.Equal(t, SideBuy, bySide[testSpot], "buy the cheap spot leg")
	assert.Equal(t, SideSell, bySide[testPerp], "short the rich perp leg")
}

func TestPlanExposureInitialEntrySpotRich(t *testing.T) {
	plan := PlanExposure(NewLedger(), NewOrderBook(), testSpot, testPerp, DirSpotRich)
	require.Len(t, plan.Legs, 2)
	bySide := map[string]OrderSide{}
	for _, leg := range plan.Legs {
		bySide[leg.Instrument] = leg.Side
	}
	assert.Equal(t, SideSell, bySide[testSpot])
	assert.Equal(t, SideBuy, bySide[testPerp])
}

func TestPlanExposureMissingLegGetsOppositeSide(t *testing.T) {
	ledger := NewLedger()
	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.001, 20200)

	plan := PlanExposure(ledger, NewOrderBook(), testSpot, testPerp, DirPerpRich)
	require.Len(t, plan.Legs, 1)
	assert.Equal(t, testSpot, plan.Legs[0].Instrument)
	assert.Equal(t, SideBuy, plan.Legs[0].Side)
}

func TestPlanExposureLaggingLegFlagged(t *testing.T) {
	ledger := NewLedger()
	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.001, 20200)
	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.001, 20210)
	ledger.ApplyFill(testSpot, KindSpot, SideBuy, 0.001, 19998)

	plan := PlanExposure(ledger, NewOrderBook(), testSpot, testPerp, DirPerpRich)
	require.Len(t, plan.Legs, 1)
	assert.Equal(t, testSpot, plan.Legs[0].Instrument)
	assert.Equal(t, SideBuy, plan.Legs[0].Side, "keep accumulating the position's own side")
}

func TestPlanExposureBalancedNeedsNothing(t *testing.T) {
	ledger := NewLedger()
	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.001, 20200)
	ledger.ApplyFill(testSpot, KindSpot, SideBuy, 0.001, 19998)

	plan := PlanExposure(ledger, NewOrderBook(), testSpot, testPerp, DirPerpRich)
	assert.Empty(t, plan.Legs)
	assert.False(t, plan.Wait)
}

func TestPlanExposureRestingOrderIsNotDoubleQueued(t *testing.T) {
	ledger := NewLedger()
	ledger.ApplyFill(testPerp, KindPerp, SideSell, 0.001, 20200)

	book := NewOrderBook()
	book.Track(Order{ID: "o1", Instrument: testSpot, Side: SideBuy, Size: 0.001, Status: StatusNew})

	plan := PlanExposure(ledger, book, testSpot, testPerp, DirPerpRich)
	assert.Empty(t, plan.Legs, "spot already covered by a resting order")
	assert.True(t, plan.Wait)
}

func TestPlanExposureBothRestingMeansWait(t *testing.T) {
	book := NewOrderBook()
	book.Track(Order{ID: "o1", Instrument: testSpot, Side: SideBuy, Status: StatusNew})
	book.Track(Order{ID: "o2", Instrument: testPerp, Side: SideSell, Status: StatusNew})

	plan := PlanExposure(NewLedger(), book, testSpot, testPerp, DirPerpRich)
	assert.Empty(t, plan.Legs)
	assert.True(t, plan.Wait)
}
