// FILE: ledger_test.go
package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerFirstFillCreatesPosition(t *testing.T) {
	l := NewLedger()
	l.ApplyFill("BTC-PERP", KindPerp, SideSell, 0.001, 20000)

	p, ok := l.Get("BTC-PERP")
	require.True(t, ok)
	assert.Equal(t, SideSell, p.Side)
	assert.Equal(t, KindPerp, p.Kind)
	assert.Equal(t, 0.001, p.Size)
	assert.Equal(t, 20000.0, p.AvgEntryPrice)
	assert.Equal(t, 1, p.FillCount)
}

func TestLedgerWeightedAverageEntry(t *testing.T) {
	// Three equal-size same-side fills at 100, 102, 104 must land on the
	// plain mean.
	l := NewLedger()
	l.ApplyFill("BTC/USD", KindSpot, SideBuy, 1, 100)
	l.ApplyFill("BTC/USD", KindSpot, SideBuy, 1, 102)
	l.ApplyFill("BTC/USD", KindSpot, SideBuy, 1, 104)

	p, ok := l.Get("BTC/USD")
	require.True(t, ok)
	assert.InDelta(t, 102.0, p.AvgEntryPrice, 1e-12)
	assert.Equal(t, 3, p.FillCount)
	assert.InDelta(t, 3.0, p.Size, 1e-12)
}

func TestLedgerWeightedAverageOrderIndependent(t *testing.T) {
	prices := []float64{101, 99.5, 100.25, 104, 98}
	want := 0.0
	for _, p := range prices {
		want += p
	}
	want /= float64(len(prices))

	for trial := 0; trial < 10; trial++ {
		shuffled := append([]float64(nil), prices...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		l := NewLedger()
		for _, p := range shuffled {
			l.ApplyFill("BTC/USD", KindSpot, SideBuy, 0.5, p)
		}
		pos, ok := l.Get("BTC/USD")
		require.True(t, ok)
		assert.InDelta(t, want, pos.AvgEntryPrice, 1e-9)
	}
}

func TestLedgerOppositeSideReducesAndDeletes(t *testing.T) {
	l := NewLedger()
	l.ApplyFill("BTC-PERP", KindPerp, SideSell, 0.002, 20000)
	l.ApplyFill("BTC-PERP", KindPerp, SideSell, 0.002, 20100)

	l.ApplyFill("BTC-PERP", KindPerp, SideBuy, 0.002, 20050)
	p, ok := l.Get("BTC-PERP")
	require.True(t, ok)
	assert.InDelta(t, 0.002, p.Size, 1e-12)
	assert.Equal(t, 1, p.FillCount)
	// Entry price is untouched by reductions.
	assert.InDelta(t, 20050.0, p.AvgEntryPrice, 1.0)

	l.ApplyFill("BTC-PERP", KindPerp, SideBuy, 0.002, 20000)
	_, ok = l.Get("BTC-PERP")
	assert.False(t, ok, "position must be deleted at zero size")
	assert.Equal(t, 0, l.Count())
}

func TestLedgerReduceStepSplitsEvenly(t *testing.T) {
	l := NewLedger()
	l.ApplyFill("BTC/USD", KindSpot, SideBuy, 0.001, 100)
	l.ApplyFill("BTC/USD", KindSpot, SideBuy, 0.001, 101)
	l.ApplyFill("BTC/USD", KindSpot, SideBuy, 0.001, 102)

	p, _ := l.Get("BTC/USD")
	assert.InDelta(t, 0.001, p.ReduceStep(), 1e-12)
}

func TestLedgerMissingPositionIsNotAnError(t *testing.T) {
	l := NewLedger()
	_, ok := l.Get("BTC/USD")
	assert.False(t, ok)
	assert.Equal(t, 0, l.TotalFillCount())
	assert.Equal(t, 0.0, l.TotalNotional())
}
