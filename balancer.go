// FILE: balancer.go
// Package main – Exposure balancer: which leg needs an order next.
//
// The two legs' fill counts are the exposure invariant: they must never
// drift apart without a correcting order already scheduled. PlanExposure
// looks only at the ledger and the local order book and answers "spot,
// perp, both, or wait" — sizing and pricing are the state machine's job.

package main

// LegPlan names one leg that needs a new order and the side to trade it.
type LegPlan struct {
	Instrument string
	Side       OrderSide
}

// BalancePlan is the balancer's verdict for one tick.
type BalancePlan struct {
	Wait bool // both legs already have resting orders
	Legs []LegPlan
}

// PlanExposure decides which leg(s) require a new order to re-equalize
// fill counts:
//
//   - both positions exist, counts differ → the lower-count leg, same side
//     as its own position (keep accumulating)
//   - exactly one position exists → the missing leg, opposite side
//   - neither exists → both legs, initial entry sides from dir
//
// A leg that already has a resting order is never double-queued; if both
// legs have one, the plan is Wait.
func PlanExposure(ledger *Ledger, book *OrderBook, spot, perp string, dir BasisDirection) BalancePlan {
	spotPos, hasSpot := ledger.Get(spot)
	perpPos, hasPerp := ledger.Get(perp)

	var legs []LegPlan
	switch {
	case hasSpot && hasPerp:
		if spotPos.FillCount < perpPos.FillCount {
			legs = append(legs, LegPlan{Instrument: spot, Side: spotPos.Side})
		} else if perpPos.FillCount < spotPos.FillCount {
			legs = append(legs, LegPlan{Instrument: perp, Side: perpPos.Side})
		}
	case hasSpot:
		legs = append(legs, LegPlan{Instrument: perp, Side: spotPos.Side.Opposite()})
	case hasPerp:
		legs = append(legs, LegPlan{Instrument: spot, Side: perpPos.Side.Opposite()})
	default:
		spotSide, perpSide := entrySides(dir)
		legs = append(legs,
			LegPlan{Instrument: spot, Side: spotSide},
			LegPlan{Instrument: perp, Side: perpSide},
		)
	}

	out := BalancePlan{}
	covered := 0
	for _, leg := range legs {
		if book.HasResting(leg.Instrument) {
			covered++
			continue
		}
		out.Legs = append(out.Legs, leg)
	}
	if len(out.Legs) == 0 && (covered > 0 || book.HasResting(spot) && book.HasResting(perp)) {
		out.Wait = true
	}
	return out
}

// entrySides maps the basis direction to initial entry sides: short the
// richer leg, long the cheaper one.
func entrySides(dir BasisDirection) (spotSide, perpSide OrderSide) {
	if dir == DirPerpRich {
		return SideBuy, SideSell
	}
	return SideSell, SideBuy
}
