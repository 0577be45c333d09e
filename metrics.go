// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the primary metrics the engine updates during operation:
//   • bot_basis_pct                 – Current basis (gauge, signed %)
//   • bot_funding_rate_pct          – Cached perp funding rate (gauge)
//   • bot_borrow_rate_pct           – Cached spot borrow estimate (gauge)
//   • bot_phase{phase}              – Active phase indicator (0/1 series)
//   • bot_open_positions            – Open position count (gauge)
//   • bot_resting_orders            – Resting order count (gauge)
//   • bot_commands_total{kind}      – Gateway commands issued (place|cancel|modify)
//   • bot_fills_total{leg}          – Complete fills applied (spot|perp)
//   • bot_stop_triggers_total       – Risk stops fired
//   • bot_reprices_total            – Stale-quote reprices issued
//   • bot_fatal_faults_total{kind}  – Fatal faults surfaced
//
// These are registered in init() and served by the HTTP handler started in
// main.go at /metrics (Prometheus text exposition format).

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxBasis = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_basis_pct",
			Help: "Current basis between perp and spot, signed percent",
		},
	)

	mtxFunding = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_funding_rate_pct",
			Help: "Cached perpetual funding rate, percent",
		},
	)

	mtxBorrow = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_borrow_rate_pct",
			Help: "Cached spot margin borrow estimate, percent",
		},
	)

	// bot_phase exposes one labeled series per phase flipped between 0/1
	// to keep dashboards simple.
	mtxPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_phase",
			Help: "Engine phase indicator (one labeled series per phase).",
		},
		[]string{"phase"},
	)

	mtxPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Number of open positions",
		},
	)

	mtxResting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_resting_orders",
			Help: "Number of resting orders tracked locally",
		},
	)

	mtxCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Gateway commands issued",
		},
		[]string{"kind"}, // place|cancel|modify
	)

	mtxFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_fills_total",
			Help: "Complete fills applied to the ledger",
		},
		[]string{"leg"}, // spot|perp
	)

	mtxStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_stop_triggers_total",
			Help: "Risk stops fired (cancel + neutralizing market order)",
		},
	)

	mtxReprices = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_reprices_total",
			Help: "Stale-quote reprices issued",
		},
	)

	mtxFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_fatal_faults_total",
			Help: "Fatal faults surfaced to the operator",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(mtxBasis, mtxFunding, mtxBorrow)
	prometheus.MustRegister(mtxPhase, mtxPositions, mtxResting)
	prometheus.MustRegister(mtxCommands, mtxFills)
	prometheus.MustRegister(mtxStops, mtxReprices, mtxFaults)
}

// IncFault bumps the fatal-fault counter for kind.
func IncFault(kind string) { mtxFaults.WithLabelValues(kind).Inc() }
