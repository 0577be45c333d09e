// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// This file defines the Config struct (all the knobs the engine uses) and
// a helper to populate it from environment variables. The .env file is
// read by loadBotEnv() (see env.go), so you can tune behavior without
// exports.
//
// Typical flow (see main.go):
//   loadBotEnv()
//   cfg := loadConfigFromEnv()

package main

// Config holds all runtime knobs for trading and operations.
type Config struct {
	// Instrument pair
	SpotMarket   string  // e.g. "BTC/USD"
	PerpMarket   string  // e.g. "BTC-PERP"
	BaseAsset    string  // margin-borrowed spot asset, e.g. "BTC"
	MinOrderSize float64 // instrument minimum size increment

	// Sizing & thresholds
	AccountValueUSD   float64 // target aggregate notional across both legs
	BasisThresholdPct float64 // entry threshold (%); halved once positioned
	ExitFundingAPRPct float64 // unwind when net carry APR (%) falls below -this
	OrdersPerSide     int     // fills per leg at full size

	// Risk monitor
	StopCutoffPct float64 // stop offset (%) from the opposing leg's entry
	RepriceLevels int     // stale-quote drift allowance, in book levels

	// Loop control
	TickIntervalSec     int // cadence of the control loop
	FundingRefreshSec   int // funding/borrow cadence (wall-clock multiple)
	FeedReadyTimeoutSec int // bounded startup wait for live market data

	// Ops
	DryRun bool // run against the in-memory paper exchange
	Port   int  // /metrics + /healthz listen port
}

// loadConfigFromEnv reads the process env (already hydrated by
// loadBotEnv()) and returns a Config with sane defaults if keys are
// missing.
func loadConfigFromEnv() Config {
	return Config{
		SpotMarket:   getEnv("SPOT_MARKET", "BTC/USD"),
		PerpMarket:   getEnv("PERP_MARKET", "BTC-PERP"),
		BaseAsset:    getEnv("BASE_ASSET", "BTC"),
		MinOrderSize: getEnvFloat("MIN_ORDER_SIZE", 0.0001),

		AccountValueUSD:   getEnvFloat("ACCOUNT_VALUE_USD", 200.0),
		BasisThresholdPct: getEnvFloat("BASIS_THRESHOLD_PCT", 1.0),
		ExitFundingAPRPct: getEnvFloat("EXIT_FUNDING_APR_PCT", 25.0),
		OrdersPerSide:     getEnvInt("ORDERS_PER_SIDE", 5),

		StopCutoffPct: getEnvFloat("STOP_CUTOFF_PCT", 0.5),
		RepriceLevels: getEnvInt("REPRICE_LEVELS", 3),

		TickIntervalSec:     getEnvInt("TICK_INTERVAL_SEC", 5),
		FundingRefreshSec:   getEnvInt("FUNDING_REFRESH_SEC", 300),
		FeedReadyTimeoutSec: getEnvInt("FEED_READY_TIMEOUT_SEC", 30),

		DryRun: getEnvBool("DRY_RUN", true),
		Port:   getEnvInt("PORT", 8080),
	}
}
