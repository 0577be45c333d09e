// FILE: gateway.go
// Package main – Collaborator interfaces and gateway command types.
//
// The engine never speaks wire protocol. It reads already-parsed books,
// tickers, rates and order events through these interfaces and emits
// abstract commands (place / cancel / modify) back through Gateway. All
// gateway calls are fire-and-forget: resulting state changes are trusted
// only once echoed back through OrderEvents.
//
// Concrete implementations:
//   • gateway_ftx.go + feed_ftx.go  – FTX-style REST + private websocket
//   • gateway_paper.go              – in-memory simulation (dry-run, tests)

package main

import "context"

// OrderType distinguishes limit from market placement.
type OrderType string

const (
	TypeLimit  OrderType = "limit"
	TypeMarket OrderType = "market"
)

// OrderRequest is one abstract placement the engine asks the gateway for.
type OrderRequest struct {
	Instrument string
	Side       OrderSide
	Price      float64 // ignored for market orders
	Size       float64
	Type       OrderType
	ReduceOnly bool
	ClientTag  string // marks synthetic hedge / risk orders
}

// CommandKind enumerates the gateway actions a tick can emit.
type CommandKind string

const (
	CmdPlace  CommandKind = "place"
	CmdCancel CommandKind = "cancel"
	CmdModify CommandKind = "modify"
)

// Command is one ordered gateway action decided by the tick.
type Command struct {
	Kind    CommandKind
	Place   OrderRequest // CmdPlace
	OrderID string       // CmdCancel / CmdModify
	Price   float64      // CmdModify
}

// MarketData supplies point-in-time snapshots; no incremental contract.
type MarketData interface {
	GetOrderbook(ctx context.Context, instrument string) (Orderbook, error)
	GetTicker(ctx context.Context, instrument string) (Ticker, error)
}

// OrderEvents is the private feed drained once per tick; may be empty.
type OrderEvents interface {
	OrderUpdates() map[string]OrderEvent
}

// Gateway executes abstract order commands.
type Gateway interface {
	Name() string
	PlaceOrder(ctx context.Context, req OrderRequest) error
	CancelOrder(ctx context.Context, orderID string) error
	ModifyOrder(ctx context.Context, orderID string, newPrice float64) error
}

// FundingSource supplies funding/borrow rates on the signal cadence.
type FundingSource interface {
	FundingRate(ctx context.Context, perp string) (float64, error)
	BorrowRate(ctx context.Context, asset string) (float64, error)
}

// Account exposes the startup-validation view of the exchange account.
type Account interface {
	Markets(ctx context.Context) ([]string, error)
	OpenPositions(ctx context.Context) (int, error)
	OpenOrders(ctx context.Context) (int, error)
}
