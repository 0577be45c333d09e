// FILE: feed_ftx.go
// Package main – FTX-style private websocket feed (OrderEvents).
//
// Maintains one authenticated websocket: login with
// HMAC-SHA256("{ts}websocket_login"), subscribe to the private orders
// channel plus a ticker stream per market. Incoming order messages are
// queued behind a mutex and drained exactly once per tick by the control
// loop (OrderUpdates), which keeps every consumer single-threaded.
//
// Each queued event is stamped with the receive time in ms; that stamp is
// the monotonic msg_time the reconciler fences on.

package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const feedPingInterval = 15 * time.Second

// FtxFeed is the private order/ticker stream.
type FtxFeed struct {
	conn *websocket.Conn

	mu      sync.Mutex
	updates map[string]OrderEvent
	tick    map[string]float64 // market → last, for readiness
	markets []string

	writeMu sync.Mutex
	done    chan struct{}
}

// NewFtxFeed dials, authenticates and subscribes. The returned feed is
// live; readiness (first ticker on every market) is polled separately.
func NewFtxFeed(ctx context.Context, wsURL, apiKey, apiSecret, subaccount string, markets []string) (*FtxFeed, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	f := &FtxFeed{
		conn:    conn,
		updates: make(map[string]OrderEvent),
		tick:    make(map[string]float64),
		markets: markets,
		done:    make(chan struct{}),
	}

	ts := time.Now().UnixMilli()
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(strconv.FormatInt(ts, 10) + "websocket_login"))
	login := map[string]any{
		"op": "login",
		"args": map[string]any{
			"key":  apiKey,
			"sign": hex.EncodeToString(mac.Sum(nil)),
			"time": ts,
		},
	}
	if subaccount != "" {
		login["args"].(map[string]any)["subaccount"] = subaccount
	}
	if err := f.send(login); err != nil {
		conn.Close()
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := f.send(map[string]any{"op": "subscribe", "channel": "orders"}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe orders: %w", err)
	}
	for _, m := range markets {
		if err := f.send(map[string]any{"op": "subscribe", "channel": "ticker", "market": m}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe ticker %s: %w", m, err)
		}
	}

	go f.readLoop()
	go f.pingLoop()
	return f, nil
}

func (f *FtxFeed) send(v any) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return f.conn.WriteJSON(v)
}

// Close tears down the connection and stops the keepalive.
func (f *FtxFeed) Close() {
	close(f.done)
	_ = f.conn.Close()
}

func (f *FtxFeed) pingLoop() {
	t := time.NewTicker(feedPingInterval)
	defer t.Stop()
	for {
		select {
		case <-f.done:
			return
		case <-t.C:
			if err := f.send(map[string]any{"op": "ping"}); err != nil {
				return
			}
		}
	}
}

type feedMessage struct {
	Channel string          `json:"channel"`
	Market  string          `json:"market"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

type feedOrder struct {
	ID           int64   `json:"id"`
	Market       string  `json:"market"`
	Side         string  `json:"side"`
	Size         float64 `json:"size"`
	FilledSize   float64 `json:"filledSize"`
	AvgFillPrice float64 `json:"avgFillPrice"`
	Price        float64 `json:"price"`
	Status       string  `json:"status"`
	ClientID     string  `json:"clientId"`
}

func (f *FtxFeed) readLoop() {
	for {
		var msg feedMessage
		if err := f.conn.ReadJSON(&msg); err != nil {
			select {
			case <-f.done:
			default:
				log.Printf("[FEED] read error: %v", err)
			}
			return
		}
		switch msg.Channel {
		case "orders":
			if msg.Type != "update" || len(msg.Data) == 0 {
				continue
			}
			var o feedOrder
			if err := json.Unmarshal(msg.Data, &o); err != nil {
				log.Printf("[FEED] decode order: %v", err)
				continue
			}
			f.enqueue(o)
		case "ticker":
			if msg.Type != "update" || len(msg.Data) == 0 {
				continue
			}
			var t struct {
				Last float64 `json:"last"`
			}
			if err := json.Unmarshal(msg.Data, &t); err != nil {
				continue
			}
			f.mu.Lock()
			f.tick[msg.Market] = t.Last
			f.mu.Unlock()
		}
	}
}

func (f *FtxFeed) enqueue(o feedOrder) {
	status := StatusNew
	if o.Status == "closed" {
		status = StatusClosed
	}
	id := strconv.FormatInt(o.ID, 10)
	// The REST gateway appends a uniqueness suffix to the client id
	// ("basis-entry-<nonce>"); strip it so the intent tag round-trips.
	tag := o.ClientID
	if i := strings.LastIndex(tag, "-"); i > 0 {
		tag = tag[:i]
	}
	f.mu.Lock()
	f.updates[id] = OrderEvent{
		ID:           id,
		Instrument:   o.Market,
		Side:         OrderSide(o.Side),
		Size:         o.Size,
		FilledSize:   o.FilledSize,
		AvgFillPrice: o.AvgFillPrice,
		Price:        o.Price,
		Status:       status,
		MsgTime:      time.Now().UnixMilli(),
		ClientTag:    tag,
	}
	f.mu.Unlock()
}

// ---- OrderEvents ----

// OrderUpdates drains all queued order events. One caller per tick.
func (f *FtxFeed) OrderUpdates() map[string]OrderEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.updates
	f.updates = make(map[string]OrderEvent)
	return out
}

// Ready reports whether a live ticker has been seen on every subscribed
// market.
func (f *FtxFeed) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.markets {
		if f.tick[m] <= 0 {
			return false
		}
	}
	return true
}
