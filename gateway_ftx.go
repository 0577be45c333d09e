// FILE: gateway_ftx.go
// Package main – FTX-style REST client: Gateway, MarketData,
// FundingSource and Account over signed HTTP.
//
// Auth: HMAC-SHA256 over "{ts}{METHOD}{path}{body}" with the API secret,
// sent as FTX-KEY / FTX-SIGN / FTX-TS (plus FTX-SUBACCOUNT when set).
// All order calls are fire-and-forget for the engine: the ack only means
// the exchange accepted the request; real state arrives on the private
// feed (feed_ftx.go).

package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// FtxClient talks to an FTX-compatible REST API.
type FtxClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	subaccount string
}

// NewFtxClientFromEnv builds the client from FTX_API_KEY / FTX_API_SECRET
// (and optional FTX_SUBACCOUNT, FTX_API_BASE). Missing credentials are a
// startup validation failure.
func NewFtxClientFromEnv() (*FtxClient, error) {
	apiKey := getEnv("FTX_API_KEY", "")
	apiSecret := getEnv("FTX_API_SECRET", "")
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("FTX_API_KEY and FTX_API_SECRET must be set")
	}
	base := getEnv("FTX_API_BASE", "https://ftx.com/api")
	return &FtxClient{
		client:     &http.Client{Timeout: 15 * time.Second},
		baseURL:    base,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		subaccount: getEnv("FTX_SUBACCOUNT", ""),
	}, nil
}

func (f *FtxClient) Name() string { return "ftx" }

// ---- request plumbing ----

type ftxEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

// doReq signs and executes one request, returning the raw result payload.
func (f *FtxClient) doReq(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(f.apiSecret))
	mac.Write([]byte(ts + method + "/api" + path))
	mac.Write(payload)
	req.Header.Set("FTX-KEY", f.apiKey)
	req.Header.Set("FTX-SIGN", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("FTX-TS", ts)
	if f.subaccount != "" {
		req.Header.Set("FTX-SUBACCOUNT", f.subaccount)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env ftxEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = string(data)
		}
		return nil, fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, msg)
	}
	return env.Result, nil
}

// ---- MarketData ----

func (f *FtxClient) GetOrderbook(ctx context.Context, instrument string) (Orderbook, error) {
	raw, err := f.doReq(ctx, http.MethodGet, "/markets/"+instrument+"/orderbook?depth=5", nil)
	if err != nil {
		return Orderbook{}, err
	}
	var book struct {
		Asks [][2]float64 `json:"asks"`
		Bids [][2]float64 `json:"bids"`
	}
	if err := json.Unmarshal(raw, &book); err != nil {
		return Orderbook{}, fmt.Errorf("decode orderbook: %w", err)
	}
	out := Orderbook{}
	for _, lvl := range book.Asks {
		out.Asks = append(out.Asks, BookLevel{Price: lvl[0], Size: lvl[1]})
	}
	for _, lvl := range book.Bids {
		out.Bids = append(out.Bids, BookLevel{Price: lvl[0], Size: lvl[1]})
	}
	return out, nil
}

func (f *FtxClient) GetTicker(ctx context.Context, instrument string) (Ticker, error) {
	raw, err := f.doReq(ctx, http.MethodGet, "/markets/"+instrument, nil)
	if err != nil {
		return Ticker{}, err
	}
	var m struct {
		Last float64 `json:"last"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return Ticker{}, fmt.Errorf("decode market: %w", err)
	}
	return Ticker{Last: m.Last}, nil
}

// ---- Gateway ----

func (f *FtxClient) PlaceOrder(ctx context.Context, req OrderRequest) error {
	body := map[string]any{
		"market":     req.Instrument,
		"side":       string(req.Side),
		"size":       req.Size,
		"type":       string(req.Type),
		"reduceOnly": req.ReduceOnly,
		"ioc":        false,
		"postOnly":   false,
	}
	if req.Type == TypeMarket {
		body["price"] = nil
	} else {
		body["price"] = req.Price
	}
	if req.ClientTag != "" {
		body["clientId"] = req.ClientTag + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	_, err := f.doReq(ctx, http.MethodPost, "/orders", body)
	return err
}

func (f *FtxClient) CancelOrder(ctx context.Context, orderID string) error {
	_, err := f.doReq(ctx, http.MethodDelete, "/orders/"+orderID, nil)
	return err
}

func (f *FtxClient) ModifyOrder(ctx context.Context, orderID string, newPrice float64) error {
	_, err := f.doReq(ctx, http.MethodPost, "/orders/"+orderID+"/modify", map[string]any{
		"price": newPrice,
	})
	return err
}

// ---- FundingSource ----

func (f *FtxClient) FundingRate(ctx context.Context, perp string) (float64, error) {
	raw, err := f.doReq(ctx, http.MethodGet, "/funding_rates?future="+perp, nil)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Future string  `json:"future"`
		Rate   float64 `json:"rate"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("decode funding rates: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("no funding rate for %s", perp)
	}
	return rows[0].Rate, nil
}

func (f *FtxClient) BorrowRate(ctx context.Context, asset string) (float64, error) {
	raw, err := f.doReq(ctx, http.MethodGet, "/spot_margin/borrow_rates", nil)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Coin     string  `json:"coin"`
		Estimate float64 `json:"estimate"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("decode borrow rates: %w", err)
	}
	for _, r := range rows {
		if r.Coin == asset {
			return r.Estimate, nil
		}
	}
	return 0, fmt.Errorf("no borrow rate for %s", asset)
}

// ---- Account (startup validation) ----

func (f *FtxClient) Markets(ctx context.Context) ([]string, error) {
	raw, err := f.doReq(ctx, http.MethodGet, "/markets", nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out, nil
}

func (f *FtxClient) OpenPositions(ctx context.Context) (int, error) {
	raw, err := f.doReq(ctx, http.MethodGet, "/positions", nil)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Size float64 `json:"size"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("decode positions: %w", err)
	}
	n := 0
	for _, r := range rows {
		if r.Size != 0 {
			n++
		}
	}
	return n, nil
}

func (f *FtxClient) OpenOrders(ctx context.Context) (int, error) {
	raw, err := f.doReq(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return 0, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("decode orders: %w", err)
	}
	return len(rows), nil
}
