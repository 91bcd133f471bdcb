package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"main/internal/model"
	"main/pkg/exception"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

// ExternalConfig controls the websocket-fed source.
type ExternalConfig struct {
	URL        string
	Symbol     string
	StaleAfter time.Duration
}

// External serves ticks from a live depth stream. While the stream is
// silent for longer than StaleAfter, Next keeps returning the last
// known book with the stale flag raised.
type External struct {
	cfg ExternalConfig
	wss *ws.WebSocket

	mu       sync.Mutex
	seq      uint64
	bids     []model.BookLevel
	asks     []model.BookLevel
	open     model.Price
	high     model.Price
	low      model.Price
	lastRecv time.Time
}

// NewExternal creates the source. The connection is not dialed until
// Start.
func NewExternal(ctx context.Context, cfg ExternalConfig) (*External, error) {
	if cfg.URL == "" || cfg.Symbol == "" || cfg.StaleAfter <= 0 {
		return nil, exception.ErrConfigInvalid
	}
	return &External{
		cfg: cfg,
		wss: ws.New(ctx, cfg.URL),
	}, nil
}

// Start dials the stream, subscribes the depth topic and launches the
// observer. The subscription is registered so it replays after a
// reconnect.
func (e *External) Start(ctx context.Context) error {
	if err := e.wss.Start(ctx); err != nil {
		return errors.Wrapf(exception.ErrFeedUnavailable, "start stream: %+v", err)
	}
	if err := e.subscribeDepth(ctx); err != nil {
		return err
	}
	e.observe(ctx)
	return nil
}

// Len returns the count of active subscriptions on the socket.
func (e *External) Len() int {
	return e.wss.Len()
}

// Close tears the socket down.
func (e *External) Close() {
	e.wss.Close()
}

// Healthy reports whether the stream delivered data recently.
func (e *External) Healthy(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastRecv.IsZero() || now.Sub(e.lastRecv) > e.cfg.StaleAfter {
		return exception.ErrFeedUnavailable
	}
	return nil
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

type depthPayload struct {
	LastUpdateID int64                `json:"lastUpdateId"`
	Bids         [][2]decimal.Decimal `json:"bids"` // [0]price [1]quantity
	Asks         [][2]decimal.Decimal `json:"asks"`
}

func (e *External) subscribeDepth(ctx context.Context) error {
	appendIntoRegister := true
	if err := e.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@depth20@100ms", strings.ToLower(strings.ReplaceAll(e.cfg.Symbol, "/", ""))),
				},
				ID: 1,
			}

			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[subscribeResponse](m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe depth, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

func (e *External) observe(ctx context.Context) {
	ch, cancel := e.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				depth, ok := ws.ReadMessage[depthPayload](m)
				if !ok || len(depth.Bids) == 0 || len(depth.Asks) == 0 {
					continue
				}

				e.applyDepth(depth)
			}
		}
	}()
}

func (e *External) applyDepth(depth depthPayload) {
	bids, err := parseLadder(depth.Bids)
	if err != nil {
		logs.Errorf("parse bid ladder, err: %+v", err)
		return
	}
	asks, err := parseLadder(depth.Asks)
	if err != nil {
		logs.Errorf("parse ask ladder, err: %+v", err)
		return
	}

	mid := (bids[0].Price + asks[0].Price) / 2

	e.mu.Lock()
	defer e.mu.Unlock()

	e.bids = bids
	e.asks = asks
	if e.open == 0 {
		e.open = mid
		e.high = mid
		e.low = mid
	}
	if mid > e.high {
		e.high = mid
	}
	if mid < e.low {
		e.low = mid
	}
	e.lastRecv = time.Now()
}

// parseLadder converts decimal string levels into scaled book levels
// with cumulative totals.
func parseLadder(levels [][2]decimal.Decimal) ([]model.BookLevel, error) {
	out := make([]model.BookLevel, 0, len(levels))
	var total model.Quantity
	for _, level := range levels {
		price, err := model.ParseMicros(level[0].String())
		if err != nil {
			return nil, errors.Wrap(err, "parse level price")
		}
		amount, err := model.ParseMicros(level[1].String())
		if err != nil {
			return nil, errors.Wrap(err, "parse level amount")
		}
		total += model.Quantity(amount)
		out = append(out, model.BookLevel{
			Price:  model.Price(price),
			Amount: model.Quantity(amount),
			Total:  total,
		})
	}
	return out, nil
}

// Next serves the latest depth as a tick. Implements Source.
func (e *External) Next(now time.Time) (model.MarketTick, []model.BookLevel, []model.BookLevel, []model.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++

	var bid, ask model.Price
	if len(e.bids) > 0 {
		bid = e.bids[0].Price
	}
	if len(e.asks) > 0 {
		ask = e.asks[0].Price
	}
	mid := (bid + ask) / 2

	change := model.Notional(0)
	changeBps := model.Bps(0)
	if e.open > 0 {
		change = model.Notional(mid - e.open)
		changeBps = model.Bps(model.MulDiv(int64(change), 10_000, int64(e.open)))
	}

	tick := model.MarketTick{
		Seq:          e.seq,
		Symbol:       e.cfg.Symbol,
		Price:        mid,
		Bid:          bid,
		Ask:          ask,
		Change24h:    change,
		Change24hBps: changeBps,
		High24h:      e.high,
		Low24h:       e.low,
		TsNano:       now.UnixNano(),
		Stale:        e.lastRecv.IsZero() || now.Sub(e.lastRecv) > e.cfg.StaleAfter,
	}
	return tick, e.bids, e.asks, nil
}
