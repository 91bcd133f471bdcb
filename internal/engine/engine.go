// Package engine owns every submitted order and drives it to a
// terminal state against the feed. It is the only writer of order
// status; transitions are monotonic and resolved under one lock so a
// cancel and a fill can never both win.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"main/internal/book"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/policy"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

// strictInvariants makes invariant breaches panic instead of being
// logged. Test builds flip this on.
var strictInvariants = false

// FillSink receives exactly one ApplyFill per filled order.
type FillSink interface {
	ApplyFill(orderID uint64, symbol string, side enum.OrderSide, amount model.Notional, price model.Price)
}

// Recorder observes terminal orders. Optional.
type Recorder interface {
	OrderClosed(model.Order)
}

// Policy resolves a tier to its permission rule.
type Policy interface {
	Allowed(tier enum.Tier) policy.Rule
}

// Config controls evaluation behavior.
type Config struct {
	// TolerateStale keeps evaluating fills against a stale snapshot.
	// Default pauses evaluation until the feed resumes.
	TolerateStale bool
}

// SubmitRequest is an order submission from an external caller.
type SubmitRequest struct {
	Symbol     string
	Type       enum.OrderType
	Side       enum.OrderSide
	Tier       enum.Tier
	Amount     model.Notional
	LimitPrice model.Price
	StopPrice  model.Price
	Leverage   int
}

// Engine is the order lifecycle engine.
type Engine struct {
	cfg      Config
	policy   Policy
	sink     FillSink
	recorder Recorder
	metrics  *obs.Metrics

	mu       sync.Mutex
	orders   map[uint64]*model.Order
	sequence []uint64 // submission order, oldest first
	nextID   uint64

	lastSeq atomic.Uint64
}

// New creates an engine. sink is required; recorder and metrics may be
// nil.
func New(cfg Config, table Policy, sink FillSink, recorder Recorder, metrics *obs.Metrics) *Engine {
	return &Engine{
		cfg:      cfg,
		policy:   table,
		sink:     sink,
		recorder: recorder,
		metrics:  metrics,
		orders:   make(map[uint64]*model.Order),
	}
}

// SubmitOrder validates the request against the caller's tier and
// registers the order for fill evaluation. It returns the assigned id
// immediately and never blocks on execution.
func (e *Engine) SubmitOrder(req SubmitRequest) (uint64, error) {
	if err := e.validate(req); err != nil {
		e.metrics.IncReject()
		return 0, err
	}

	rule := e.policy.Allowed(req.Tier)
	if !rule.AllowsType(req.Type) {
		e.metrics.IncReject()
		return 0, exception.ErrPolicyOrderTypeNotAllowed
	}
	if rule.MaxOrderAmount > 0 && req.Amount > rule.MaxOrderAmount {
		e.metrics.IncReject()
		return 0, exception.ErrPolicyAmountExceedsLimit
	}
	leverage := req.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	if rule.MaxLeverage > 0 && leverage > rule.MaxLeverage {
		e.metrics.IncReject()
		return 0, exception.ErrPolicyLeverageExceedsMax
	}

	now := time.Now().UTC().UnixNano()

	e.mu.Lock()
	e.nextID++
	order := &model.Order{
		ID:          e.nextID,
		Symbol:      req.Symbol,
		Type:        req.Type,
		Side:        req.Side,
		Tier:        req.Tier,
		Amount:      req.Amount,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		Leverage:    leverage,
		Status:      enum.OrderStatusPending,
		SubmitSeq:   e.lastSeq.Load(),
		CreatedNano: now,
		UpdatedNano: now,
	}
	e.orders[order.ID] = order
	e.sequence = append(e.sequence, order.ID)
	e.mu.Unlock()

	e.metrics.IncSubmit()
	return order.ID, nil
}

// CancelOrder moves a pending/partial order to cancelled. An order
// that already reached a terminal state loses with
// ErrOrderNotCancellable; losing the race to a fill inside the same
// tick is an expected outcome, not a fault.
func (e *Engine) CancelOrder(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok {
		return exception.ErrOrderNotFound
	}
	if !e.transition(order, enum.OrderStatusCancelled) {
		e.metrics.IncCancelLost()
		return exception.ErrOrderNotCancellable
	}

	e.metrics.IncCancel()
	if e.recorder != nil {
		e.recorder.OrderClosed(*order)
	}
	return nil
}

// EvaluateTick runs fill evaluation for every open order against one
// snapshot. Called by the feed driver once per tick, after the book
// swap and before position revaluation.
func (e *Engine) EvaluateTick(snap book.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastSeq.Store(snap.Tick.Seq)

	if snap.Tick.Stale && !e.cfg.TolerateStale {
		e.metrics.IncStaleSkip()
		return
	}

	for _, id := range e.sequence {
		order := e.orders[id]
		if !order.IsOpen() {
			continue
		}
		// execution latency model: an order is visible to fills only
		// on ticks strictly after its submission
		if snap.Tick.Seq <= order.SubmitSeq {
			continue
		}

		fillPrice, fills := evaluate(order, snap.Tick)
		if !fills {
			continue
		}
		e.fill(order, fillPrice)
	}
}

// GetOrders returns copies of all orders, most recent first.
func (e *Engine) GetOrders() []model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Order, 0, len(e.sequence))
	for i := len(e.sequence) - 1; i >= 0; i-- {
		out = append(out, *e.orders[e.sequence[i]])
	}
	return out
}

// GetOrder returns a copy of one order.
func (e *Engine) GetOrder(id uint64) (model.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok {
		return model.Order{}, false
	}
	return *order, true
}

// PruneTerminal drops filled and cancelled orders from memory and
// returns how many were removed. Terminal orders were already handed
// to the recorder; pruning keeps the order map bounded on long runs.
func (e *Engine) PruneTerminal() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.sequence[:0]
	removed := 0
	for _, id := range e.sequence {
		if e.orders[id].Status.IsTerminal() {
			delete(e.orders, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	e.sequence = kept
	return removed
}

// OpenOrderCount returns the number of orders still eligible for
// fills.
func (e *Engine) OpenOrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, order := range e.orders {
		if order.IsOpen() {
			count++
		}
	}
	return count
}

func (e *Engine) validate(req SubmitRequest) error {
	if req.Symbol == "" {
		return exception.ErrOrderUnknownSymbol
	}
	if !req.Side.IsAvailable() {
		return exception.ErrOrderUnknownSide
	}
	if !req.Type.IsAvailable() {
		return exception.ErrOrderUnsupportedType
	}
	if req.Amount <= 0 {
		return exception.ErrOrderInvalidAmount
	}
	switch req.Type {
	case enum.OrderTypeLimit:
		if req.LimitPrice == 0 {
			return exception.ErrOrderMissingLimit
		}
		if req.LimitPrice < 0 {
			return exception.ErrOrderInvalidPrice
		}
	case enum.OrderTypeStop:
		if req.StopPrice == 0 {
			return exception.ErrOrderMissingStop
		}
		if req.StopPrice < 0 {
			return exception.ErrOrderInvalidPrice
		}
	}
	return nil
}

// evaluate decides whether an open order fills against the tick and at
// what price. Pure; no partial-fill policy beyond the status existing.
func evaluate(order *model.Order, tick model.MarketTick) (model.Price, bool) {
	if tick.Bid <= 0 || tick.Ask <= 0 {
		return 0, false
	}

	switch order.Type {
	case enum.OrderTypeMarket:
		// market fills at the opposite-side touch on its first
		// evaluation
		if order.Side == enum.OrderSideBuy {
			return tick.Ask, true
		}
		return tick.Bid, true

	case enum.OrderTypeLimit:
		if order.Side == enum.OrderSideBuy && tick.Ask <= order.LimitPrice {
			return tick.Ask, true
		}
		if order.Side == enum.OrderSideSell && tick.Bid >= order.LimitPrice {
			return tick.Bid, true
		}
		return 0, false

	case enum.OrderTypeStop:
		// adverse crossing converts the stop into an immediate fill
		if order.Side == enum.OrderSideBuy && tick.Ask >= order.StopPrice {
			return tick.Ask, true
		}
		if order.Side == enum.OrderSideSell && tick.Bid <= order.StopPrice {
			return tick.Bid, true
		}
		return 0, false
	}
	return 0, false
}

// fill marks the order filled and applies it to the ledger exactly
// once. Caller holds the engine lock.
func (e *Engine) fill(order *model.Order, price model.Price) {
	if !e.transition(order, enum.OrderStatusFilled) {
		// transition already rejects terminal orders; reaching this
		// would mean a fill raced past the lock
		if strictInvariants {
			panic("engine: fill on terminal order")
		}
		logs.Errorf("fill rejected for order %d in status %s", order.ID, order.Status)
		return
	}

	order.FilledAmount = order.Amount
	order.FillPrice = price

	e.sink.ApplyFill(order.ID, order.Symbol, order.Side, order.Amount, price)
	e.metrics.IncFill()
	e.metrics.ObserveFill(time.Duration(order.UpdatedNano - order.CreatedNano))
	if e.recorder != nil {
		e.recorder.OrderClosed(*order)
	}
}

// transition is the single compare-and-set gate for order status.
// Only open orders move; terminal states never change again.
func (e *Engine) transition(order *model.Order, to enum.OrderStatus) bool {
	if !order.Status.IsOpen() {
		return false
	}
	order.Status = to
	order.UpdatedNano = time.Now().UTC().UnixNano()
	return true
}
