// Package ledger maintains per-asset net quantity, weighted average
// entry price and live valuation. It is the only component mutated on
// fill events and it revalues in O(held positions) per tick.
package ledger

import (
	"sort"
	"sync"

	"main/internal/model"
	"main/internal/model/enum"
)

// position is the internal accumulation record. The cost basis is kept
// instead of the average so that any permutation of the same fills
// resolves to exactly the same average entry price.
type position struct {
	qty     model.Quantity // base micros, signed
	cost    model.Notional // quote micros spent on the open quantity
	current model.Price
}

// Ledger owns all position records.
type Ledger struct {
	mu        sync.Mutex
	positions map[string]*position
	applied   map[uint64]struct{} // order ids already applied
	realized  model.Notional
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		positions: make(map[string]*position),
		applied:   make(map[uint64]struct{}),
	}
}

// ApplyFill folds one full fill into the asset's position. amount is
// quote-denominated; the base quantity is derived from the fill price.
// Applying the same order id twice is a no-op, so duplicate delivery
// can never double-count.
func (l *Ledger) ApplyFill(orderID uint64, symbol string, side enum.OrderSide, amount model.Notional, price model.Price) {
	if amount <= 0 || price <= 0 || !side.IsAvailable() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.applied[orderID]; done {
		return
	}
	l.applied[orderID] = struct{}{}

	baseQty := model.Quantity(model.MulDiv(int64(amount), model.UnitMicros, int64(price)))
	if baseQty == 0 {
		return
	}
	if side == enum.OrderSideSell {
		baseQty = -baseQty
	}

	pos, ok := l.positions[symbol]
	if !ok {
		l.positions[symbol] = &position{qty: baseQty, cost: amount, current: price}
		return
	}
	pos.current = price

	sameDirection := (pos.qty > 0) == (baseQty > 0)
	if pos.qty == 0 || sameDirection {
		pos.qty += baseQty
		pos.cost += amount
		return
	}

	avg := pos.avgEntry()
	switch {
	case baseQty.Abs() < pos.qty.Abs():
		// reduce: average entry retained for the remainder
		closed := baseQty.Abs()
		l.realized += realizedOn(closed, avg, price, pos.qty > 0)
		pos.qty += baseQty
		pos.cost = model.Notional(model.MulDiv(int64(pos.qty.Abs()), int64(avg), model.UnitMicros))
	case baseQty.Abs() == pos.qty.Abs():
		l.realized += realizedOn(pos.qty.Abs(), avg, price, pos.qty > 0)
		delete(l.positions, symbol)
	default:
		// flip: the surviving quantity enters at the fill price
		l.realized += realizedOn(pos.qty.Abs(), avg, price, pos.qty > 0)
		remaining := pos.qty + baseQty
		pos.qty = remaining
		pos.cost = model.Notional(model.MulDiv(int64(remaining.Abs()), int64(price), model.UnitMicros))
	}
}

// Revalue updates current price and derived PnL for every held
// position matching the tick's symbol.
func (l *Ledger) Revalue(tick model.MarketTick) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for symbol, pos := range l.positions {
		if symbol != tick.Symbol {
			continue
		}
		pos.current = tick.Price
	}
}

// Positions returns valued copies of every held position, sorted by
// symbol for stable output.
func (l *Ledger) Positions() []model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.Position, 0, len(l.positions))
	for symbol, pos := range l.positions {
		out = append(out, pos.valued(symbol))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Position returns the valued position for one asset.
func (l *Ledger) Position(symbol string) (model.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	return pos.valued(symbol), true
}

// RealizedPnl returns the quote-denominated profit locked in by
// reducing or flipping fills.
func (l *Ledger) RealizedPnl() model.Notional {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

// Count returns the number of held positions.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

func (p *position) avgEntry() model.Price {
	if p.qty == 0 {
		return 0
	}
	return model.Price(model.MulDiv(int64(p.cost), model.UnitMicros, int64(p.qty.Abs())))
}

func (p *position) valued(symbol string) model.Position {
	avg := p.avgEntry()
	pnl := model.Notional(model.MulDiv(int64(p.current-avg), int64(p.qty), model.UnitMicros))

	var pnlBps model.Bps
	if basis := model.MulDiv(int64(avg), int64(p.qty.Abs()), model.UnitMicros); basis != 0 {
		pnlBps = model.Bps(model.MulDiv(int64(pnl), 10_000, basis))
	}

	return model.Position{
		Symbol:           symbol,
		Quantity:         p.qty,
		AvgEntryPrice:    avg,
		CurrentPrice:     p.current,
		UnrealizedPnl:    pnl,
		UnrealizedPnlBps: pnlBps,
	}
}

func realizedOn(closed model.Quantity, entry, exit model.Price, wasLong bool) model.Notional {
	diff := int64(exit - entry)
	if !wasLong {
		diff = -diff
	}
	return model.Notional(model.MulDiv(diff, int64(closed), model.UnitMicros))
}
