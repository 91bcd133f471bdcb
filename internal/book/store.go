// Package book holds the current bid/ask ladder and the recent-trade
// ring. The whole snapshot is swapped atomically on every feed tick so
// readers never observe a partially updated ladder.
package book

import (
	"sync/atomic"

	"main/internal/model"
	"main/pkg/exception"
)

// Snapshot is an immutable view of market state. Slices are never
// mutated after publication.
type Snapshot struct {
	Tick   model.MarketTick
	Bids   []model.BookLevel
	Asks   []model.BookLevel
	Trades []model.Trade
}

// Store keeps the latest snapshot behind an atomic value.
type Store struct {
	depth    int
	tradeCap int
	current  atomic.Value // Snapshot
}

// New creates a store with a fixed ladder depth and trade capacity.
func New(depth, tradeCap int) (*Store, error) {
	if depth <= 0 {
		return nil, exception.ErrBookInvalidDepth
	}
	if tradeCap <= 0 {
		return nil, exception.ErrBookInvalidTradeCapacity
	}

	s := &Store{depth: depth, tradeCap: tradeCap}
	s.current.Store(Snapshot{
		Bids: make([]model.BookLevel, depth),
		Asks: make([]model.BookLevel, depth),
	})
	return s, nil
}

// Depth returns the configured ladder depth.
func (s *Store) Depth() int {
	return s.depth
}

// Snapshot returns the latest fully-formed snapshot.
func (s *Store) Snapshot() Snapshot {
	return s.current.Load().(Snapshot)
}

// Apply swaps in a new snapshot built from the tick, the generated
// ladder and newly observed trades, and returns it. Ladders are padded
// or truncated to exactly the configured depth; the trade ring evicts
// oldest entries beyond capacity.
func (s *Store) Apply(tick model.MarketTick, bids, asks []model.BookLevel, trades []model.Trade) Snapshot {
	prev := s.Snapshot()

	next := Snapshot{
		Tick:   tick,
		Bids:   shapeLadder(bids, s.depth, -1),
		Asks:   shapeLadder(asks, s.depth, +1),
		Trades: appendTrades(prev.Trades, trades, s.tradeCap),
	}
	s.current.Store(next)
	return next
}

// shapeLadder forces a ladder to exactly depth levels. Missing levels
// extend past the worst known price by one micro per step in the given
// direction, keeping strict ordering.
func shapeLadder(levels []model.BookLevel, depth int, direction int64) []model.BookLevel {
	out := make([]model.BookLevel, 0, depth)
	out = append(out, levels...)
	if len(out) > depth {
		out = out[:depth]
	}

	for len(out) < depth {
		price := model.Price(int64(depth-len(out)) * direction)
		total := model.Quantity(0)
		if n := len(out); n > 0 {
			price = out[n-1].Price + model.Price(direction)
			total = out[n-1].Total
		}
		out = append(out, model.BookLevel{
			Price:  price,
			Amount: 0,
			Total:  total,
		})
	}
	return out
}

// appendTrades pushes new trades into a fresh ring slice, newest last.
func appendTrades(prev, incoming []model.Trade, capacity int) []model.Trade {
	merged := make([]model.Trade, 0, len(prev)+len(incoming))
	merged = append(merged, prev...)
	merged = append(merged, incoming...)
	if len(merged) > capacity {
		merged = merged[len(merged)-capacity:]
	}
	// re-slice into a fresh array so the previous snapshot stays frozen
	out := make([]model.Trade, len(merged))
	copy(out, merged)
	return out
}
