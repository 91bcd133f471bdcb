package model

import "main/internal/model/enum"

// MarketTick is one full snapshot of the traded instrument's market state.
// Each tick replaces the previous one wholesale.
type MarketTick struct {
	Seq          uint64
	Symbol       string
	Price        Price
	Bid          Price
	Ask          Price
	Change24h    Notional
	Change24hBps Bps
	High24h      Price
	Low24h       Price
	Volume24h    Quantity
	TsNano       int64
	Stale        bool
}

// BookLevel is a single ladder entry. Total is the cumulative amount
// from the touch down to this level.
type BookLevel struct {
	Price  Price
	Amount Quantity
	Total  Quantity
}

// Trade is one entry of the recent-trades ledger.
type Trade struct {
	ID     uint64
	Price  Price
	Amount Quantity
	Side   enum.OrderSide
	TsNano int64
}
