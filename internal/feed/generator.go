// Package feed produces market ticks, either synthetically or from an
// external websocket stream, and drives them through the tick pipeline
// on a fixed period.
package feed

import (
	"math/rand"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// minLevelAmount keeps every generated ladder level at 0.1 units or
// more.
const minLevelAmount = model.Quantity(100_000)

// GeneratorConfig controls the synthetic feed.
type GeneratorConfig struct {
	Symbol              string
	BasePrice           model.Price
	MaxJitterBps        model.Bps
	SpreadBps           model.Bps
	TradeProbabilityPct int
	Levels              int
	Seed                int64
}

// Generator emits a deterministic synthetic market stream. Two
// generators with the same config and seed produce identical ticks.
// Not safe for concurrent use; the driver is its only caller.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand

	seq         uint64
	price       model.Price
	open        model.Price
	high        model.Price
	low         model.Price
	volume      model.Quantity
	nextTradeID uint64
}

// NewGenerator validates the config and seeds the stream at the base
// price.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Symbol == "" || cfg.BasePrice <= 0 || cfg.Levels <= 0 {
		return nil, exception.ErrConfigInvalid
	}
	if cfg.MaxJitterBps < 0 || cfg.SpreadBps < 0 {
		return nil, exception.ErrConfigInvalid
	}
	if cfg.TradeProbabilityPct < 0 || cfg.TradeProbabilityPct > 100 {
		return nil, exception.ErrConfigInvalid
	}

	return &Generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		price: cfg.BasePrice,
		open:  cfg.BasePrice,
		high:  cfg.BasePrice,
		low:   cfg.BasePrice,
	}, nil
}

// Next advances the stream by one tick and returns the tick, both
// ladders and any synthetic trades.
func (g *Generator) Next(now time.Time) (model.MarketTick, []model.BookLevel, []model.BookLevel, []model.Trade) {
	g.seq++

	if g.cfg.MaxJitterBps > 0 {
		span := int64(g.cfg.MaxJitterBps)
		deltaBps := g.rng.Int63n(2*span+1) - span
		g.price += model.Price(model.MulDiv(int64(g.price), deltaBps, 10_000))
	}
	if g.price < 1 {
		g.price = 1
	}

	half := model.Price(model.MulDiv(int64(g.price), int64(g.cfg.SpreadBps), 20_000))
	if half < 1 {
		half = 1
	}
	bid := g.price - half
	if bid < 1 {
		bid = 1
	}
	ask := g.price + half

	step := model.Price(model.MulDiv(int64(g.price), 1, 10_000))
	if step < 1 {
		step = 1
	}

	bids := make([]model.BookLevel, 0, g.cfg.Levels)
	asks := make([]model.BookLevel, 0, g.cfg.Levels)
	var bidTotal, askTotal model.Quantity
	for i := 0; i < g.cfg.Levels; i++ {
		offset := model.Price(int64(i)) * step

		bidAmount := g.levelAmount()
		bidTotal += bidAmount
		bids = append(bids, model.BookLevel{
			Price:  bid - offset,
			Amount: bidAmount,
			Total:  bidTotal,
		})

		askAmount := g.levelAmount()
		askTotal += askAmount
		asks = append(asks, model.BookLevel{
			Price:  ask + offset,
			Amount: askAmount,
			Total:  askTotal,
		})
	}

	var trades []model.Trade
	if g.cfg.TradeProbabilityPct > 0 && g.rng.Intn(100) < g.cfg.TradeProbabilityPct {
		side, price := enum.OrderSideBuy, ask
		if g.rng.Intn(2) == 1 {
			side, price = enum.OrderSideSell, bid
		}
		amount := g.levelAmount()
		g.nextTradeID++
		g.volume += amount
		trades = append(trades, model.Trade{
			ID:     g.nextTradeID,
			Price:  price,
			Amount: amount,
			Side:   side,
			TsNano: now.UnixNano(),
		})
	}

	if g.price > g.high {
		g.high = g.price
	}
	if g.price < g.low {
		g.low = g.price
	}
	change := model.Notional(g.price - g.open)

	tick := model.MarketTick{
		Seq:          g.seq,
		Symbol:       g.cfg.Symbol,
		Price:        g.price,
		Bid:          bid,
		Ask:          ask,
		Change24h:    change,
		Change24hBps: model.Bps(model.MulDiv(int64(change), 10_000, int64(g.open))),
		High24h:      g.high,
		Low24h:       g.low,
		Volume24h:    g.volume,
		TsNano:       now.UnixNano(),
	}
	return tick, bids, asks, trades
}

func (g *Generator) levelAmount() model.Quantity {
	return minLevelAmount + model.Quantity(g.rng.Int63n(2*model.UnitMicros))
}
