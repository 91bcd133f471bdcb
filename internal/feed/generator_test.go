package feed

import (
	"reflect"
	"testing"
	"time"

	"main/internal/model"
	"main/pkg/exception"
)

func genConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:              "BTC/USDT",
		BasePrice:           model.Price(43_250 * model.UnitMicros),
		MaxJitterBps:        10,
		SpreadBps:           10,
		TradeProbabilityPct: 30,
		Levels:              8,
		Seed:                1,
	}
}

func TestNewGeneratorRejectsBadConfig(t *testing.T) {
	bad := []GeneratorConfig{
		{},
		{Symbol: "BTC/USDT", BasePrice: 0, Levels: 8},
		{Symbol: "BTC/USDT", BasePrice: 1, Levels: 0},
		{Symbol: "BTC/USDT", BasePrice: 1, Levels: 8, MaxJitterBps: -1},
		{Symbol: "BTC/USDT", BasePrice: 1, Levels: 8, TradeProbabilityPct: 101},
	}
	for i, cfg := range bad {
		if _, err := NewGenerator(cfg); err != exception.ErrConfigInvalid {
			t.Fatalf("config %d: got %v want ErrConfigInvalid", i, err)
		}
	}
}

func TestJitterStaysWithinBound(t *testing.T) {
	cfg := genConfig()
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	prev := cfg.BasePrice
	now := time.Now()
	for i := 0; i < 1_000; i++ {
		tick, _, _, _ := g.Next(now)

		bound := model.MulDiv(int64(prev), int64(cfg.MaxJitterBps), 10_000)
		delta := int64(tick.Price - prev)
		if delta < 0 {
			delta = -delta
		}
		if delta > bound {
			t.Fatalf("tick %d: price moved %d micros, bound %d", i, delta, bound)
		}
		if tick.Bid >= tick.Price || tick.Ask <= tick.Price {
			t.Fatalf("tick %d: bid %v price %v ask %v out of order", i, tick.Bid, tick.Price, tick.Ask)
		}
		if tick.High24h < tick.Price || tick.Low24h > tick.Price {
			t.Fatalf("tick %d: high/low excludes price", i)
		}
		prev = tick.Price
	}
}

func TestLadderShapeAndAmountFloor(t *testing.T) {
	cfg := genConfig()
	g, _ := NewGenerator(cfg)

	now := time.Now()
	for i := 0; i < 100; i++ {
		_, bids, asks, _ := g.Next(now)
		if len(bids) != cfg.Levels || len(asks) != cfg.Levels {
			t.Fatalf("tick %d: ladder lengths %d/%d want %d", i, len(bids), len(asks), cfg.Levels)
		}

		for j := range bids {
			if bids[j].Amount < minLevelAmount || asks[j].Amount < minLevelAmount {
				t.Fatalf("tick %d level %d: amount below floor", i, j)
			}
			if j == 0 {
				continue
			}
			if bids[j].Price >= bids[j-1].Price {
				t.Fatalf("tick %d: bids not strictly descending at %d", i, j)
			}
			if asks[j].Price <= asks[j-1].Price {
				t.Fatalf("tick %d: asks not strictly ascending at %d", i, j)
			}
			if bids[j].Total != bids[j-1].Total+bids[j].Amount {
				t.Fatalf("tick %d: bid totals not cumulative at %d", i, j)
			}
		}
	}
}

func TestTradeProbabilityExtremes(t *testing.T) {
	never := genConfig()
	never.TradeProbabilityPct = 0
	g, _ := NewGenerator(never)
	now := time.Now()
	for i := 0; i < 200; i++ {
		if _, _, _, trades := g.Next(now); len(trades) != 0 {
			t.Fatalf("probability 0 produced a trade at tick %d", i)
		}
	}

	always := genConfig()
	always.TradeProbabilityPct = 100
	g, _ = NewGenerator(always)
	var lastID uint64
	for i := 0; i < 200; i++ {
		_, _, _, trades := g.Next(now)
		if len(trades) != 1 {
			t.Fatalf("probability 100 skipped a trade at tick %d", i)
		}
		if trades[0].ID <= lastID {
			t.Fatalf("trade ids not increasing: %d after %d", trades[0].ID, lastID)
		}
		lastID = trades[0].ID
	}
}

func TestSameSeedSameStream(t *testing.T) {
	a, _ := NewGenerator(genConfig())
	b, _ := NewGenerator(genConfig())

	now := time.Unix(0, 1_700_000_000_000_000_000)
	for i := 0; i < 50; i++ {
		tickA, bidsA, asksA, tradesA := a.Next(now)
		tickB, bidsB, asksB, tradesB := b.Next(now)

		if tickA != tickB {
			t.Fatalf("tick %d diverged: %+v vs %+v", i, tickA, tickB)
		}
		if !reflect.DeepEqual(bidsA, bidsB) || !reflect.DeepEqual(asksA, asksB) {
			t.Fatalf("tick %d: ladders diverged", i)
		}
		if !reflect.DeepEqual(tradesA, tradesB) {
			t.Fatalf("tick %d: trades diverged", i)
		}
	}
}
