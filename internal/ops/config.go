// Package ops loads the runtime configuration and resolves it into
// validated, scaled values.
package ops

import (
	"encoding/json"
	"os"
	"time"

	"main/internal/feed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/policy"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// Feed source kinds.
const (
	SourceSynthetic = "synthetic"
	SourceExternal  = "external"
)

// FileConfig mirrors the JSON config layout. Monetary fields are
// decimal strings; they are scaled to micros during resolution.
type FileConfig struct {
	Feed    FeedConfig            `json:"feed"`
	Book    BookConfig            `json:"book"`
	Tiers   map[string]TierConfig `json:"tiers"`
	Journal JournalConfig         `json:"journal"`
}

// FeedConfig describes where ticks come from and how they behave.
type FeedConfig struct {
	Source              string `json:"source"`
	URL                 string `json:"url"`
	Symbol              string `json:"symbol"`
	TickPeriodMs        int    `json:"tickPeriodMs"`
	PriceJitterMaxBps   int64  `json:"priceJitterMaxBps"`
	SpreadBps           int64  `json:"spreadBps"`
	TradeProbabilityPct int    `json:"tradeProbabilityPct"`
	BasePrice           string `json:"basePrice"`
	Seed                int64  `json:"seed"`
	TolerateStale       bool   `json:"tolerateStale"`
	StaleAfterMs        int    `json:"staleAfterMs"`
}

// BookConfig sizes the order book store.
type BookConfig struct {
	Levels               int `json:"levels"`
	RecentTradesCapacity int `json:"recentTradesCapacity"`
}

// TierConfig is one tier permission row.
type TierConfig struct {
	OrderTypes     []string `json:"orderTypes"`
	MaxLeverage    int      `json:"maxLeverage"`
	MaxOrderAmount string   `json:"maxOrderAmount"`
}

// JournalConfig holds the optional postgres journal settings.
type JournalConfig struct {
	DSN string `json:"dsn"`
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	FeedSource    string
	FeedURL       string
	Symbol        string
	TickPeriod    time.Duration
	Generator     feed.GeneratorConfig
	StaleAfter    time.Duration
	TolerateStale bool
	BookLevels    int
	TradeCapacity int
	Tiers         *policy.Table
	JournalDSN    string
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrapf(exception.ErrConfigInvalid, "unmarshal config: %+v", err)
	}
	return Resolve(cfg)
}

// Resolve applies defaults and validates a parsed config.
func Resolve(cfg FileConfig) (Loaded, error) {
	applyDefaults(&cfg)

	if cfg.Feed.Source != SourceSynthetic && cfg.Feed.Source != SourceExternal {
		return Loaded{}, errors.Wrapf(exception.ErrConfigInvalid, "unknown feed source %q", cfg.Feed.Source)
	}
	if cfg.Feed.Source == SourceExternal && cfg.Feed.URL == "" {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "external feed needs a url")
	}
	if cfg.Feed.TickPeriodMs <= 0 {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "tick period must be > 0")
	}
	if cfg.Feed.StaleAfterMs <= 0 {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "stale threshold must be > 0")
	}
	if cfg.Book.Levels <= 0 || cfg.Book.RecentTradesCapacity <= 0 {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "book sizing must be > 0")
	}

	basePrice, err := model.ParseMicros(cfg.Feed.BasePrice)
	if err != nil {
		return Loaded{}, errors.Wrapf(exception.ErrConfigInvalid, "base price: %+v", err)
	}
	if basePrice <= 0 {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "base price must be > 0")
	}

	table, err := buildTiers(cfg.Tiers)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{
		FeedSource: cfg.Feed.Source,
		FeedURL:    cfg.Feed.URL,
		Symbol:     cfg.Feed.Symbol,
		TickPeriod: time.Duration(cfg.Feed.TickPeriodMs) * time.Millisecond,
		Generator: feed.GeneratorConfig{
			Symbol:              cfg.Feed.Symbol,
			BasePrice:           model.Price(basePrice),
			MaxJitterBps:        model.Bps(cfg.Feed.PriceJitterMaxBps),
			SpreadBps:           model.Bps(cfg.Feed.SpreadBps),
			TradeProbabilityPct: cfg.Feed.TradeProbabilityPct,
			Levels:              cfg.Book.Levels,
			Seed:                cfg.Feed.Seed,
		},
		StaleAfter:    time.Duration(cfg.Feed.StaleAfterMs) * time.Millisecond,
		TolerateStale: cfg.Feed.TolerateStale,
		BookLevels:    cfg.Book.Levels,
		TradeCapacity: cfg.Book.RecentTradesCapacity,
		Tiers:         table,
		JournalDSN:    cfg.Journal.DSN,
	}, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Feed.Source == "" {
		cfg.Feed.Source = SourceSynthetic
	}
	if cfg.Feed.Symbol == "" {
		cfg.Feed.Symbol = "BTC/USDT"
	}
	if cfg.Feed.TickPeriodMs == 0 {
		cfg.Feed.TickPeriodMs = 1_000
	}
	if cfg.Feed.PriceJitterMaxBps == 0 {
		cfg.Feed.PriceJitterMaxBps = 10
	}
	if cfg.Feed.SpreadBps == 0 {
		cfg.Feed.SpreadBps = 10
	}
	if cfg.Feed.TradeProbabilityPct == 0 {
		cfg.Feed.TradeProbabilityPct = 30
	}
	if cfg.Feed.BasePrice == "" {
		cfg.Feed.BasePrice = "43250"
	}
	if cfg.Feed.StaleAfterMs == 0 {
		cfg.Feed.StaleAfterMs = 5_000
	}
	if cfg.Book.Levels == 0 {
		cfg.Book.Levels = 8
	}
	if cfg.Book.RecentTradesCapacity == 0 {
		cfg.Book.RecentTradesCapacity = 10
	}
}

func buildTiers(rows map[string]TierConfig) (*policy.Table, error) {
	if len(rows) == 0 {
		return policy.DefaultTable(), nil
	}

	rules := make(map[enum.Tier]policy.Rule, len(rows))
	for name, row := range rows {
		tier, ok := enum.ParseTier(name)
		if !ok {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "unknown tier %q", name)
		}

		if len(row.OrderTypes) == 0 {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "tier %q allows no order types", name)
		}
		types := make([]enum.OrderType, 0, len(row.OrderTypes))
		for _, s := range row.OrderTypes {
			orderType, ok := enum.ParseOrderType(s)
			if !ok {
				return nil, errors.Wrapf(exception.ErrConfigInvalid, "tier %q: unknown order type %q", name, s)
			}
			types = append(types, orderType)
		}

		if row.MaxLeverage <= 0 {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "tier %q: leverage must be > 0", name)
		}
		amount, err := model.ParseMicros(row.MaxOrderAmount)
		if err != nil || amount <= 0 {
			return nil, errors.Wrapf(exception.ErrConfigInvalid, "tier %q: bad max order amount %q", name, row.MaxOrderAmount)
		}

		rules[tier] = policy.Rule{
			OrderTypes:     types,
			MaxLeverage:    row.MaxLeverage,
			MaxOrderAmount: model.Notional(amount),
		}
	}
	return policy.NewTable(rules), nil
}
