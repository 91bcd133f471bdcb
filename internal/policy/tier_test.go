package policy

import (
	"testing"

	"main/internal/model"
	"main/internal/model/enum"
)

func TestAllowedKnownTier(t *testing.T) {
	table := DefaultTable()

	rule := table.Allowed(enum.TierElite)
	if !rule.AllowsType(enum.OrderTypeStop) {
		t.Fatalf("elite tier should allow stop orders")
	}
	if rule.MaxLeverage != 20 {
		t.Fatalf("elite max leverage: got %d want 20", rule.MaxLeverage)
	}
}

func TestAllowedUnknownTierFallsBack(t *testing.T) {
	table := DefaultTable()

	rule := table.Allowed(enum.Tier(200))
	if rule.AllowsType(enum.OrderTypeLimit) {
		t.Fatalf("fallback rule should be market-only")
	}
	if !rule.AllowsType(enum.OrderTypeMarket) {
		t.Fatalf("fallback rule should allow market orders")
	}
}

func TestNewTableSynthesizesFallback(t *testing.T) {
	table := NewTable(map[enum.Tier]Rule{
		enum.TierPro: {
			OrderTypes:     []enum.OrderType{enum.OrderTypeLimit},
			MaxLeverage:    5,
			MaxOrderAmount: model.Notional(10 * model.UnitMicros),
		},
	})

	rule := table.Allowed(enum.TierBasic)
	if !rule.AllowsType(enum.OrderTypeMarket) || rule.MaxLeverage != 1 {
		t.Fatalf("synthesized fallback mismatch: %+v", rule)
	}
}

func TestBasicTierRejectsLimit(t *testing.T) {
	rule := DefaultTable().Allowed(enum.TierBasic)
	if rule.AllowsType(enum.OrderTypeLimit) {
		t.Fatalf("basic tier must be market-only")
	}
}
