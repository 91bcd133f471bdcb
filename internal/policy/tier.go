// Package policy is the tier permission table consulted at order
// submission. It is pure lookup: an order accepted under a tier stays
// valid even if the table is rebuilt later.
package policy

import (
	"main/internal/model"
	"main/internal/model/enum"
)

// Rule is what a tier is allowed to do.
type Rule struct {
	OrderTypes     []enum.OrderType
	MaxLeverage    int
	MaxOrderAmount model.Notional
}

// AllowsType reports whether the rule permits the order type.
func (r Rule) AllowsType(t enum.OrderType) bool {
	for _, allowed := range r.OrderTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// Table maps tiers to rules. Unknown tiers resolve to the fallback,
// the most restrictive row.
type Table struct {
	rules    map[enum.Tier]Rule
	fallback Rule
}

// NewTable builds a table. The basic tier rule becomes the fallback;
// when no basic rule exists, a market-only 1x rule is synthesized.
func NewTable(rules map[enum.Tier]Rule) *Table {
	table := &Table{rules: make(map[enum.Tier]Rule, len(rules))}
	for tier, rule := range rules {
		table.rules[tier] = rule
	}

	fallback, ok := table.rules[enum.TierBasic]
	if !ok {
		fallback = Rule{
			OrderTypes:     []enum.OrderType{enum.OrderTypeMarket},
			MaxLeverage:    1,
			MaxOrderAmount: model.Notional(1_000 * model.UnitMicros),
		}
	}
	table.fallback = fallback
	return table
}

// Allowed returns the rule for a tier.
func (t *Table) Allowed(tier enum.Tier) Rule {
	if rule, ok := t.rules[tier]; ok {
		return rule
	}
	return t.fallback
}

// DefaultTable mirrors the shipped tier configuration and backs tests
// and configs that omit the tiers section.
func DefaultTable() *Table {
	return NewTable(map[enum.Tier]Rule{
		enum.TierBasic: {
			OrderTypes:     []enum.OrderType{enum.OrderTypeMarket},
			MaxLeverage:    1,
			MaxOrderAmount: model.Notional(1_000 * model.UnitMicros),
		},
		enum.TierPro: {
			OrderTypes:     []enum.OrderType{enum.OrderTypeMarket, enum.OrderTypeLimit},
			MaxLeverage:    5,
			MaxOrderAmount: model.Notional(50_000 * model.UnitMicros),
		},
		enum.TierElite: {
			OrderTypes:     []enum.OrderType{enum.OrderTypeMarket, enum.OrderTypeLimit, enum.OrderTypeStop},
			MaxLeverage:    20,
			MaxOrderAmount: model.Notional(1_000_000 * model.UnitMicros),
		},
	})
}
