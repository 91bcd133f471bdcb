package enum

// Tier classifies a caller for order permissions and limits.
type Tier uint8

const (
	_tier_beg Tier = iota
	TierBasic
	TierPro
	TierElite
	_tier_end
)

func (t Tier) IsAvailable() bool {
	return t > _tier_beg && t < _tier_end
}

func (t Tier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierPro:
		return "pro"
	case TierElite:
		return "elite"
	default:
		return "unknown"
	}
}

// ParseTier maps config strings to a Tier.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "basic":
		return TierBasic, true
	case "pro":
		return TierPro, true
	case "elite":
		return TierElite, true
	default:
		return 0, false
	}
}
