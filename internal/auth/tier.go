package auth

import (
	"fmt"

	"github.com/tripgate/tripgate/internal/apierror"
)

// Tier is a subscription tier. Tiers are strictly ordered; access to a
// gated feature is granted when the account's tier ranks at or above
// the cheapest tier the feature accepts.
type Tier string

// Subscription tiers, cheapest first.
const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

// tierRanks orders the known tiers. Unknown tiers rank below free so a
// corrupt tier value never grants access.
var tierRanks = map[Tier]int{
	TierFree:       0,
	TierPro:        1,
	TierBusiness:   2,
	TierEnterprise: 3,
}

// Rank returns the tier's position in the ordering, or -1 for unknown
// tiers.
func (t Tier) Rank() int {
	rank, ok := tierRanks[t]
	if !ok {
		return -1
	}
	return rank
}

// Known reports whether the tier is one of the defined tiers.
func (t Tier) Known() bool {
	_, ok := tierRanks[t]
	return ok
}

// ParseTier validates a stored tier value.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Known() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// RequireTier checks the user's tier against the tiers a feature
// accepts. An empty accepted set means the feature is ungated. The
// denial names the cheapest accepted tier, preferring the first one the
// caller listed when several share a rank.
func RequireTier(user Tier, feature string, accepted ...Tier) error {
	if len(accepted) == 0 {
		return nil
	}

	cheapest := accepted[0]
	for _, t := range accepted[1:] {
		if rankOrBottom(t) < rankOrBottom(cheapest) {
			cheapest = t
		}
	}

	if user.Rank() >= rankOrBottom(cheapest) {
		return nil
	}

	return apierror.SubscriptionRequired(feature, string(cheapest))
}

// rankOrBottom treats unknown accepted tiers as free so a typo in a
// feature gate fails open to the broadest audience rather than locking
// everyone out.
func rankOrBottom(t Tier) int {
	if rank := t.Rank(); rank >= 0 {
		return rank
	}
	return 0
}
