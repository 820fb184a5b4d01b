// Package scaling converts raw, size-relative choice effects into concrete
// absolute deltas for a given account size. The same decision must read as a
// proportionally bigger number on a bigger account without letting huge
// accounts swing by absurd amounts for a single choice.
package scaling

import "math"

// The two exponents below are an empirically tuned pair: the dampener
// counteracts naive ratio×followers growth so that percentage-based effects
// track the same curve as absolute effects. Change one and the other no
// longer matches.
const (
	// ReferenceFollowers is the account size at which both multipliers
	// equal exactly 1.0.
	ReferenceFollowers = 35000.0

	// FollowerFloor guards the exponent math against tiny and zero
	// accounts. Anything below it scales as if it were this size.
	FollowerFloor = 1000.0

	absoluteExponent = 0.57
	dampenExponent   = 0.43

	minAbsoluteMultiplier = 0.1
	maxAbsoluteMultiplier = 500.0
)

// Cost is one recurring expense attached to a choice, in currency per month.
// MonthlyValue is the unscaled market price at the reference account size.
type Cost struct {
	Name         string  `json:"name"`
	MonthlyValue float64 `json:"monthly_value"`
}

// RawEffect is the unscaled effect of picking a choice. Ratios are signed
// fractions of the current follower count (0 = no change); EngagementDelta is
// whole percentage points applied directly, never ratio-scaled.
type RawEffect struct {
	FollowersRatio   float64 `json:"followers_ratio"`
	ViewsRatio       float64 `json:"views_ratio"`
	IncomeRatio      float64 `json:"income_ratio"`
	SubscribersRatio float64 `json:"subscribers_ratio"`
	EngagementDelta  int     `json:"engagement_delta"`
	Costs            []Cost  `json:"costs,omitempty"`
}

// IsZero reports whether the effect changes nothing when applied.
func (e RawEffect) IsZero() bool {
	return e.FollowersRatio == 0 &&
		e.ViewsRatio == 0 &&
		e.IncomeRatio == 0 &&
		e.SubscribersRatio == 0 &&
		e.EngagementDelta == 0 &&
		len(e.Costs) == 0
}

// ScaledCost is a cost row materialized at a specific account size.
type ScaledCost struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ScaledEffect holds the concrete deltas a RawEffect produces at a specific
// follower count. Engagement passes through unscaled.
type ScaledEffect struct {
	Followers   int64        `json:"followers"`
	Views       int64        `json:"views"`
	Income      int64        `json:"income"`
	Subscribers int64        `json:"subscribers"`
	Engagement  int          `json:"engagement"`
	Costs       []ScaledCost `json:"costs,omitempty"`
}

// effectiveFollowers applies the floor so the exponent math never sees a
// zero or negative base.
func effectiveFollowers(followers int64) float64 {
	if followers < int64(FollowerFloor) {
		return FollowerFloor
	}
	return float64(followers)
}

// AbsoluteMultiplier scales fixed currency amounts (costs) with account size:
// bigger creators pay enterprise prices. Clamped so tiny accounts still see
// meaningful numbers and huge accounts never get absurd single-decision jumps.
func AbsoluteMultiplier(followers int64) float64 {
	m := math.Pow(effectiveFollowers(followers)/ReferenceFollowers, absoluteExponent)
	if m < minAbsoluteMultiplier {
		return minAbsoluteMultiplier
	}
	if m > maxAbsoluteMultiplier {
		return maxAbsoluteMultiplier
	}
	return m
}

// PercentDampener counteracts ratio×followers growth for percentage-based
// effects. The companion of AbsoluteMultiplier: ratio × followers × dampener
// tracks the same curve as the absolute multiplier applied to a fixed base.
func PercentDampener(followers int64) float64 {
	return math.Pow(ReferenceFollowers/effectiveFollowers(followers), dampenExponent)
}

// Scale materializes a RawEffect against the follower count at the step being
// applied. Pure; a follower count of zero or below behaves as the floor.
func Scale(e RawEffect, followers int64) ScaledEffect {
	damp := PercentDampener(followers)
	base := effectiveFollowers(followers)

	scaled := ScaledEffect{
		Followers:   int64(math.Round(base * e.FollowersRatio * damp)),
		Views:       int64(math.Round(base * e.ViewsRatio * damp)),
		Income:      int64(math.Round(base * e.IncomeRatio * damp)),
		Subscribers: int64(math.Round(base * e.SubscribersRatio * damp)),
		Engagement:  e.EngagementDelta,
	}

	if len(e.Costs) > 0 {
		abs := AbsoluteMultiplier(followers)
		scaled.Costs = make([]ScaledCost, len(e.Costs))
		for i, c := range e.Costs {
			scaled.Costs[i] = ScaledCost{
				Name:  c.Name,
				Value: int64(math.Round(c.MonthlyValue * abs)),
			}
		}
	}

	return scaled
}
