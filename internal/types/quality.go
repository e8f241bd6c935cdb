package types

// Classification buckets a quality score into an actionability band.
type Classification string

const (
	// ClassificationElite is the top band; requires a minimum confidence on
	// top of the score cutoff.
	ClassificationElite Classification = "Elite"
	// ClassificationGood is the second band.
	ClassificationGood Classification = "Good"
	// ClassificationModerate is the lowest tradeable band.
	ClassificationModerate Classification = "Moderate"
	// ClassificationReject marks a signal not worth trading.
	ClassificationReject Classification = "Reject"
)

// QualityScore is a derived, non-persisted annotation on a Signal. Scores
// are comparable across strategies.
type QualityScore struct {
	// Score is the composite rating in [0,100].
	Score float64 `json:"score"`
	// Classification is the band the score falls into.
	Classification Classification `json:"classification"`
}

// Tradeable reports whether the classification permits admission.
func (c Classification) Tradeable() bool {
	return c != ClassificationReject
}

// TechnicalFactors are the normalized inputs to the quality scorer. Each
// factor is in [0,1]; the scorer applies configured bucket weights.
type TechnicalFactors struct {
	// TrendAlignment measures agreement between the trade direction and the
	// prevailing trend.
	TrendAlignment float64 `json:"trend_alignment"`
	// MomentumMagnitude measures the size of the momentum move.
	MomentumMagnitude float64 `json:"momentum_magnitude"`
	// VolatilityQuality measures whether current volatility is in the
	// tradeable range (neither dead nor chaotic).
	VolatilityQuality float64 `json:"volatility_quality"`
	// StructureConfirmation measures market-structure agreement (breaks,
	// pullbacks, higher highs/lows).
	StructureConfirmation float64 `json:"structure_confirmation"`
	// SessionTiming measures how favorable the current session window is.
	SessionTiming float64 `json:"session_timing"`
	// RiskReward is the signal's target distance over stop distance,
	// normalized by the scorer.
	RiskReward float64 `json:"risk_reward"`
}
