// Package quality implements the composite signal quality scorer. Scoring
// is a pure function of its inputs so it is reusable unchanged by the live
// scheduler and the replay engine.
package quality

import (
	"github.com/quantrail-lab/quantrail/internal/types"
)

// Weights are the per-bucket point caps of the composite score. Each factor
// contributes factor*weight points, capped at the bucket weight; the weights
// are configuration, not hard logic.
type Weights struct {
	// Trend is the cap for trend alignment points.
	Trend float64 `yaml:"trend" json:"trend" validate:"gte=0"`
	// Momentum is the cap for momentum magnitude points.
	Momentum float64 `yaml:"momentum" json:"momentum" validate:"gte=0"`
	// Volatility is the cap for volatility quality points.
	Volatility float64 `yaml:"volatility" json:"volatility" validate:"gte=0"`
	// Structure is the cap for market-structure confirmation points.
	Structure float64 `yaml:"structure" json:"structure" validate:"gte=0"`
	// Session is the cap for session timing points.
	Session float64 `yaml:"session" json:"session" validate:"gte=0"`
	// RiskReward is the cap for risk:reward points.
	RiskReward float64 `yaml:"risk_reward" json:"risk_reward" validate:"gte=0"`
}

// Cutoffs are the classification boundaries on the composite score.
type Cutoffs struct {
	// Elite is the minimum score for the Elite band.
	Elite float64 `yaml:"elite" json:"elite" validate:"gte=0,lte=100"`
	// EliteMinConfidence is the additional confidence floor for Elite.
	EliteMinConfidence float64 `yaml:"elite_min_confidence" json:"elite_min_confidence" validate:"gte=0,lte=1"`
	// Good is the minimum score for the Good band.
	Good float64 `yaml:"good" json:"good" validate:"gte=0,lte=100"`
	// Moderate is the minimum score for the Moderate band; below is Reject.
	Moderate float64 `yaml:"moderate" json:"moderate" validate:"gte=0,lte=100"`
}

// DefaultWeights returns the standard bucket caps summing to 100.
func DefaultWeights() Weights {
	return Weights{
		Trend:      30,
		Momentum:   20,
		Volatility: 15,
		Structure:  15,
		Session:    10,
		RiskReward: 10,
	}
}

// DefaultCutoffs returns the standard classification boundaries.
func DefaultCutoffs() Cutoffs {
	return Cutoffs{
		Elite:              80,
		EliteMinConfidence: 0.70,
		Good:               65,
		Moderate:           50,
	}
}

// Scorer computes composite quality scores. It holds only configuration and
// performs no I/O or mutation.
type Scorer struct {
	weights Weights
	cutoffs Cutoffs
}

// NewScorer creates a scorer with the given weights and cutoffs.
func NewScorer(weights Weights, cutoffs Cutoffs) *Scorer {
	return &Scorer{
		weights: weights,
		cutoffs: cutoffs,
	}
}

// Score rates a signal's technical factors on a 0-100 scale. confidence is
// the signal's own conviction, used only for the Elite classification gate.
func (s *Scorer) Score(factors types.TechnicalFactors, confidence float64) types.QualityScore {
	score := bucket(factors.TrendAlignment, s.weights.Trend) +
		bucket(factors.MomentumMagnitude, s.weights.Momentum) +
		bucket(factors.VolatilityQuality, s.weights.Volatility) +
		bucket(factors.StructureConfirmation, s.weights.Structure) +
		bucket(factors.SessionTiming, s.weights.Session) +
		bucket(factors.RiskReward, s.weights.RiskReward)

	maxScore := s.weights.Trend + s.weights.Momentum + s.weights.Volatility +
		s.weights.Structure + s.weights.Session + s.weights.RiskReward

	// Normalize onto 0-100 when the configured caps do not sum to 100.
	if maxScore > 0 && maxScore != 100 {
		score = score / maxScore * 100
	}

	return types.QualityScore{
		Score:          score,
		Classification: s.classify(score, confidence),
	}
}

// ScoreSignal derives the technical factors the scorer needs directly from
// a signal and its market context, then scores them.
func (s *Scorer) ScoreSignal(signal types.Signal, zone types.KillZone) types.QualityScore {
	session := 0.3
	if zone.HighLiquidity() {
		session = 1.0
	} else if zone == types.KillZoneNewYork || zone == types.KillZoneAsia {
		session = 0.6
	}

	// Risk:reward of 3:1 or better earns the full bucket.
	rr := signal.RiskReward() / 3.0
	if rr > 1 {
		rr = 1
	}

	factors := types.TechnicalFactors{
		TrendAlignment:        signal.Strength,
		MomentumMagnitude:     signal.Strength,
		VolatilityQuality:     0.5,
		StructureConfirmation: signal.Confidence,
		SessionTiming:         session,
		RiskReward:            rr,
	}

	return s.Score(factors, signal.Confidence)
}

func (s *Scorer) classify(score, confidence float64) types.Classification {
	switch {
	case score >= s.cutoffs.Elite && confidence >= s.cutoffs.EliteMinConfidence:
		return types.ClassificationElite
	case score >= s.cutoffs.Good:
		return types.ClassificationGood
	case score >= s.cutoffs.Moderate:
		return types.ClassificationModerate
	default:
		return types.ClassificationReject
	}
}

// bucket converts a normalized factor into capped bucket points. Factors
// outside [0,1] are clamped so a single runaway input cannot dominate the
// composite.
func bucket(factor, weight float64) float64 {
	if factor < 0 {
		factor = 0
	}

	if factor > 1 {
		factor = 1
	}

	return factor * weight
}
