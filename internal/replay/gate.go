package replay

import "fmt"

// Band is the acceptable trades-per-day range for a strategy.
type Band struct {
	// MinPerDay is the lower bound, inclusive.
	MinPerDay float64 `yaml:"min_per_day" json:"min_per_day" validate:"gte=0"`
	// MaxPerDay is the upper bound, inclusive. Zero means unbounded.
	MaxPerDay float64 `yaml:"max_per_day" json:"max_per_day" validate:"omitempty,gtfield=MinPerDay"`
}

// GateStatus is the deploy-gate verdict for one strategy.
type GateStatus string

const (
	// GatePass: the estimated trade rate sits inside the band.
	GatePass GateStatus = "PASS"
	// GateZeroTrades: the replay produced no trades at all.
	GateZeroTrades GateStatus = "ZERO_TRADES"
	// GateBelowBand: the trade rate is under the band's lower bound.
	GateBelowBand GateStatus = "BELOW_BAND"
	// GateAboveBand: the trade rate is over the band's upper bound.
	GateAboveBand GateStatus = "ABOVE_BAND"
	// GateLoadError: the replay itself failed.
	GateLoadError GateStatus = "LOAD_ERROR"
)

// GateResult is one row of the deploy-gate verdict table.
type GateResult struct {
	StrategyName string     `json:"strategy_name"`
	Status       GateStatus `json:"status"`
	TradesPerDay float64    `json:"trades_per_day"`
	Trades       int        `json:"trades"`
	AvgQuality   float64    `json:"avg_quality"`
	// Suggestion is the human-readable parameter direction printed when the
	// gate fails. Empty on pass.
	Suggestion string `json:"suggestion,omitempty"`
}

// Passed reports whether the strategy may deploy.
func (g GateResult) Passed() bool {
	return g.Status == GatePass
}

// EvaluateGate checks a replay report against the band and, on failure,
// names the direction the strategy's thresholds should move.
func EvaluateGate(report *Report, band Band) GateResult {
	result := GateResult{
		StrategyName: report.StrategyName,
		Status:       GatePass,
		TradesPerDay: report.TradesPerDay,
		Trades:       report.Wins + report.Losses,
		AvgQuality:   report.AvgQuality,
		Suggestion:   "",
	}

	switch {
	case result.Trades == 0:
		result.Status = GateZeroTrades
		result.Suggestion = "no trades in the replay window; loosen entry thresholds (lower min_confidence or the entry edge) or widen the session restriction"
	case report.TradesPerDay < band.MinPerDay:
		result.Status = GateBelowBand
		result.Suggestion = fmt.Sprintf("%.2f trades/day is under the %.2f minimum; loosen entry thresholds slightly", report.TradesPerDay, band.MinPerDay)
	case band.MaxPerDay > 0 && report.TradesPerDay > band.MaxPerDay:
		result.Status = GateAboveBand
		result.Suggestion = fmt.Sprintf("%.2f trades/day exceeds the %.2f maximum; tighten entry thresholds or raise the quality cutoff", report.TradesPerDay, band.MaxPerDay)
	}

	return result
}

// GateLoadFailure builds the result row for a strategy whose replay errored.
func GateLoadFailure(strategyName string, err error) GateResult {
	return GateResult{
		StrategyName: strategyName,
		Status:       GateLoadError,
		TradesPerDay: 0,
		Trades:       0,
		AvgQuality:   0,
		Suggestion:   fmt.Sprintf("replay failed: %v", err),
	}
}
