package types

import "time"

// Side is the direction of a proposed trade.
type Side string

const (
	// SideBuy is a long entry.
	SideBuy Side = "BUY"
	// SideSell is a short entry.
	SideSell Side = "SELL"
)

// Signal is a strategy's proposed trade. A Signal is immutable once created:
// it is produced by exactly one Strategy.Evaluate call and consumed exactly
// once by the admission controller.
type Signal struct {
	// Instrument is the traded instrument, e.g. "GBP_USD".
	Instrument string `json:"instrument"`
	// Side is the trade direction.
	Side Side `json:"side"`
	// EntryPrice is the price the strategy saw when it produced the signal.
	EntryPrice float64 `json:"entry_price"`
	// StopLoss is the absolute stop price.
	StopLoss float64 `json:"stop_loss"`
	// TakeProfit is the absolute target price.
	TakeProfit float64 `json:"take_profit"`
	// Confidence is the strategy's own conviction in [0,1].
	Confidence float64 `json:"confidence"`
	// Strength is the magnitude of the underlying technical move in [0,1].
	Strength float64 `json:"strength"`
	// StrategyName identifies the producing strategy.
	StrategyName string `json:"strategy_name"`
	// ProducedAt is the snapshot time the signal was generated at.
	ProducedAt time.Time `json:"produced_at"`
	// Reason is a short human-readable explanation.
	Reason string `json:"reason"`
}

// StopDistance returns the absolute distance between entry and stop.
func (s Signal) StopDistance() float64 {
	d := s.EntryPrice - s.StopLoss
	if d < 0 {
		return -d
	}

	return d
}

// TargetDistance returns the absolute distance between entry and target.
func (s Signal) TargetDistance() float64 {
	d := s.TakeProfit - s.EntryPrice
	if d < 0 {
		return -d
	}

	return d
}

// RiskReward returns the target distance divided by the stop distance.
// Returns 0 when the stop distance is zero.
func (s Signal) RiskReward() float64 {
	stop := s.StopDistance()
	if stop == 0 {
		return 0
	}

	return s.TargetDistance() / stop
}
