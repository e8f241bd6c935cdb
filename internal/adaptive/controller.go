// Package adaptive implements the threshold controller that keeps each
// strategy producing a target signal rate without manual tuning, while
// bounding drift via the per-threshold floors and ceilings.
package adaptive

import (
	"time"

	"go.uber.org/zap"

	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/strategy"
	"github.com/quantrail-lab/quantrail/internal/types"
)

// Config tunes the adaptation rules.
type Config struct {
	// Interval is the minimum time between adaptations per strategy.
	Interval time.Duration `yaml:"interval" json:"interval"`
	// NoSignalAfter is the silence duration that triggers loosening.
	NoSignalAfter time.Duration `yaml:"no_signal_after" json:"no_signal_after"`
	// MinSampleSize is the minimum signals since the last adaptation before
	// the win-rate rules may fire.
	MinSampleSize int `yaml:"min_sample_size" json:"min_sample_size" validate:"gte=1"`
	// LowWinRate is the cutoff below which thresholds tighten.
	LowWinRate float64 `yaml:"low_win_rate" json:"low_win_rate" validate:"gte=0,lte=1"`
	// HighWinRate is the cutoff above which thresholds loosen.
	HighWinRate float64 `yaml:"high_win_rate" json:"high_win_rate" validate:"gte=0,lte=1"`
	// LoosenFraction is the fractional decrease applied when loosening.
	LoosenFraction float64 `yaml:"loosen_fraction" json:"loosen_fraction" validate:"gt=0,lt=1"`
	// TightenFraction is the fractional increase applied when tightening.
	TightenFraction float64 `yaml:"tighten_fraction" json:"tighten_fraction" validate:"gt=0,lt=1"`
	// SessionRelax is the transient fractional relaxation applied inside
	// high-liquidity kill zones. Zero disables the overlay.
	SessionRelax float64 `yaml:"session_relax" json:"session_relax" validate:"gte=0,lt=1"`
}

// DefaultConfig returns the standard adaptation settings.
func DefaultConfig() Config {
	return Config{
		Interval:        30 * time.Minute,
		NoSignalAfter:   60 * time.Minute,
		MinSampleSize:   10,
		LowWinRate:      0.60,
		HighWinRate:     0.80,
		LoosenFraction:  0.10,
		TightenFraction: 0.05,
		SessionRelax:    0.10,
	}
}

// Counters holds the rolling per-strategy observation window. Reset to zero
// whenever an adaptation fires.
type Counters struct {
	// LastSignalTime is when the strategy last produced a signal.
	LastSignalTime time.Time `json:"last_signal_time"`
	// LastAdaptationTime is when an adaptation rule last fired.
	LastAdaptationTime time.Time `json:"last_adaptation_time"`
	// SignalsSinceAdaptation counts signals in the current window.
	SignalsSinceAdaptation int `json:"signals_since_adaptation"`
	// WinsSinceAdaptation counts winning outcomes in the current window.
	WinsSinceAdaptation int `json:"wins_since_adaptation"`
	// LossesSinceAdaptation counts losing outcomes in the current window.
	LossesSinceAdaptation int `json:"losses_since_adaptation"`
}

// RecordSignal notes that the strategy produced a signal at now.
func (c *Counters) RecordSignal(now time.Time) {
	c.LastSignalTime = now
	c.SignalsSinceAdaptation++
}

// RecordOutcome notes a closed trade outcome.
func (c *Counters) RecordOutcome(win bool) {
	if win {
		c.WinsSinceAdaptation++
	} else {
		c.LossesSinceAdaptation++
	}
}

// WinRate returns the rolling win rate and whether any outcomes exist.
func (c *Counters) WinRate() (float64, bool) {
	total := c.WinsSinceAdaptation + c.LossesSinceAdaptation
	if total == 0 {
		return 0, false
	}

	return float64(c.WinsSinceAdaptation) / float64(total), true
}

func (c *Counters) reset(now time.Time) {
	c.LastAdaptationTime = now
	c.SignalsSinceAdaptation = 0
	c.WinsSinceAdaptation = 0
	c.LossesSinceAdaptation = 0
}

// overlayState records the transient session relaxation for one strategy so
// it can be exactly reverted. The baseline is always the current adaptive
// baseline; transient and adaptive adjustments never compound.
type overlayState struct {
	baseline map[string]float64
	active   bool
}

// Controller applies the adaptation rules. It is invoked from within the
// scan cycle (never a separate timer) so it always sees a consistent
// counters snapshot, and it is the only code that mutates thresholds.
type Controller struct {
	config   Config
	log      *logger.Logger
	overlays map[string]*overlayState
}

// NewController creates a controller with the given configuration.
func NewController(config Config, log *logger.Logger) *Controller {
	return &Controller{
		config:   config,
		log:      log,
		overlays: make(map[string]*overlayState),
	}
}

// Tick runs one adaptation pass for the named strategy. At most one rule
// fires per invocation; a tick inside the adaptation interval is a no-op
// apart from overlay maintenance. Rules, in priority order:
//
//  1. Silence: no signal for NoSignalAfter loosens every threshold by
//     LoosenFraction, floor-clamped.
//  2. Cold streak: at least MinSampleSize signals with a win rate below
//     LowWinRate tightens by TightenFraction, ceiling-clamped.
//  3. Hot streak: win rate above HighWinRate loosens by LoosenFraction.
func (a *Controller) Tick(name string, thresholds *strategy.ThresholdSet, counters *Counters, now time.Time) {
	overlay := a.overlays[name]
	if overlay == nil {
		overlay = &overlayState{baseline: nil, active: false}
		a.overlays[name] = overlay
	}

	// Work on the adaptive baseline: lift the transient overlay before any
	// rule evaluation so adjustments never stack on a relaxed value.
	if overlay.active {
		thresholds.Apply(overlay.baseline)
		overlay.active = false
	}

	defer a.applyOverlay(name, overlay, thresholds, now)

	// First tick for this strategy: seed the observation window instead of
	// reacting to an empty history.
	if counters.LastSignalTime.IsZero() {
		counters.LastSignalTime = now
	}

	if counters.LastAdaptationTime.IsZero() {
		counters.LastAdaptationTime = now

		return
	}

	if now.Sub(counters.LastAdaptationTime) < a.config.Interval {
		return
	}

	winRate, haveOutcomes := counters.WinRate()

	switch {
	case now.Sub(counters.LastSignalTime) > a.config.NoSignalAfter:
		thresholds.ScaleAll(1 - a.config.LoosenFraction)
		counters.reset(now)
		a.log.Info("thresholds loosened: no recent signals",
			zap.String("strategy", name),
			zap.Duration("silence", now.Sub(counters.LastSignalTime)),
			zap.Any("thresholds", thresholds.Values()),
		)
	case counters.SignalsSinceAdaptation >= a.config.MinSampleSize && haveOutcomes && winRate < a.config.LowWinRate:
		thresholds.ScaleAll(1 + a.config.TightenFraction)
		counters.reset(now)
		a.log.Info("thresholds tightened: low win rate",
			zap.String("strategy", name),
			zap.Float64("win_rate", winRate),
			zap.Any("thresholds", thresholds.Values()),
		)
	case haveOutcomes && winRate > a.config.HighWinRate:
		thresholds.ScaleAll(1 - a.config.LoosenFraction)
		counters.reset(now)
		a.log.Info("thresholds loosened: high win rate",
			zap.String("strategy", name),
			zap.Float64("win_rate", winRate),
			zap.Any("thresholds", thresholds.Values()),
		)
	}
}

// applyOverlay re-applies the transient session relaxation on top of the
// (possibly just adapted) baseline when inside a high-liquidity window.
func (a *Controller) applyOverlay(name string, overlay *overlayState, thresholds *strategy.ThresholdSet, now time.Time) {
	if a.config.SessionRelax <= 0 {
		return
	}

	if !types.KillZoneAt(now).HighLiquidity() {
		overlay.baseline = nil

		return
	}

	overlay.baseline = thresholds.Values()
	thresholds.ScaleAll(1 - a.config.SessionRelax)
	overlay.active = true

	a.log.Debug("session overlay applied",
		zap.String("strategy", name),
		zap.Float64("relax", a.config.SessionRelax),
	)
}
