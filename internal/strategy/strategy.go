// Package strategy defines the strategy capability interfaces, the
// enumerated threshold sets the adaptive controller tunes, and the built-in
// strategies.
package strategy

import (
	"time"

	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// Strategy evaluates a market snapshot and proposes zero or more trades.
// Implementations own their mutable state exclusively; Evaluate is never
// called concurrently for the same instance.
type Strategy interface {
	// Name returns the strategy's unique name.
	Name() string
	// Evaluate inspects the snapshot and returns proposed signals. The
	// returned order is the admission order; any ranking must happen here.
	Evaluate(snapshot types.Snapshot) ([]types.Signal, error)
}

// Tunable is the optional capability for strategies whose entry thresholds
// the adaptive controller may adjust.
type Tunable interface {
	// Thresholds returns the strategy's enumerated knob set.
	Thresholds() *ThresholdSet
}

// SessionRestricted is the optional capability for strategies that only
// trade inside specific kill zones.
type SessionRestricted interface {
	// AllowedZones returns the kill zones the strategy may trade in.
	AllowedZones() []types.KillZone
}

// GuardMultipliers relax live-only guards for backtesting. The replay
// engine applies them explicitly and echoes the values into its report;
// guards are never silently bypassed.
type GuardMultipliers struct {
	// MinIntervalFactor scales the minimum time between trades per
	// instrument. 1 keeps the live value; 0 disables the guard.
	MinIntervalFactor float64 `json:"min_interval_factor"`
	// DisablePullback turns off the pullback-required entry guard.
	DisablePullback bool `json:"disable_pullback"`
}

// LiveGuards returns multipliers that keep every guard at its live value.
func LiveGuards() GuardMultipliers {
	return GuardMultipliers{MinIntervalFactor: 1, DisablePullback: false}
}

// GuardRelaxable is the optional capability for strategies with live-only
// guards the replay engine may relax.
type GuardRelaxable interface {
	// RelaxGuards applies the multipliers to the strategy's guards.
	RelaxGuards(m GuardMultipliers)
}

// Params configures construction of a built-in strategy.
type Params struct {
	// Thresholds overrides the default knob values; keys missing from the
	// map keep their defaults. Values are clamped into the knob bounds.
	Thresholds map[string]float64
	// AllowedZones restricts trading to the listed kill zones. Empty means
	// unrestricted.
	AllowedZones []types.KillZone
	// MinInterval is the minimum time between trades per instrument.
	MinInterval time.Duration
	// HistorySize caps the candle history a strategy considers. Zero means
	// the built-in default.
	HistorySize int
}

// Strategy type names accepted by New.
const (
	TypeMomentum = "momentum"
	TypeBreakout = "breakout"
)

// New constructs a built-in strategy by type name. Each call returns a
// fresh instance with its own state; the replay engine depends on this to
// avoid sharing state with the live scheduler.
func New(typ, name string, params Params) (Strategy, error) {
	switch typ {
	case TypeMomentum:
		return newMomentum(name, params)
	case TypeBreakout:
		return newBreakout(name, params)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown strategy type %q", typ)
	}
}
