package strategy

import (
	"sort"

	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// Threshold is one named numeric knob with hard bounds. The convention
// across all strategies is "smaller value = looser entry": loosening scales
// a threshold down toward its floor, tightening scales it up toward its
// ceiling.
type Threshold struct {
	// Value is the current effective value.
	Value float64 `json:"value"`
	// Floor is the hard safety minimum; no adjustment may go below it.
	Floor float64 `json:"floor"`
	// Ceiling is the hard maximum; no adjustment may go above it.
	Ceiling float64 `json:"ceiling"`
}

// ThresholdSet is the enumerated set of tunable knobs a strategy exposes.
// Only the adaptive controller mutates it, and only between scan cycles for
// the owning strategy, so no locking is needed.
type ThresholdSet struct {
	thresholds map[string]*Threshold
}

// NewThresholdSet creates an empty threshold set.
func NewThresholdSet() *ThresholdSet {
	return &ThresholdSet{
		thresholds: make(map[string]*Threshold),
	}
}

// Register adds a named threshold. Registering the same name twice or a
// value outside [floor, ceiling] is an error.
func (ts *ThresholdSet) Register(name string, value, floor, ceiling float64) error {
	if _, exists := ts.thresholds[name]; exists {
		return errors.Newf(errors.ErrCodeInvalidParameter, "threshold %q already registered", name)
	}

	if floor > ceiling {
		return errors.Newf(errors.ErrCodeInvalidParameter, "threshold %q: floor %f above ceiling %f", name, floor, ceiling)
	}

	if value < floor || value > ceiling {
		return errors.Newf(errors.ErrCodeInvalidParameter, "threshold %q: value %f outside [%f, %f]", name, value, floor, ceiling)
	}

	ts.thresholds[name] = &Threshold{Value: value, Floor: floor, Ceiling: ceiling}

	return nil
}

// Get returns the current value of a threshold.
func (ts *ThresholdSet) Get(name string) (float64, bool) {
	t, ok := ts.thresholds[name]
	if !ok {
		return 0, false
	}

	return t.Value, true
}

// Set assigns a value to a threshold, clamped into [floor, ceiling].
// Unknown names are ignored.
func (ts *ThresholdSet) Set(name string, value float64) {
	t, ok := ts.thresholds[name]
	if !ok {
		return
	}

	t.Value = clamp(value, t.Floor, t.Ceiling)
}

// ScaleAll multiplies every threshold by factor, clamping each result into
// its own [floor, ceiling]. factor < 1 loosens, factor > 1 tightens.
func (ts *ThresholdSet) ScaleAll(factor float64) {
	for _, t := range ts.thresholds {
		t.Value = clamp(t.Value*factor, t.Floor, t.Ceiling)
	}
}

// Names returns the registered threshold names, sorted.
func (ts *ThresholdSet) Names() []string {
	names := make([]string, 0, len(ts.thresholds))
	for name := range ts.thresholds {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Values returns a copy of the current values keyed by name.
func (ts *ThresholdSet) Values() map[string]float64 {
	values := make(map[string]float64, len(ts.thresholds))
	for name, t := range ts.thresholds {
		values[name] = t.Value
	}

	return values
}

// Apply sets every named value from the given map, clamping each into its
// bounds. Names not registered are ignored.
func (ts *ThresholdSet) Apply(values map[string]float64) {
	for name, v := range values {
		ts.Set(name, v)
	}
}

// Bounds returns the floor and ceiling of a threshold.
func (ts *ThresholdSet) Bounds(name string) (floor, ceiling float64, ok bool) {
	t, exists := ts.thresholds[name]
	if !exists {
		return 0, 0, false
	}

	return t.Floor, t.Ceiling, true
}

func clamp(v, floor, ceiling float64) float64 {
	if v < floor {
		return floor
	}

	if v > ceiling {
		return ceiling
	}

	return v
}
