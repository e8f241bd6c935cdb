package types

import "time"

// SkipReason names why an account/strategy pair or a signal was skipped
// during a scan cycle.
type SkipReason string

const (
	// SkipSessionBlocked: the strategy is session-restricted and the current
	// kill zone is disallowed.
	SkipSessionBlocked SkipReason = "SessionBlocked"
	// SkipPriceFetch: the price fetch for an instrument failed; retried next
	// cycle.
	SkipPriceFetch SkipReason = "PriceFetch"
	// SkipPositionFetch: reading open positions failed for the account.
	SkipPositionFetch SkipReason = "PositionFetch"
	// SkipEvaluateError: the strategy's Evaluate call returned an error.
	SkipEvaluateError SkipReason = "EvaluateError"
	// SkipLowQuality: the quality scorer classified the signal as Reject.
	SkipLowQuality SkipReason = "LowQuality"
	// SkipInactive: the account binding is marked inactive.
	SkipInactive SkipReason = "Inactive"
	// SkipUnknownStrategy: the binding references a strategy not in the
	// registry.
	SkipUnknownStrategy SkipReason = "UnknownStrategy"
	// SkipDuplicateOpen: a simulated trade is already open on the signal's
	// instrument during replay.
	SkipDuplicateOpen SkipReason = "DuplicateOpen"
	// SkipMinInterval: the strategy's minimum time between trades has not
	// elapsed yet.
	SkipMinInterval SkipReason = "MinInterval"
)

// ScanReport aggregates the outcome of one full scan cycle.
type ScanReport struct {
	// StartedAt is when the cycle began.
	StartedAt time.Time `json:"started_at"`
	// Duration is the wall-clock length of the cycle.
	Duration time.Duration `json:"duration"`
	// PairsScanned counts account/strategy pairs evaluated this cycle.
	PairsScanned int `json:"pairs_scanned"`
	// PairsFailed counts pairs whose evaluation errored entirely.
	PairsFailed int `json:"pairs_failed"`
	// SignalsByStrategy counts signals emitted per strategy name.
	SignalsByStrategy map[string]int `json:"signals_by_strategy"`
	// SkipsByReason counts skips per reason.
	SkipsByReason map[SkipReason]int `json:"skips_by_reason"`
	// Executed counts orders that reached the broker and were accepted.
	Executed int `json:"executed"`
	// Rejected counts signals refused by admission checks.
	Rejected int `json:"rejected"`
	// Failed counts submissions the broker rejected or errored.
	Failed int `json:"failed"`
}

// NewScanReport creates an empty report stamped with the cycle start time.
func NewScanReport(startedAt time.Time) *ScanReport {
	return &ScanReport{
		StartedAt:         startedAt,
		Duration:          0,
		PairsScanned:      0,
		PairsFailed:       0,
		SignalsByStrategy: make(map[string]int),
		SkipsByReason:     make(map[SkipReason]int),
		Executed:          0,
		Rejected:          0,
		Failed:            0,
	}
}

// TotalSignals returns the number of signals emitted across all strategies.
func (r *ScanReport) TotalSignals() int {
	total := 0
	for _, n := range r.SignalsByStrategy {
		total += n
	}

	return total
}

// Skip records one skip for the given reason.
func (r *ScanReport) Skip(reason SkipReason) {
	r.SkipsByReason[reason]++
}

// FullyFailed reports whether every scanned pair failed. A cycle that
// scanned nothing is not considered failed.
func (r *ScanReport) FullyFailed() bool {
	return r.PairsScanned > 0 && r.PairsFailed == r.PairsScanned
}
