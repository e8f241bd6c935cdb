package types

import "time"

// KillZone is a named time-of-day bucket used for session-based trading
// restrictions and transient threshold relaxation.
type KillZone string

const (
	// KillZoneAsia covers the Tokyo session.
	KillZoneAsia KillZone = "Asia"
	// KillZoneLondonOpen covers the first hours of the London session.
	KillZoneLondonOpen KillZone = "LondonOpen"
	// KillZoneOverlap covers the London/New York overlap, the highest
	// liquidity window of the trading day.
	KillZoneOverlap KillZone = "Overlap"
	// KillZoneNewYork covers the remaining New York session after London
	// closes.
	KillZoneNewYork KillZone = "NewYork"
	// KillZoneOffSession covers everything else.
	KillZoneOffSession KillZone = "OffSession"
)

// Session boundaries in UTC hours. Fixed-UTC buckets are a deliberate
// simplification; DST shifts move the true session edges by an hour twice a
// year.
const (
	asiaStartHour    = 0
	asiaEndHour      = 6
	londonStartHour  = 7
	overlapStartHour = 12
	overlapEndHour   = 16
	newYorkEndHour   = 21
)

// KillZoneAt maps a timestamp to its session bucket. Weekends are always
// OffSession.
func KillZoneAt(t time.Time) KillZone {
	utc := t.UTC()

	switch utc.Weekday() {
	case time.Saturday, time.Sunday:
		return KillZoneOffSession
	}

	hour := utc.Hour()

	switch {
	case hour >= asiaStartHour && hour < asiaEndHour:
		return KillZoneAsia
	case hour >= londonStartHour && hour < overlapStartHour:
		return KillZoneLondonOpen
	case hour >= overlapStartHour && hour < overlapEndHour:
		return KillZoneOverlap
	case hour >= overlapEndHour && hour < newYorkEndHour:
		return KillZoneNewYork
	default:
		return KillZoneOffSession
	}
}

// HighLiquidity reports whether the zone is one of the designated
// high-liquidity windows eligible for transient threshold relaxation.
func (z KillZone) HighLiquidity() bool {
	return z == KillZoneLondonOpen || z == KillZoneOverlap
}
