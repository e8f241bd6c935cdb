package types

import "time"

// Candle is the normalized OHLCV bar used everywhere in the system.
type Candle struct {
	Instrument string    `yaml:"instrument" json:"instrument" csv:"instrument"`
	Time       time.Time `yaml:"time" json:"time" csv:"time"`
	Open       float64   `yaml:"open" json:"open" csv:"open"`
	High       float64   `yaml:"high" json:"high" csv:"high"`
	Low        float64   `yaml:"low" json:"low" csv:"low"`
	Close      float64   `yaml:"close" json:"close" csv:"close"`
	Volume     float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Quote is the current two-sided price for an instrument.
type Quote struct {
	Instrument string    `json:"instrument"`
	Time       time.Time `json:"time"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
}

// Mid returns the midpoint between bid and ask.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Spread returns the ask-bid distance.
func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// Snapshot is the market view handed to a strategy for one evaluation.
// It contains only data available at Time; the replay engine relies on this
// to guarantee no look-ahead.
type Snapshot struct {
	// Time is the evaluation instant.
	Time time.Time
	// Quotes holds the current price per instrument.
	Quotes map[string]Quote
	// Candles holds the recent history per instrument, oldest first. The
	// last candle's time is never after Time.
	Candles map[string][]Candle
	// Zone is the session bucket Time falls into.
	Zone KillZone
}

// Granularity identifies a candle interval.
type Granularity string

const (
	Granularity1m  Granularity = "1m"
	Granularity5m  Granularity = "5m"
	Granularity15m Granularity = "15m"
	Granularity1h  Granularity = "1h"
	Granularity4h  Granularity = "4h"
	Granularity1d  Granularity = "1d"
)

// Duration returns the wall-clock length of one candle at this granularity.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Granularity1m:
		return time.Minute
	case Granularity5m:
		return 5 * time.Minute
	case Granularity15m:
		return 15 * time.Minute
	case Granularity1h:
		return time.Hour
	case Granularity4h:
		return 4 * time.Hour
	case Granularity1d:
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}
