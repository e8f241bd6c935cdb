package strategy

import (
	"sort"
	"time"

	"github.com/quantrail-lab/quantrail/internal/indicator"
	"github.com/quantrail-lab/quantrail/internal/types"
)

// Breakout default knob values, "smaller = looser".
const (
	breakoutDefaultMargin        = 0.20 // ATR multiples beyond the range edge
	breakoutMarginFloor          = 0.02
	breakoutMarginCeiling        = 1.00
	breakoutDefaultMinRange      = 1.50 // range height in ATR multiples
	breakoutMinRangeFloor        = 0.50
	breakoutMinRangeCeiling      = 5.00
	breakoutDefaultMinConfidence = 0.50
	breakoutMinConfidenceFloor   = 0.30
	breakoutMinConfidenceCeiling = 0.90
)

const (
	breakoutLookback       = 20
	breakoutATRPeriod      = 14
	breakoutDefaultHistory = 48
	breakoutStopATR        = 1.2
	breakoutTargetATR      = 2.0
)

// Breakout trades closes beyond the recent range by a margin. The
// pullback-required guard only accepts the first close past the edge; the
// replay engine may disable it via RelaxGuards.
type Breakout struct {
	name         string
	thresholds   *ThresholdSet
	allowedZones []types.KillZone
	historySize  int

	minInterval     time.Duration
	liveMinInterval time.Duration
	pullbackGuard   bool

	lastSignalAt map[string]time.Time
}

func newBreakout(name string, params Params) (*Breakout, error) {
	thresholds := NewThresholdSet()

	if err := thresholds.Register("breakout_margin", breakoutDefaultMargin, breakoutMarginFloor, breakoutMarginCeiling); err != nil {
		return nil, err
	}

	if err := thresholds.Register("min_range_atr", breakoutDefaultMinRange, breakoutMinRangeFloor, breakoutMinRangeCeiling); err != nil {
		return nil, err
	}

	if err := thresholds.Register("min_confidence", breakoutDefaultMinConfidence, breakoutMinConfidenceFloor, breakoutMinConfidenceCeiling); err != nil {
		return nil, err
	}

	thresholds.Apply(params.Thresholds)

	historySize := params.HistorySize
	if historySize <= 0 {
		historySize = breakoutDefaultHistory
	}

	return &Breakout{
		name:            name,
		thresholds:      thresholds,
		allowedZones:    params.AllowedZones,
		historySize:     historySize,
		minInterval:     params.MinInterval,
		liveMinInterval: params.MinInterval,
		pullbackGuard:   true,
		lastSignalAt:    make(map[string]time.Time),
	}, nil
}

// Name implements Strategy.
func (b *Breakout) Name() string {
	return b.name
}

// Thresholds implements Tunable.
func (b *Breakout) Thresholds() *ThresholdSet {
	return b.thresholds
}

// AllowedZones implements SessionRestricted.
func (b *Breakout) AllowedZones() []types.KillZone {
	return b.allowedZones
}

// RelaxGuards implements GuardRelaxable.
func (b *Breakout) RelaxGuards(multipliers GuardMultipliers) {
	b.minInterval = time.Duration(float64(b.liveMinInterval) * multipliers.MinIntervalFactor)
	b.pullbackGuard = !multipliers.DisablePullback
}

// Evaluate implements Strategy.
func (b *Breakout) Evaluate(snapshot types.Snapshot) ([]types.Signal, error) {
	margin, _ := b.thresholds.Get("breakout_margin")
	minRange, _ := b.thresholds.Get("min_range_atr")
	minConfidence, _ := b.thresholds.Get("min_confidence")

	instruments := make([]string, 0, len(snapshot.Candles))
	for instrument := range snapshot.Candles {
		instruments = append(instruments, instrument)
	}

	sort.Strings(instruments)

	var signals []types.Signal

	for _, instrument := range instruments {
		candles := snapshot.Candles[instrument]
		if len(candles) > b.historySize {
			candles = candles[len(candles)-b.historySize:]
		}

		// Need the lookback window plus the breaking candle.
		if len(candles) < breakoutLookback+1 {
			continue
		}

		if last, ok := b.lastSignalAt[instrument]; ok && b.minInterval > 0 {
			if snapshot.Time.Sub(last) < b.minInterval {
				continue
			}
		}

		window := candles[:len(candles)-1]
		current := candles[len(candles)-1]

		high, err := indicator.HighestHigh(window, breakoutLookback)
		if err != nil {
			continue
		}

		low, err := indicator.LowestLow(window, breakoutLookback)
		if err != nil {
			continue
		}

		atr, err := indicator.ATR(candles, breakoutATRPeriod)
		if err != nil || atr <= 0 {
			continue
		}

		if (high-low)/atr < minRange {
			continue
		}

		prevClose := window[len(window)-1].Close

		var (
			side  types.Side
			depth float64
		)

		switch {
		case current.Close >= high+margin*atr:
			if b.pullbackGuard && prevClose >= high {
				// Not a fresh break; the previous close was already outside.
				continue
			}

			side = types.SideBuy
			depth = (current.Close - high) / atr
		case current.Close <= low-margin*atr:
			if b.pullbackGuard && prevClose <= low {
				continue
			}

			side = types.SideSell
			depth = (low - current.Close) / atr
		default:
			continue
		}

		confidence := clamp(0.45+depth*0.5, 0, 1)
		if confidence < minConfidence {
			continue
		}

		strength := clamp(depth, 0, 1)

		price := current.Close
		if quote, ok := snapshot.Quotes[instrument]; ok {
			price = quote.Mid()
		}

		stop := price - breakoutStopATR*atr
		target := price + breakoutTargetATR*atr

		if side == types.SideSell {
			stop = price + breakoutStopATR*atr
			target = price - breakoutTargetATR*atr
		}

		signals = append(signals, types.Signal{
			Instrument:   instrument,
			Side:         side,
			EntryPrice:   price,
			StopLoss:     stop,
			TakeProfit:   target,
			Confidence:   confidence,
			Strength:     strength,
			StrategyName: b.name,
			ProducedAt:   snapshot.Time,
			Reason:       "range breakout",
		})

		b.lastSignalAt[instrument] = snapshot.Time
	}

	return signals, nil
}
