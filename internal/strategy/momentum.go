package strategy

import (
	"math"
	"sort"
	"time"

	"github.com/quantrail-lab/quantrail/internal/indicator"
	"github.com/quantrail-lab/quantrail/internal/types"
)

// Momentum default knob values. All knobs follow the "smaller = looser"
// convention so the adaptive controller can scale them uniformly.
const (
	momentumDefaultRSIEdge       = 10.0 // distance from RSI 50 required to enter
	momentumRSIEdgeFloor         = 2.0
	momentumRSIEdgeCeiling       = 25.0
	momentumDefaultMinMomentum   = 0.30 // EMA gap in ATR multiples
	momentumMinMomentumFloor     = 0.05
	momentumMinMomentumCeiling   = 1.50
	momentumDefaultMinConfidence = 0.55
	momentumMinConfidenceFloor   = 0.30
	momentumMinConfidenceCeiling = 0.90
)

const (
	momentumRSIPeriod      = 14
	momentumFastEMAPeriod  = 9
	momentumSlowEMAPeriod  = 21
	momentumATRPeriod      = 14
	momentumDefaultHistory = 64
	momentumStopATR        = 1.5
	momentumTargetATR      = 2.5
)

// Momentum trades in the direction of an established move: RSI away from
// neutral, fast EMA pulled away from the slow EMA by a minimum ATR-scaled
// gap.
type Momentum struct {
	name         string
	thresholds   *ThresholdSet
	allowedZones []types.KillZone
	historySize  int

	// minInterval is a live-only guard; the replay engine may scale it via
	// RelaxGuards.
	minInterval     time.Duration
	liveMinInterval time.Duration

	// lastSignalAt tracks the most recent signal per instrument.
	lastSignalAt map[string]time.Time
}

func newMomentum(name string, params Params) (*Momentum, error) {
	thresholds := NewThresholdSet()

	if err := thresholds.Register("rsi_edge", momentumDefaultRSIEdge, momentumRSIEdgeFloor, momentumRSIEdgeCeiling); err != nil {
		return nil, err
	}

	if err := thresholds.Register("min_momentum", momentumDefaultMinMomentum, momentumMinMomentumFloor, momentumMinMomentumCeiling); err != nil {
		return nil, err
	}

	if err := thresholds.Register("min_confidence", momentumDefaultMinConfidence, momentumMinConfidenceFloor, momentumMinConfidenceCeiling); err != nil {
		return nil, err
	}

	thresholds.Apply(params.Thresholds)

	historySize := params.HistorySize
	if historySize <= 0 {
		historySize = momentumDefaultHistory
	}

	return &Momentum{
		name:            name,
		thresholds:      thresholds,
		allowedZones:    params.AllowedZones,
		historySize:     historySize,
		minInterval:     params.MinInterval,
		liveMinInterval: params.MinInterval,
		lastSignalAt:    make(map[string]time.Time),
	}, nil
}

// Name implements Strategy.
func (m *Momentum) Name() string {
	return m.name
}

// Thresholds implements Tunable.
func (m *Momentum) Thresholds() *ThresholdSet {
	return m.thresholds
}

// AllowedZones implements SessionRestricted.
func (m *Momentum) AllowedZones() []types.KillZone {
	return m.allowedZones
}

// RelaxGuards implements GuardRelaxable.
func (m *Momentum) RelaxGuards(multipliers GuardMultipliers) {
	m.minInterval = time.Duration(float64(m.liveMinInterval) * multipliers.MinIntervalFactor)
}

// Evaluate implements Strategy. Instruments are visited in sorted order so
// the signal order, and therefore the admission order, is deterministic.
func (m *Momentum) Evaluate(snapshot types.Snapshot) ([]types.Signal, error) {
	rsiEdge, _ := m.thresholds.Get("rsi_edge")
	minMomentum, _ := m.thresholds.Get("min_momentum")
	minConfidence, _ := m.thresholds.Get("min_confidence")

	instruments := make([]string, 0, len(snapshot.Candles))
	for instrument := range snapshot.Candles {
		instruments = append(instruments, instrument)
	}

	sort.Strings(instruments)

	var signals []types.Signal

	for _, instrument := range instruments {
		candles := snapshot.Candles[instrument]
		if len(candles) > m.historySize {
			candles = candles[len(candles)-m.historySize:]
		}

		if last, ok := m.lastSignalAt[instrument]; ok && m.minInterval > 0 {
			if snapshot.Time.Sub(last) < m.minInterval {
				continue
			}
		}

		rsi, err := indicator.RSI(candles, momentumRSIPeriod)
		if err != nil {
			continue
		}

		fast, err := indicator.EMA(candles, momentumFastEMAPeriod)
		if err != nil {
			continue
		}

		slow, err := indicator.EMA(candles, momentumSlowEMAPeriod)
		if err != nil {
			continue
		}

		atr, err := indicator.ATR(candles, momentumATRPeriod)
		if err != nil || atr <= 0 {
			continue
		}

		price := candles[len(candles)-1].Close
		if quote, ok := snapshot.Quotes[instrument]; ok {
			price = quote.Mid()
		}

		gap := (fast - slow) / atr

		var side types.Side

		switch {
		case rsi >= 50+rsiEdge && gap >= minMomentum:
			side = types.SideBuy
		case rsi <= 50-rsiEdge && -gap >= minMomentum:
			side = types.SideSell
		default:
			continue
		}

		absGap := math.Abs(gap)
		confidence := clamp(0.5+(math.Abs(rsi-50)-rsiEdge)/50*0.25+(absGap-minMomentum)*0.25, 0, 1)

		if confidence < minConfidence {
			continue
		}

		strength := clamp(absGap/(minMomentum*3), 0, 1)

		stop := price - momentumStopATR*atr
		target := price + momentumTargetATR*atr

		if side == types.SideSell {
			stop = price + momentumStopATR*atr
			target = price - momentumTargetATR*atr
		}

		signals = append(signals, types.Signal{
			Instrument:   instrument,
			Side:         side,
			EntryPrice:   price,
			StopLoss:     stop,
			TakeProfit:   target,
			Confidence:   confidence,
			Strength:     strength,
			StrategyName: m.name,
			ProducedAt:   snapshot.Time,
			Reason:       "momentum continuation",
		})

		m.lastSignalAt[instrument] = snapshot.Time
	}

	return signals, nil
}
