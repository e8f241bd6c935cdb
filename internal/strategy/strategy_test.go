package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantrail-lab/quantrail/internal/types"
)

type StrategyTestSuite struct {
	suite.Suite
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

// trendingCandles builds a steadily rising series that satisfies the
// momentum entry conditions on the latest bar.
func trendingCandles(instrument string, count int, start float64, step float64) []types.Candle {
	base := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, count)

	for i := range candles {
		price := start + float64(i)*step
		candles[i] = types.Candle{
			Instrument: instrument,
			Time:       base.Add(time.Duration(i) * 5 * time.Minute),
			Open:       price - step/2,
			High:       price + 0.0005,
			Low:        price - 0.0005,
			Close:      price,
			Volume:     1000,
		}
	}

	return candles
}

func snapshotFor(candles map[string][]types.Candle) types.Snapshot {
	var latest time.Time
	for _, series := range candles {
		if t := series[len(series)-1].Time; t.After(latest) {
			latest = t
		}
	}

	return types.Snapshot{
		Time:    latest,
		Quotes:  map[string]types.Quote{},
		Candles: candles,
		Zone:    types.KillZoneAt(latest),
	}
}

func (suite *StrategyTestSuite) TestNewUnknownType() {
	_, err := New("scalper", "s", Params{})
	suite.Error(err)
}

func (suite *StrategyTestSuite) TestMomentumEmitsBuyInUptrend() {
	s, err := New(TypeMomentum, "momentum", Params{})
	suite.Require().NoError(err)

	snap := snapshotFor(map[string][]types.Candle{
		"GBP_USD": trendingCandles("GBP_USD", 40, 1.1000, 0.0010),
	})

	signals, err := s.Evaluate(snap)
	suite.Require().NoError(err)
	suite.Require().Len(signals, 1)

	sig := signals[0]
	suite.Equal("GBP_USD", sig.Instrument)
	suite.Equal(types.SideBuy, sig.Side)
	suite.Equal("momentum", sig.StrategyName)
	suite.Equal(snap.Time, sig.ProducedAt)
	suite.Less(sig.StopLoss, sig.EntryPrice)
	suite.Greater(sig.TakeProfit, sig.EntryPrice)
	suite.GreaterOrEqual(sig.Confidence, 0.55)
	suite.LessOrEqual(sig.Confidence, 1.0)
}

func (suite *StrategyTestSuite) TestMomentumFlatMarketIsQuiet() {
	s, err := New(TypeMomentum, "momentum", Params{})
	suite.Require().NoError(err)

	snap := snapshotFor(map[string][]types.Candle{
		"GBP_USD": trendingCandles("GBP_USD", 40, 1.1000, 0),
	})

	signals, err := s.Evaluate(snap)
	suite.NoError(err)
	suite.Empty(signals)
}

func (suite *StrategyTestSuite) TestMomentumInsufficientHistoryIsQuiet() {
	s, err := New(TypeMomentum, "momentum", Params{})
	suite.Require().NoError(err)

	snap := snapshotFor(map[string][]types.Candle{
		"GBP_USD": trendingCandles("GBP_USD", 5, 1.1000, 0.0010),
	})

	signals, err := s.Evaluate(snap)
	suite.NoError(err)
	suite.Empty(signals)
}

func (suite *StrategyTestSuite) TestMomentumMinIntervalGuard() {
	s, err := New(TypeMomentum, "momentum", Params{MinInterval: time.Hour})
	suite.Require().NoError(err)

	candles := trendingCandles("GBP_USD", 40, 1.1000, 0.0010)
	snap := snapshotFor(map[string][]types.Candle{"GBP_USD": candles})

	signals, err := s.Evaluate(snap)
	suite.Require().NoError(err)
	suite.Len(signals, 1)

	// Five minutes later the guard is still active.
	later := snap
	later.Time = snap.Time.Add(5 * time.Minute)

	signals, err = s.Evaluate(later)
	suite.NoError(err)
	suite.Empty(signals)

	// Relaxing the guard to zero re-enables entries.
	relaxable, ok := s.(GuardRelaxable)
	suite.Require().True(ok)
	relaxable.RelaxGuards(GuardMultipliers{MinIntervalFactor: 0, DisablePullback: false})

	signals, err = s.Evaluate(later)
	suite.NoError(err)
	suite.Len(signals, 1)
}

func (suite *StrategyTestSuite) TestMomentumDeterministicInstrumentOrder() {
	s, err := New(TypeMomentum, "momentum", Params{})
	suite.Require().NoError(err)

	snap := snapshotFor(map[string][]types.Candle{
		"GBP_USD": trendingCandles("GBP_USD", 40, 1.1000, 0.0010),
		"EUR_USD": trendingCandles("EUR_USD", 40, 1.0500, 0.0010),
		"AUD_USD": trendingCandles("AUD_USD", 40, 0.6500, 0.0010),
	})

	signals, err := s.Evaluate(snap)
	suite.Require().NoError(err)
	suite.Require().Len(signals, 3)
	suite.Equal("AUD_USD", signals[0].Instrument)
	suite.Equal("EUR_USD", signals[1].Instrument)
	suite.Equal("GBP_USD", signals[2].Instrument)
}

// breakoutCandles builds a tight range followed by one candle closing well
// above it.
func breakoutCandles(instrument string, breakClose float64) []types.Candle {
	base := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, 0, 26)

	// A triangle sweep through the 1.1000..1.1040 range keeps per-bar true
	// range small relative to the range height, so the min_range_atr filter
	// passes.
	for i := 0; i < 25; i++ {
		var price float64
		if i <= 12 {
			price = 1.1000 + float64(i)*0.00033
		} else {
			price = 1.1040 - float64(i-12)*0.00033
		}

		candles = append(candles, types.Candle{
			Instrument: instrument,
			Time:       base.Add(time.Duration(i) * 5 * time.Minute),
			Open:       price,
			High:       price + 0.0002,
			Low:        price - 0.0002,
			Close:      price,
			Volume:     1000,
		})
	}

	candles = append(candles, types.Candle{
		Instrument: instrument,
		Time:       base.Add(25 * 5 * time.Minute),
		Open:       1.1030,
		High:       breakClose + 0.0005,
		Low:        1.1025,
		Close:      breakClose,
		Volume:     2000,
	})

	return candles
}

func (suite *StrategyTestSuite) TestBreakoutEmitsBuyOnFreshBreak() {
	s, err := New(TypeBreakout, "breakout", Params{})
	suite.Require().NoError(err)

	snap := snapshotFor(map[string][]types.Candle{
		"GBP_USD": breakoutCandles("GBP_USD", 1.1060),
	})

	signals, err := s.Evaluate(snap)
	suite.Require().NoError(err)
	suite.Require().Len(signals, 1)
	suite.Equal(types.SideBuy, signals[0].Side)
	suite.Equal("range breakout", signals[0].Reason)
}

func (suite *StrategyTestSuite) TestBreakoutInsideRangeIsQuiet() {
	s, err := New(TypeBreakout, "breakout", Params{})
	suite.Require().NoError(err)

	snap := snapshotFor(map[string][]types.Candle{
		"GBP_USD": breakoutCandles("GBP_USD", 1.1035),
	})

	signals, err := s.Evaluate(snap)
	suite.NoError(err)
	suite.Empty(signals)
}

func (suite *StrategyTestSuite) TestRegistry() {
	registry := NewRegistry()

	momentum, err := New(TypeMomentum, "momentum", Params{})
	suite.Require().NoError(err)
	breakout, err := New(TypeBreakout, "breakout", Params{})
	suite.Require().NoError(err)

	suite.NoError(registry.Register(momentum))
	suite.NoError(registry.Register(breakout))
	suite.Error(registry.Register(momentum), "duplicate registration")

	s, ok := registry.Get("momentum")
	suite.True(ok)
	suite.Equal("momentum", s.Name())

	_, ok = registry.Get("missing")
	suite.False(ok)

	suite.Equal([]string{"breakout", "momentum"}, registry.Names())
}

func (suite *StrategyTestSuite) TestTunableCapability() {
	s, err := New(TypeMomentum, "momentum", Params{Thresholds: map[string]float64{"min_confidence": 0.70}})
	suite.Require().NoError(err)

	tunable, ok := s.(Tunable)
	suite.Require().True(ok)

	v, ok := tunable.Thresholds().Get("min_confidence")
	suite.True(ok)
	suite.InDelta(0.70, v, 1e-9)
}
