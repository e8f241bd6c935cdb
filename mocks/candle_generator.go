package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/quantrail-lab/quantrail/internal/types"
)

// CandleGenerator produces realistic candle series for tests, replay
// fixtures and benchmarks.
type CandleGenerator struct {
	rng *rand.Rand
}

// NewCandleGenerator creates a generator seeded for reproducible output.
func NewCandleGenerator(seed int64) *CandleGenerator {
	return &CandleGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures one generated series.
type GeneratorConfig struct {
	// Instrument names the generated instrument, e.g. "GBP_USD".
	Instrument string
	// StartTime is the first candle's open time.
	StartTime time.Time
	// Interval is the duration of one candle.
	Interval time.Duration
	// Count is the number of candles to generate.
	Count int
	// InitialPrice is the first candle's open.
	InitialPrice float64
	// Volatility controls per-candle movement (0.002 = 0.2% per candle).
	Volatility float64
	// Trend is the total drift over the series, negative for bearish.
	Trend float64
	// VolumeBase is the average volume per candle.
	VolumeBase float64
	// VolumeVariance is the relative volume spread in [0,1].
	VolumeVariance float64
}

// DefaultGeneratorConfig returns a neutral major-pair series.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Instrument:     "GBP_USD",
		StartTime:      time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC),
		Interval:       5 * time.Minute,
		Count:          1000,
		InitialPrice:   1.2700,
		Volatility:     0.0005,
		Trend:          0,
		VolumeBase:     1000,
		VolumeVariance: 0.3,
	}
}

// Generate creates one candle series following geometric Brownian motion.
func (g *CandleGenerator) Generate(config GeneratorConfig) []types.Candle {
	candles := make([]types.Candle, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice

		// Box-Muller transform for a normally distributed step.
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(config.Count)

		cls := open * (1 + config.Volatility*z + drift)
		if cls <= 0 {
			cls = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, cls) + highExtension

		low := math.Min(open, cls) - lowExtension
		if low <= 0 {
			low = math.Min(open, cls) * 0.99
		}

		volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance

		volume := config.VolumeBase * volumeVariation
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		candles[i] = types.Candle{
			Instrument: config.Instrument,
			Time:       currentTime,
			Open:       roundToDecimals(open, 5),
			High:       roundToDecimals(high, 5),
			Low:        roundToDecimals(low, 5),
			Close:      roundToDecimals(cls, 5),
			Volume:     roundToDecimals(volume, 2),
		}

		currentPrice = cls
		currentTime = currentTime.Add(config.Interval)
	}

	return candles
}

// GenerateMulti creates a series per instrument, keyed by instrument. Initial
// price and volatility vary slightly per instrument.
func (g *CandleGenerator) GenerateMulti(instruments []string, baseConfig GeneratorConfig) map[string][]types.Candle {
	out := make(map[string][]types.Candle, len(instruments))

	for _, instrument := range instruments {
		config := baseConfig
		config.Instrument = instrument
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		out[instrument] = g.Generate(config)
	}

	return out
}

func roundToDecimals(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))

	return math.Round(value*factor) / factor
}
