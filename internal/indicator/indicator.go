// Package indicator implements the technical indicator helpers used by the
// built-in strategies and the quality scorer.
//
// All functions operate on candle slices ordered oldest first and return a
// single value for the latest bar. They are pure and allocation-light; the
// scan loop calls them on every evaluation.
package indicator

import (
	"math"

	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// SMA returns the n-period simple moving average of Close for the latest bar.
func SMA(candles []types.Candle, n int) (float64, error) {
	if n <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "sma period must be positive, got %d", n)
	}

	if len(candles) < n {
		return 0, insufficient(n, candles)
	}

	var sum float64
	for _, c := range candles[len(candles)-n:] {
		sum += c.Close
	}

	return sum / float64(n), nil
}

// EMA returns the n-period exponential moving average of Close for the
// latest bar, seeded with the SMA of the first n closes.
func EMA(candles []types.Candle, n int) (float64, error) {
	if n <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "ema period must be positive, got %d", n)
	}

	if len(candles) < n {
		return 0, insufficient(n, candles)
	}

	var seed float64
	for _, c := range candles[:n] {
		seed += c.Close
	}

	ema := seed / float64(n)
	k := 2.0 / (float64(n) + 1.0)

	for _, c := range candles[n:] {
		ema = c.Close*k + ema*(1.0-k)
	}

	return ema, nil
}

// RSI returns the n-period Relative Strength Index for the latest bar using
// Wilder's smoothing.
func RSI(candles []types.Candle, n int) (float64, error) {
	if n <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "rsi period must be positive, got %d", n)
	}

	if len(candles) < n+1 {
		return 0, insufficient(n+1, candles)
	}

	var gain, loss float64

	for i := 1; i <= n; i++ {
		d := candles[i].Close - candles[i-1].Close
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}

	avgGain := gain / float64(n)
	avgLoss := loss / float64(n)

	for i := n + 1; i < len(candles); i++ {
		d := candles[i].Close - candles[i-1].Close

		up, down := 0.0, 0.0
		if d > 0 {
			up = d
		} else {
			down = -d
		}

		avgGain = (avgGain*float64(n-1) + up) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + down) / float64(n)
	}

	if avgLoss == 0 {
		return 100, nil
	}

	rs := avgGain / avgLoss

	return 100.0 - (100.0 / (1.0 + rs)), nil
}

// ATR returns the n-period Average True Range for the latest bar using
// Wilder's smoothing.
func ATR(candles []types.Candle, n int) (float64, error) {
	if n <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "atr period must be positive, got %d", n)
	}

	if len(candles) < n+1 {
		return 0, insufficient(n+1, candles)
	}

	var sum float64
	for i := 1; i <= n; i++ {
		sum += trueRange(candles[i], candles[i-1])
	}

	atr := sum / float64(n)

	for i := n + 1; i < len(candles); i++ {
		atr = (atr*float64(n-1) + trueRange(candles[i], candles[i-1])) / float64(n)
	}

	return atr, nil
}

// HighestHigh returns the maximum High over the last n candles.
func HighestHigh(candles []types.Candle, n int) (float64, error) {
	if len(candles) < n || n <= 0 {
		return 0, insufficient(n, candles)
	}

	highest := math.Inf(-1)
	for _, c := range candles[len(candles)-n:] {
		if c.High > highest {
			highest = c.High
		}
	}

	return highest, nil
}

// LowestLow returns the minimum Low over the last n candles.
func LowestLow(candles []types.Candle, n int) (float64, error) {
	if len(candles) < n || n <= 0 {
		return 0, insufficient(n, candles)
	}

	lowest := math.Inf(1)
	for _, c := range candles[len(candles)-n:] {
		if c.Low < lowest {
			lowest = c.Low
		}
	}

	return lowest, nil
}

func trueRange(cur, prev types.Candle) float64 {
	tr := cur.High - cur.Low

	if d := math.Abs(cur.High - prev.Close); d > tr {
		tr = d
	}

	if d := math.Abs(cur.Low - prev.Close); d > tr {
		tr = d
	}

	return tr
}

func insufficient(required int, candles []types.Candle) error {
	instrument := ""
	if len(candles) > 0 {
		instrument = candles[0].Instrument
	}

	return errors.NewInsufficientDataError(required, len(candles), instrument, "not enough candles for indicator")
}
