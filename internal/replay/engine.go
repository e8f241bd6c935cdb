// Package replay runs historical candle series through the live Strategy
// interface to estimate signal frequency and quality before deployment.
package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/quality"
	"github.com/quantrail-lab/quantrail/internal/strategy"
	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// CloseReason names how a simulated trade was closed.
type CloseReason string

const (
	// CloseStop: the stop price was touched.
	CloseStop CloseReason = "stop"
	// CloseTarget: the target price was touched.
	CloseTarget CloseReason = "target"
	// CloseEndOfSeries: the series ended with the trade still open.
	CloseEndOfSeries CloseReason = "end_of_series"
)

// Trade is one simulated round trip. IDs are sequential so two replays of
// the same input produce byte-identical trade lists.
type Trade struct {
	ID         string          `json:"id"`
	Instrument string          `json:"instrument"`
	Side       types.Side      `json:"side"`
	EntryPrice float64         `json:"entry_price"`
	ExitPrice  float64         `json:"exit_price"`
	OpenedAt   time.Time       `json:"opened_at"`
	ClosedAt   time.Time       `json:"closed_at"`
	PnL        decimal.Decimal `json:"pnl"`
	Win        bool            `json:"win"`
	Reason     CloseReason     `json:"reason"`

	stopLoss   float64
	takeProfit float64
}

// Options controls one replay run.
type Options struct {
	// HistorySize caps the candle window handed to the strategy per
	// snapshot. Zero means 64.
	HistorySize int
	// Guards relaxes live-only strategy guards. The values are echoed into
	// the report so a run is reproducible from its output.
	Guards strategy.GuardMultipliers
	// Scorer filters signals when set; signals classified Reject are
	// counted under LowQuality and open no trade.
	Scorer *quality.Scorer
}

// DefaultOptions disables the live-only guards the way parameter sweeps
// usually want them.
func DefaultOptions() Options {
	return Options{
		HistorySize: 64,
		Guards:      strategy.GuardMultipliers{MinIntervalFactor: 0, DisablePullback: true},
		Scorer:      nil,
	}
}

// Engine replays candle series. It shares no state with the live scheduler;
// construct a fresh Strategy instance per run.
type Engine struct {
	log *logger.Logger
}

// NewEngine creates a replay engine.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{log: log}
}

// Replay walks the merged candle timeline once, oldest first, feeding the
// strategy only data visible at each instant. Stops are checked before
// targets inside a candle, the pessimistic reading when both are touched.
func (e *Engine) Replay(strat strategy.Strategy, series map[string][]types.Candle, options Options) (*Report, error) {
	if len(series) == 0 {
		return nil, errors.New(errors.ErrCodeEmptySeries, "replay needs at least one candle series")
	}

	for instrument, candles := range series {
		if len(candles) == 0 {
			return nil, errors.Newf(errors.ErrCodeEmptySeries, "empty candle series for %s", instrument)
		}
	}

	historySize := options.HistorySize
	if historySize <= 0 {
		historySize = 64
	}

	if relaxable, ok := strat.(strategy.GuardRelaxable); ok {
		relaxable.RelaxGuards(options.Guards)
	}

	timeline := mergeTimeline(series)
	report := newReport(strat.Name(), options.Guards, timeline[0], timeline[len(timeline)-1])

	// cursor[i] is the count of candles of instruments[i] visible so far.
	instruments := sortedKeys(series)
	cursor := make(map[string]int, len(instruments))

	open := make(map[string]*Trade)
	nextTradeID := 1

	for _, ts := range timeline {
		// Advance each instrument's cursor to candles closed at or before ts.
		for _, instrument := range instruments {
			candles := series[instrument]
			for cursor[instrument] < len(candles) && !candles[cursor[instrument]].Time.After(ts) {
				cursor[instrument]++
			}
		}

		// Exit checks first, against the candle that just closed. Trades
		// opened later in this iteration only see subsequent candles.
		for _, instrument := range instruments {
			trade, ok := open[instrument]
			if !ok {
				continue
			}

			idx := cursor[instrument] - 1
			if idx < 0 {
				continue
			}

			candle := series[instrument][idx]
			if !candle.Time.Equal(ts) || !candle.Time.After(trade.OpenedAt) {
				continue
			}

			if closed := checkExit(trade, candle); closed {
				report.recordTrade(*trade)
				delete(open, instrument)
			}
		}

		snapshot := buildSnapshot(ts, series, cursor, historySize)

		signals, err := strat.Evaluate(snapshot)
		if err != nil {
			report.Skips[types.SkipEvaluateError]++

			e.log.Debug("evaluate failed during replay",
				zap.Time("ts", ts),
				zap.Error(err),
			)

			continue
		}

		for _, signal := range signals {
			if _, exists := series[signal.Instrument]; !exists {
				return nil, errors.Newf(errors.ErrCodeReplayInvariant,
					"signal references instrument %s absent from the series", signal.Instrument)
			}

			report.Signals++

			if _, already := open[signal.Instrument]; already {
				report.Skips[types.SkipDuplicateOpen]++

				continue
			}

			if options.Scorer != nil {
				score := options.Scorer.ScoreSignal(signal, snapshot.Zone)
				if !score.Classification.Tradeable() {
					report.Skips[types.SkipLowQuality]++

					continue
				}

				report.addQuality(score.Score)
			}

			open[signal.Instrument] = &Trade{
				ID:         fmt.Sprintf("sim-%04d", nextTradeID),
				Instrument: signal.Instrument,
				Side:       signal.Side,
				EntryPrice: signal.EntryPrice,
				ExitPrice:  0,
				OpenedAt:   ts,
				ClosedAt:   time.Time{},
				PnL:        decimal.Zero,
				Win:        false,
				Reason:     "",
				stopLoss:   signal.StopLoss,
				takeProfit: signal.TakeProfit,
			}
			nextTradeID++
		}
	}

	// Force-close whatever is still open at the last available price.
	for _, instrument := range instruments {
		trade, ok := open[instrument]
		if !ok {
			continue
		}

		last := series[instrument][len(series[instrument])-1]
		closeTrade(trade, last.Close, last.Time, CloseEndOfSeries)
		report.recordTrade(*trade)
	}

	report.finalize()

	return report, nil
}

// checkExit closes the trade if the candle touches its stop or target. The
// stop is checked first.
func checkExit(trade *Trade, candle types.Candle) bool {
	if trade.Side == types.SideBuy {
		if trade.stopLoss > 0 && candle.Low <= trade.stopLoss {
			closeTrade(trade, trade.stopLoss, candle.Time, CloseStop)

			return true
		}

		if trade.takeProfit > 0 && candle.High >= trade.takeProfit {
			closeTrade(trade, trade.takeProfit, candle.Time, CloseTarget)

			return true
		}

		return false
	}

	if trade.stopLoss > 0 && candle.High >= trade.stopLoss {
		closeTrade(trade, trade.stopLoss, candle.Time, CloseStop)

		return true
	}

	if trade.takeProfit > 0 && candle.Low <= trade.takeProfit {
		closeTrade(trade, trade.takeProfit, candle.Time, CloseTarget)

		return true
	}

	return false
}

func closeTrade(trade *Trade, price float64, at time.Time, reason CloseReason) {
	trade.ExitPrice = price
	trade.ClosedAt = at
	trade.Reason = reason

	entry := decimal.NewFromFloat(trade.EntryPrice)
	exit := decimal.NewFromFloat(price)

	if trade.Side == types.SideBuy {
		trade.PnL = exit.Sub(entry)
	} else {
		trade.PnL = entry.Sub(exit)
	}

	trade.Win = trade.PnL.IsPositive()
}

// buildSnapshot assembles the market view at ts from candles already closed.
// Quotes are synthesized from each instrument's latest close.
func buildSnapshot(ts time.Time, series map[string][]types.Candle, cursor map[string]int, historySize int) types.Snapshot {
	quotes := make(map[string]types.Quote, len(series))
	windows := make(map[string][]types.Candle, len(series))

	for instrument, candles := range series {
		visible := cursor[instrument]
		if visible == 0 {
			continue
		}

		start := visible - historySize
		if start < 0 {
			start = 0
		}

		windows[instrument] = candles[start:visible]

		last := candles[visible-1]
		quotes[instrument] = types.Quote{
			Instrument: instrument,
			Time:       last.Time,
			Bid:        last.Close,
			Ask:        last.Close,
		}
	}

	return types.Snapshot{
		Time:    ts,
		Quotes:  quotes,
		Candles: windows,
		Zone:    types.KillZoneAt(ts),
	}
}

// mergeTimeline returns the sorted distinct candle timestamps across all
// instruments.
func mergeTimeline(series map[string][]types.Candle) []time.Time {
	seen := make(map[int64]time.Time)

	for _, candles := range series {
		for _, candle := range candles {
			seen[candle.Time.UnixNano()] = candle.Time
		}
	}

	timeline := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		timeline = append(timeline, ts)
	}

	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })

	return timeline
}

func sortedKeys(series map[string][]types.Candle) []string {
	keys := make([]string, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
