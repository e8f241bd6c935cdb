// Package scheduler drives the periodic evaluation pass: fetch market data,
// evaluate each bound strategy, route signals through admission, and adapt
// thresholds between cycles.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/quantrail-lab/quantrail/internal/adaptive"
	"github.com/quantrail-lab/quantrail/internal/admission"
	"github.com/quantrail-lab/quantrail/internal/broker"
	"github.com/quantrail-lab/quantrail/internal/config"
	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/notifier"
	"github.com/quantrail-lab/quantrail/internal/quality"
	"github.com/quantrail-lab/quantrail/internal/strategy"
	"github.com/quantrail-lab/quantrail/internal/types"
)

// escalateAfter is the number of consecutive fully-failed cycles that
// triggers a fatal alert and interval backoff.
const escalateAfter = 3

// openPosition is the scheduler's memory of one position between cycles,
// used to classify an outcome when the position disappears.
type openPosition struct {
	side       types.Side
	entryPrice float64
	lastMid    float64
}

// Scheduler runs scan cycles on a fixed interval until its context is
// cancelled.
type Scheduler struct {
	scan config.ScanConfig

	// bindingsMu guards bindings, which the reload path replaces between
	// cycles.
	bindingsMu sync.Mutex
	bindings   []config.AccountBinding

	registry  *strategy.Registry
	broker    broker.Broker
	admission *admission.Controller
	adaptive  *adaptive.Controller
	scorer    *quality.Scorer
	notifier  notifier.Notifier
	log       *logger.Logger
	now       func() time.Time

	// onReport, when set, receives each cycle's report. The status server
	// and metrics hook in here.
	onReport func(*types.ScanReport)

	counters map[string]*adaptive.Counters
	tracked  map[string]map[string]openPosition

	consecutiveFailed int
}

// Options wires the scheduler's collaborators.
type Options struct {
	Scan      config.ScanConfig
	Bindings  []config.AccountBinding
	Registry  *strategy.Registry
	Broker    broker.Broker
	Admission *admission.Controller
	Adaptive  *adaptive.Controller
	Scorer    *quality.Scorer
	Notifier  notifier.Notifier
	Logger    *logger.Logger
	OnReport  func(*types.ScanReport)
}

// New creates a scheduler.
func New(options Options) *Scheduler {
	return &Scheduler{
		scan:              options.Scan,
		bindings:          options.Bindings,
		registry:          options.Registry,
		broker:            options.Broker,
		admission:         options.Admission,
		adaptive:          options.Adaptive,
		scorer:            options.Scorer,
		notifier:          options.Notifier,
		log:               options.Logger,
		now:               time.Now,
		onReport:          options.OnReport,
		counters:          make(map[string]*adaptive.Counters),
		tracked:           make(map[string]map[string]openPosition),
		consecutiveFailed: 0,
	}
}

// SetClock overrides the scheduler's clock for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// SetBindings replaces the account bindings starting with the next cycle.
// A cycle already in flight finishes against the bindings it started with.
func (s *Scheduler) SetBindings(bindings []config.AccountBinding) {
	s.bindingsMu.Lock()
	defer s.bindingsMu.Unlock()

	s.bindings = bindings
}

func (s *Scheduler) currentBindings() []config.AccountBinding {
	s.bindingsMu.Lock()
	defer s.bindingsMu.Unlock()

	return s.bindings
}

// Counters returns the adaptive counters for a strategy, creating them on
// first use.
func (s *Scheduler) Counters(strategyName string) *adaptive.Counters {
	counters, ok := s.counters[strategyName]
	if !ok {
		counters = &adaptive.Counters{}
		s.counters[strategyName] = counters
	}

	return counters
}

// Run loops RunOnce on the scan interval until ctx is cancelled. After
// escalateAfter consecutive fully-failed cycles it alerts once and stretches
// the interval with capped exponential backoff; the process keeps running.
func (s *Scheduler) Run(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.scan.Interval.Std()
	retry.MaxInterval = s.scan.MaxBackoff.Std()
	retry.MaxElapsedTime = 0
	retry.Reset()

	for {
		report := s.RunOnce(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := s.scan.Interval.Std()

		if report.FullyFailed() {
			s.consecutiveFailed++

			if s.consecutiveFailed == escalateAfter {
				s.log.Error("scan cycles fully failing, backing off",
					zap.Int("consecutive", s.consecutiveFailed),
				)
				s.notifier.Notify(
					fmt.Sprintf("%d consecutive scan cycles failed completely; backing off", s.consecutiveFailed),
					notifier.CategoryFatal,
				)
			}

			if s.consecutiveFailed >= escalateAfter {
				wait = retry.NextBackOff()
			}
		} else {
			s.consecutiveFailed = 0

			retry.Reset()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunOnce performs one full evaluation pass. Errors for one account-strategy
// pair are isolated; they never abort the other pairs. No new pair is
// started once ctx is cancelled, but an in-flight pair finishes.
func (s *Scheduler) RunOnce(ctx context.Context) *types.ScanReport {
	started := s.now()
	report := types.NewScanReport(started)

	for _, binding := range s.currentBindings() {
		if ctx.Err() != nil {
			break
		}

		if !binding.Active {
			report.Skip(types.SkipInactive)

			continue
		}

		strat, ok := s.registry.Get(binding.StrategyName)
		if !ok {
			report.Skip(types.SkipUnknownStrategy)
			s.log.Warn("binding references unknown strategy",
				zap.String("account", binding.AccountID),
				zap.String("strategy", binding.StrategyName),
			)

			continue
		}

		report.PairsScanned++

		pairCtx, cancel := context.WithTimeout(ctx, s.pairTimeout())
		s.scanPair(pairCtx, binding, strat, report)
		cancel()

		// Adaptive ticks happen inside the cycle so they always see a
		// consistent counters snapshot for their strategy.
		if tunable, ok := strat.(strategy.Tunable); ok {
			s.adaptive.Tick(binding.StrategyName, tunable.Thresholds(), s.Counters(binding.StrategyName), s.now())
		}
	}

	report.Duration = s.now().Sub(started)

	if report.TotalSignals() > 0 {
		summary := fmt.Sprintf("scan cycle: %d signals, %d executed, %d rejected, %d failed",
			report.TotalSignals(), report.Executed, report.Rejected, report.Failed)
		s.log.Info("scan cycle complete",
			zap.Int("signals", report.TotalSignals()),
			zap.Int("executed", report.Executed),
			zap.Int("rejected", report.Rejected),
			zap.Int("failed", report.Failed),
			zap.Duration("duration", report.Duration),
		)
		s.notifier.Notify(summary, notifier.CategoryCycle)
	}

	if s.onReport != nil {
		s.onReport(report)
	}

	return report
}

// ConsecutiveFailed returns the current fully-failed cycle streak.
func (s *Scheduler) ConsecutiveFailed() int {
	return s.consecutiveFailed
}

func (s *Scheduler) scanPair(ctx context.Context, binding config.AccountBinding, strat strategy.Strategy, report *types.ScanReport) {
	now := s.now()
	zone := types.KillZoneAt(now)
	counters := s.Counters(binding.StrategyName)

	if restricted, ok := strat.(strategy.SessionRestricted); ok {
		if !zoneAllowed(zone, restricted.AllowedZones()) {
			report.Skip(types.SkipSessionBlocked)

			return
		}
	}

	quotes, err := s.broker.GetCurrentPrices(ctx, binding.Instruments)
	if err != nil {
		report.Skip(types.SkipPriceFetch)
		report.PairsFailed++
		s.log.Warn("price fetch failed, retried next cycle",
			zap.String("account", binding.AccountID),
			zap.Error(err),
		)

		return
	}

	candles := make(map[string][]types.Candle, len(binding.Instruments))

	for _, instrument := range binding.Instruments {
		if _, ok := quotes[instrument]; !ok {
			// Venue had no quote for this instrument; skip it, keep the rest.
			report.Skip(types.SkipPriceFetch)

			continue
		}

		series, err := s.broker.GetCandles(ctx, instrument, s.scan.Granularity, s.scan.HistorySize)
		if err != nil {
			report.Skip(types.SkipPriceFetch)
			s.log.Warn("candle fetch failed, retried next cycle",
				zap.String("instrument", instrument),
				zap.Error(err),
			)

			delete(quotes, instrument)

			continue
		}

		candles[instrument] = series
	}

	if len(candles) == 0 {
		report.PairsFailed++

		return
	}

	s.recordOutcomes(ctx, binding.AccountID, quotes, counters)

	snapshot := types.Snapshot{
		Time:    now,
		Quotes:  quotes,
		Candles: candles,
		Zone:    zone,
	}

	signals, err := strat.Evaluate(snapshot)
	if err != nil {
		report.Skip(types.SkipEvaluateError)
		report.PairsFailed++
		s.log.Warn("strategy evaluation failed",
			zap.String("strategy", binding.StrategyName),
			zap.Error(err),
		)

		return
	}

	// Signals admit in the order the strategy returned them; any ranking
	// must happen inside the strategy.
	for _, signal := range signals {
		report.SignalsByStrategy[binding.StrategyName]++

		score := s.scorer.ScoreSignal(signal, zone)
		if !score.Classification.Tradeable() {
			report.Skip(types.SkipLowQuality)

			continue
		}

		result := s.admission.Admit(ctx, binding.AccountID, signal, counters)

		switch result.Status {
		case types.AdmissionExecuted:
			report.Executed++
		case types.AdmissionRejected:
			report.Rejected++
		case types.AdmissionFailed:
			report.Failed++
		}
	}
}

// recordOutcomes diffs the broker's open positions against the previous
// cycle. A position that disappeared closed since last scan; its outcome is
// estimated from the last mid price seen while it was open.
func (s *Scheduler) recordOutcomes(ctx context.Context, accountID string, quotes map[string]types.Quote, counters *adaptive.Counters) {
	positions, err := s.broker.GetOpenPositions(ctx, accountID)
	if err != nil {
		// Position fetch errors only affect outcome tracking here; the
		// admission controller re-reads positions itself.
		s.log.Debug("position fetch failed, outcome tracking skipped", zap.Error(err))

		return
	}

	current := make(map[string]openPosition, len(positions))

	for _, position := range positions {
		tracked, wasTracked := s.tracked[accountID][position.Instrument]

		lastMid := tracked.lastMid
		if quote, ok := quotes[position.Instrument]; ok {
			lastMid = quote.Mid()
		}

		entry := position.EntryPrice
		if wasTracked && tracked.entryPrice > 0 {
			entry = tracked.entryPrice
		}

		current[position.Instrument] = openPosition{
			side:       position.Side,
			entryPrice: entry,
			lastMid:    lastMid,
		}
	}

	for instrument, tracked := range s.tracked[accountID] {
		if _, stillOpen := current[instrument]; stillOpen {
			continue
		}

		if tracked.entryPrice <= 0 || tracked.lastMid <= 0 {
			continue
		}

		win := tracked.lastMid > tracked.entryPrice
		if tracked.side == types.SideSell {
			win = tracked.lastMid < tracked.entryPrice
		}

		counters.RecordOutcome(win)
		s.log.Debug("position closed since last cycle",
			zap.String("account", accountID),
			zap.String("instrument", instrument),
			zap.Bool("win", win),
		)
	}

	s.tracked[accountID] = current
}

func (s *Scheduler) pairTimeout() time.Duration {
	if s.scan.PairTimeout.Std() > 0 {
		return s.scan.PairTimeout.Std()
	}

	return 30 * time.Second
}

func zoneAllowed(zone types.KillZone, allowed []types.KillZone) bool {
	for _, candidate := range allowed {
		if candidate == zone {
			return true
		}
	}

	return len(allowed) == 0
}
