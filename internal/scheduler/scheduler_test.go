package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/quantrail-lab/quantrail/internal/adaptive"
	"github.com/quantrail-lab/quantrail/internal/admission"
	"github.com/quantrail-lab/quantrail/internal/broker"
	"github.com/quantrail-lab/quantrail/internal/config"
	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/notifier"
	"github.com/quantrail-lab/quantrail/internal/quality"
	"github.com/quantrail-lab/quantrail/internal/strategy"
	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/mocks"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// testStrategy returns a fixed signal list on every Evaluate call and
// records what it saw.
type testStrategy struct {
	name        string
	signals     []types.Signal
	err         error
	zones       []types.KillZone
	thresholds  *strategy.ThresholdSet
	onEvaluate  func()
	evaluations int
	snapshots   []types.Snapshot
}

func newTestStrategy(name string) *testStrategy {
	thresholds := strategy.NewThresholdSet()
	if err := thresholds.Register("min_confidence", 0.60, 0.30, 0.90); err != nil {
		panic(err)
	}

	return &testStrategy{
		name:       name,
		thresholds: thresholds,
	}
}

func (t *testStrategy) Name() string { return t.name }

func (t *testStrategy) Evaluate(snapshot types.Snapshot) ([]types.Signal, error) {
	t.evaluations++
	t.snapshots = append(t.snapshots, snapshot)

	if t.onEvaluate != nil {
		t.onEvaluate()
	}

	if t.err != nil {
		return nil, t.err
	}

	return t.signals, nil
}

func (t *testStrategy) Thresholds() *strategy.ThresholdSet { return t.thresholds }

func (t *testStrategy) AllowedZones() []types.KillZone { return t.zones }

// recordingNotifier captures messages per category.
type recordingNotifier struct {
	mu         sync.Mutex
	messages   []string
	categories []notifier.Category
}

func (r *recordingNotifier) Notify(message string, category notifier.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.categories = append(r.categories, category)
}

func (r *recordingNotifier) count(category notifier.Category) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, c := range r.categories {
		if c == category {
			n++
		}
	}

	return n
}

type SchedulerTestSuite struct {
	suite.Suite
	paper    *broker.Paper
	registry *strategy.Registry
	recorder *recordingNotifier
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (suite *SchedulerTestSuite) SetupTest() {
	suite.paper = broker.NewPaper()
	suite.registry = strategy.NewRegistry()
	suite.recorder = &recordingNotifier{}
}

// offSession is a Monday evening after the New York close.
func offSession() time.Time {
	return time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC)
}

func (suite *SchedulerTestSuite) seedMarket(instrument string, bid, ask float64) {
	suite.paper.SetQuote(instrument, types.Quote{Instrument: instrument, Bid: bid, Ask: ask})

	candles := make([]types.Candle, 8)
	start := offSession().Add(-8 * 5 * time.Minute)

	for i := range candles {
		candles[i] = types.Candle{
			Instrument: instrument,
			Time:       start.Add(time.Duration(i) * 5 * time.Minute),
			Open:       bid,
			High:       ask + 0.0005,
			Low:        bid - 0.0005,
			Close:      bid,
			Volume:     100,
		}
	}

	suite.paper.SetCandles(instrument, candles)
}

func (suite *SchedulerTestSuite) build(adaptiveConfig adaptive.Config, bindings []config.AccountBinding) *Scheduler {
	admit, err := admission.NewController(admission.DefaultConfig(), suite.paper, suite.recorder, logger.NewNopLogger())
	suite.Require().NoError(err)

	scheduler := New(Options{
		Scan: config.ScanConfig{
			Interval:    config.Duration(5 * time.Minute),
			PairTimeout: config.Duration(5 * time.Second),
			MaxBackoff:  config.Duration(40 * time.Minute),
			Granularity: types.Granularity5m,
			HistorySize: 8,
		},
		Bindings:  bindings,
		Registry:  suite.registry,
		Broker:    suite.paper,
		Admission: admit,
		Adaptive:  adaptive.NewController(adaptiveConfig, logger.NewNopLogger()),
		Scorer:    quality.NewScorer(quality.DefaultWeights(), quality.DefaultCutoffs()),
		Notifier:  suite.recorder,
		Logger:    logger.NewNopLogger(),
	})
	scheduler.SetClock(offSession)

	return scheduler
}

func binding(accountID, strategyName string, instruments ...string) config.AccountBinding {
	return config.AccountBinding{
		AccountID:    accountID,
		StrategyName: strategyName,
		Active:       true,
		Instruments:  instruments,
	}
}

func strongSignal(instrument string) types.Signal {
	return types.Signal{
		Instrument:   instrument,
		Side:         types.SideBuy,
		EntryPrice:   1.2702,
		StopLoss:     1.2650,
		TakeProfit:   1.2790,
		Confidence:   0.8,
		Strength:     0.9,
		StrategyName: "mom",
		ProducedAt:   offSession(),
		Reason:       "test",
	}
}

func weakSignal(instrument string) types.Signal {
	return types.Signal{
		Instrument:   instrument,
		Side:         types.SideBuy,
		EntryPrice:   1.2702,
		StopLoss:     1.2698,
		TakeProfit:   1.2706,
		Confidence:   0.2,
		Strength:     0.1,
		StrategyName: "mom",
		ProducedAt:   offSession(),
		Reason:       "test",
	}
}

func (suite *SchedulerTestSuite) TestRunOnceExecutesSignal() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)

	strat := newTestStrategy("mom")
	strat.signals = []types.Signal{strongSignal("GBP_USD")}
	suite.Require().NoError(suite.registry.Register(strat))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(1, report.PairsScanned)
	suite.Equal(0, report.PairsFailed)
	suite.Equal(1, report.TotalSignals())
	suite.Equal(1, report.SignalsByStrategy["mom"])
	suite.Equal(1, report.Executed)
	suite.Equal(0, report.Rejected)
	suite.Len(suite.paper.PlacedOrders(), 1)
	suite.Equal(1, strat.evaluations)
	suite.Equal(1, suite.recorder.count(notifier.CategoryCycle))
}

func (suite *SchedulerTestSuite) TestBindingsSwapTakesEffectNextCycle() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)
	suite.seedMarket("EUR_USD", 1.0850, 1.0852)

	first := newTestStrategy("mom")
	second := newTestStrategy("brk")
	suite.Require().NoError(suite.registry.Register(first))
	suite.Require().NoError(suite.registry.Register(second))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD"),
	})

	scheduler.RunOnce(context.Background())
	suite.Equal(1, first.evaluations)
	suite.Equal(0, second.evaluations)

	scheduler.SetBindings([]config.AccountBinding{
		binding("acct-2", "brk", "EUR_USD"),
	})

	report := scheduler.RunOnce(context.Background())
	suite.Equal(1, report.PairsScanned)
	suite.Equal(1, first.evaluations, "replaced binding is no longer scanned")
	suite.Equal(1, second.evaluations)
}

func (suite *SchedulerTestSuite) TestSignalsAdmitInReturnedOrder() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)
	suite.seedMarket("EUR_USD", 1.0850, 1.0852)

	strat := newTestStrategy("mom")
	strat.signals = []types.Signal{strongSignal("GBP_USD"), strongSignal("EUR_USD")}
	suite.Require().NoError(suite.registry.Register(strat))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD", "EUR_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(2, report.Executed)

	placed := suite.paper.PlacedOrders()
	suite.Require().Len(placed, 2)
	suite.Equal("GBP_USD", placed[0].Instrument)
	suite.Equal("EUR_USD", placed[1].Instrument)
}

func (suite *SchedulerTestSuite) TestInactiveBindingSkipped() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)

	strat := newTestStrategy("mom")
	suite.Require().NoError(suite.registry.Register(strat))

	paused := binding("acct-1", "mom", "GBP_USD")
	paused.Active = false

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{paused})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(0, report.PairsScanned)
	suite.Equal(1, report.SkipsByReason[types.SkipInactive])
	suite.Equal(0, strat.evaluations)
}

func (suite *SchedulerTestSuite) TestUnknownStrategySkipped() {
	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "ghost", "GBP_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(0, report.PairsScanned)
	suite.Equal(1, report.SkipsByReason[types.SkipUnknownStrategy])
}

func (suite *SchedulerTestSuite) TestLowQualitySignalSkipped() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)

	strat := newTestStrategy("mom")
	strat.signals = []types.Signal{weakSignal("GBP_USD")}
	suite.Require().NoError(suite.registry.Register(strat))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(1, report.TotalSignals())
	suite.Equal(0, report.Executed)
	suite.Equal(1, report.SkipsByReason[types.SkipLowQuality])
	suite.Empty(suite.paper.PlacedOrders())
}

func (suite *SchedulerTestSuite) TestPriceFetchFailureFailsPair() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)
	suite.paper.FailPrices(errors.New(errors.ErrCodeTransientIO, "venue down"))

	strat := newTestStrategy("mom")
	suite.Require().NoError(suite.registry.Register(strat))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(1, report.PairsScanned)
	suite.Equal(1, report.PairsFailed)
	suite.Equal(1, report.SkipsByReason[types.SkipPriceFetch])
	suite.True(report.FullyFailed())
	suite.Equal(0, strat.evaluations)
}

func (suite *SchedulerTestSuite) TestCandleFetchFailureSkipsInstrumentOnly() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)
	// EUR_USD has a quote but no candle history.
	suite.paper.SetQuote("EUR_USD", types.Quote{Instrument: "EUR_USD", Bid: 1.0850, Ask: 1.0852})

	strat := newTestStrategy("mom")
	strat.signals = []types.Signal{strongSignal("GBP_USD")}
	suite.Require().NoError(suite.registry.Register(strat))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD", "EUR_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(0, report.PairsFailed)
	suite.Equal(1, report.SkipsByReason[types.SkipPriceFetch])
	suite.Equal(1, report.Executed)

	suite.Require().Equal(1, strat.evaluations)
	snapshot := strat.snapshots[0]
	suite.Contains(snapshot.Candles, "GBP_USD")
	suite.NotContains(snapshot.Candles, "EUR_USD")
	suite.NotContains(snapshot.Quotes, "EUR_USD")
}

func (suite *SchedulerTestSuite) TestSessionRestrictedStrategyBlocked() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)

	strat := newTestStrategy("mom")
	strat.zones = []types.KillZone{types.KillZoneOverlap}
	suite.Require().NoError(suite.registry.Register(strat))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(1, report.SkipsByReason[types.SkipSessionBlocked])
	suite.Equal(0, strat.evaluations)
}

func (suite *SchedulerTestSuite) TestEvaluateErrorFailsPair() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)

	strat := newTestStrategy("mom")
	strat.err = errors.New(errors.ErrCodeTransientIO, "indicator blew up")
	suite.Require().NoError(suite.registry.Register(strat))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(1, report.PairsFailed)
	suite.Equal(1, report.SkipsByReason[types.SkipEvaluateError])
}

func (suite *SchedulerTestSuite) TestPairFailureDoesNotAbortOthers() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)

	broken := newTestStrategy("broken")
	broken.err = errors.New(errors.ErrCodeTransientIO, "indicator blew up")
	suite.Require().NoError(suite.registry.Register(broken))

	healthy := newTestStrategy("mom")
	healthy.signals = []types.Signal{strongSignal("GBP_USD")}
	suite.Require().NoError(suite.registry.Register(healthy))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "broken", "GBP_USD"),
		binding("acct-2", "mom", "GBP_USD"),
	})

	report := scheduler.RunOnce(context.Background())

	suite.Equal(2, report.PairsScanned)
	suite.Equal(1, report.PairsFailed)
	suite.Equal(1, report.Executed)
	suite.False(report.FullyFailed())
}

func (suite *SchedulerTestSuite) TestCancellationStopsNewPairs() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)

	ctx, cancel := context.WithCancel(context.Background())

	first := newTestStrategy("first")
	first.onEvaluate = cancel
	suite.Require().NoError(suite.registry.Register(first))

	second := newTestStrategy("second")
	suite.Require().NoError(suite.registry.Register(second))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "first", "GBP_USD"),
		binding("acct-2", "second", "GBP_USD"),
	})

	report := scheduler.RunOnce(ctx)

	suite.Equal(1, report.PairsScanned)
	suite.Equal(1, first.evaluations)
	suite.Equal(0, second.evaluations)
}

func (suite *SchedulerTestSuite) TestAdaptiveTickRunsInCycle() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)

	strat := newTestStrategy("mom")
	suite.Require().NoError(suite.registry.Register(strat))

	adaptiveConfig := adaptive.DefaultConfig()
	adaptiveConfig.SessionRelax = 0

	scheduler := suite.build(adaptiveConfig, []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD"),
	})

	counters := scheduler.Counters("mom")
	counters.LastSignalTime = offSession().Add(-2 * time.Hour)
	counters.LastAdaptationTime = offSession().Add(-1 * time.Hour)

	scheduler.RunOnce(context.Background())

	value, ok := strat.thresholds.Get("min_confidence")
	suite.Require().True(ok)
	suite.InDelta(0.54, value, 1e-9)
}

func (suite *SchedulerTestSuite) TestOutcomeRecordedWhenPositionCloses() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)
	suite.seedMarket("EUR_USD", 1.0850, 1.0852)
	suite.paper.SeedPosition("acct-1", types.OpenPositionView{
		Instrument: "GBP_USD",
		Side:       types.SideBuy,
		Units:      1000,
		EntryPrice: 1.2600,
	})
	suite.paper.SeedPosition("acct-1", types.OpenPositionView{
		Instrument: "EUR_USD",
		Side:       types.SideSell,
		Units:      1000,
		EntryPrice: 1.0800,
	})

	strat := newTestStrategy("mom")
	suite.Require().NoError(suite.registry.Register(strat))

	scheduler := suite.build(adaptive.DefaultConfig(), []config.AccountBinding{
		binding("acct-1", "mom", "GBP_USD", "EUR_USD"),
	})

	// First cycle observes both positions and their current mid prices.
	scheduler.RunOnce(context.Background())

	counters := scheduler.Counters("mom")
	suite.Equal(0, counters.WinsSinceAdaptation+counters.LossesSinceAdaptation)

	// Both close on the venue before the next cycle. The long closed above
	// its entry and the short closed above its entry.
	suite.paper.RemovePosition("acct-1", "GBP_USD")
	suite.paper.RemovePosition("acct-1", "EUR_USD")

	scheduler.RunOnce(context.Background())

	suite.Equal(1, counters.WinsSinceAdaptation)
	suite.Equal(1, counters.LossesSinceAdaptation)
}

func (suite *SchedulerTestSuite) TestPositionFetchFailureSkipsOutcomeTracking() {
	ctrl := gomock.NewController(suite.T())
	defer ctrl.Finish()

	generator := mocks.NewCandleGenerator(42)
	generatorConfig := mocks.DefaultGeneratorConfig()
	generatorConfig.Count = 8

	mockBroker := mocks.NewMockBroker(ctrl)
	mockBroker.EXPECT().
		GetCurrentPrices(gomock.Any(), []string{"GBP_USD"}).
		Return(map[string]types.Quote{
			"GBP_USD": {Instrument: "GBP_USD", Bid: 1.2700, Ask: 1.2702},
		}, nil)
	mockBroker.EXPECT().
		GetCandles(gomock.Any(), "GBP_USD", types.Granularity5m, 8).
		Return(generator.Generate(generatorConfig), nil)
	mockBroker.EXPECT().
		GetOpenPositions(gomock.Any(), "acct-1").
		Return(nil, errors.New(errors.ErrCodeTransientIO, "venue down"))

	strat := newTestStrategy("mom")
	suite.Require().NoError(suite.registry.Register(strat))

	admit, err := admission.NewController(admission.DefaultConfig(), mockBroker, suite.recorder, logger.NewNopLogger())
	suite.Require().NoError(err)

	scheduler := New(Options{
		Scan: config.ScanConfig{
			Interval:    config.Duration(5 * time.Minute),
			PairTimeout: config.Duration(5 * time.Second),
			MaxBackoff:  config.Duration(40 * time.Minute),
			Granularity: types.Granularity5m,
			HistorySize: 8,
		},
		Bindings:  []config.AccountBinding{binding("acct-1", "mom", "GBP_USD")},
		Registry:  suite.registry,
		Broker:    mockBroker,
		Admission: admit,
		Adaptive:  adaptive.NewController(adaptive.DefaultConfig(), logger.NewNopLogger()),
		Scorer:    quality.NewScorer(quality.DefaultWeights(), quality.DefaultCutoffs()),
		Notifier:  suite.recorder,
		Logger:    logger.NewNopLogger(),
	})
	scheduler.SetClock(offSession)

	report := scheduler.RunOnce(context.Background())

	// Outcome tracking degrades silently; the pair itself still succeeds.
	suite.Equal(1, report.PairsScanned)
	suite.Equal(0, report.PairsFailed)
	suite.Equal(1, strat.evaluations)
}

func (suite *SchedulerTestSuite) TestRunEscalatesOnceAfterRepeatedFailures() {
	suite.seedMarket("GBP_USD", 1.2700, 1.2702)
	suite.paper.FailPrices(errors.New(errors.ErrCodeTransientIO, "venue down"))

	strat := newTestStrategy("mom")
	suite.Require().NoError(suite.registry.Register(strat))

	admit, err := admission.NewController(admission.DefaultConfig(), suite.paper, suite.recorder, logger.NewNopLogger())
	suite.Require().NoError(err)

	scheduler := New(Options{
		Scan: config.ScanConfig{
			Interval:    config.Duration(time.Millisecond),
			PairTimeout: config.Duration(time.Second),
			MaxBackoff:  config.Duration(4 * time.Millisecond),
			Granularity: types.Granularity5m,
			HistorySize: 8,
		},
		Bindings:  []config.AccountBinding{binding("acct-1", "mom", "GBP_USD")},
		Registry:  suite.registry,
		Broker:    suite.paper,
		Admission: admit,
		Adaptive:  adaptive.NewController(adaptive.DefaultConfig(), logger.NewNopLogger()),
		Scorer:    quality.NewScorer(quality.DefaultWeights(), quality.DefaultCutoffs()),
		Notifier:  suite.recorder,
		Logger:    logger.NewNopLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	runErr := scheduler.Run(ctx)

	suite.ErrorIs(runErr, context.DeadlineExceeded)
	suite.GreaterOrEqual(scheduler.ConsecutiveFailed(), 3)
	suite.Equal(1, suite.recorder.count(notifier.CategoryFatal))
}
