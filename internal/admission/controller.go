// Package admission is the only path by which a signal becomes a live broker
// order. It is the single source of truth for "are we allowed to trade now".
package admission

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantrail-lab/quantrail/internal/adaptive"
	"github.com/quantrail-lab/quantrail/internal/broker"
	"github.com/quantrail-lab/quantrail/internal/logger"
	"github.com/quantrail-lab/quantrail/internal/notifier"
	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// Config holds the kill switches and limits the controller enforces.
type Config struct {
	// DryRun rejects every signal before any broker call.
	DryRun bool `yaml:"dry_run" json:"dry_run"`
	// LiveTradingBlocked rejects every signal when the process is pointed at
	// a non-practice environment without an explicit override.
	LiveTradingBlocked bool `yaml:"live_trading_blocked" json:"live_trading_blocked"`
	// DisabledAccounts lists account ids refused regardless of binding state.
	DisabledAccounts []string `yaml:"disabled_accounts" json:"disabled_accounts"`
	// MaxDailyTrades caps executed orders per strategy per account per local
	// calendar day.
	MaxDailyTrades int `yaml:"max_daily_trades" json:"max_daily_trades" validate:"gt=0"`
	// MaxOpenPositions caps open positions plus pending entry orders per
	// account.
	MaxOpenPositions int `yaml:"max_open_positions" json:"max_open_positions" validate:"gt=0"`
	// MaxPerInstrument caps concurrent exposure per instrument per account.
	MaxPerInstrument int `yaml:"max_per_instrument" json:"max_per_instrument" validate:"gt=0"`
	// UnitsByClass maps an instrument class to the order size in units.
	UnitsByClass map[string]float64 `yaml:"units_by_class" json:"units_by_class"`
	// DefaultUnits is used when an instrument's class has no entry in
	// UnitsByClass.
	DefaultUnits float64 `yaml:"default_units" json:"default_units" validate:"gt=0"`
	// SubmitTimeout bounds one broker submission.
	SubmitTimeout time.Duration `yaml:"submit_timeout" json:"submit_timeout"`
	// Timezone is the IANA zone whose midnight resets daily counters. Empty
	// means UTC.
	Timezone string `yaml:"timezone" json:"timezone"`
}

// DefaultConfig returns conservative production limits.
func DefaultConfig() Config {
	return Config{
		DryRun:             false,
		LiveTradingBlocked: false,
		DisabledAccounts:   nil,
		MaxDailyTrades:     6,
		MaxOpenPositions:   5,
		MaxPerInstrument:   1,
		UnitsByClass: map[string]float64{
			"fx":     1000,
			"fx_jpy": 1000,
			"crypto": 0.01,
			"metal":  1,
		},
		DefaultUnits:  1000,
		SubmitTimeout: 10 * time.Second,
		Timezone:      "",
	}
}

// dailyCounter tracks executed trades for one (account, strategy) pair
// within one local calendar day.
type dailyCounter struct {
	day   time.Time
	count int
}

// accountState serializes Admit calls for one account. Different accounts
// admit in parallel.
type accountState struct {
	mu    sync.Mutex
	daily map[string]*dailyCounter
}

// Controller enforces the admission checks in a fixed order and submits
// passing signals to the broker.
type Controller struct {
	config   Config
	broker   broker.Broker
	notifier notifier.Notifier
	log      *logger.Logger
	location *time.Location
	now      func() time.Time
	disabled map[string]bool

	mu       sync.Mutex
	accounts map[string]*accountState
}

// NewController creates the admission controller. An invalid Timezone is a
// configuration error.
func NewController(config Config, b broker.Broker, n notifier.Notifier, log *logger.Logger) (*Controller, error) {
	location := time.UTC

	if config.Timezone != "" {
		loaded, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfig, err, "unknown timezone %q", config.Timezone)
		}

		location = loaded
	}

	disabled := make(map[string]bool, len(config.DisabledAccounts))
	for _, id := range config.DisabledAccounts {
		disabled[id] = true
	}

	return &Controller{
		config:   config,
		broker:   b,
		notifier: n,
		log:      log,
		location: location,
		now:      time.Now,
		disabled: disabled,
		accounts: make(map[string]*accountState),
	}, nil
}

// SetClock overrides the controller's clock. Used by tests to cross local
// midnight deterministically.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// SetKillSwitches replaces the dry-run, environment-block, and disabled
// account switches. The config reload path calls this; daily counters and
// size limits are untouched.
func (c *Controller) SetKillSwitches(dryRun, liveTradingBlocked bool, disabledAccounts []string) {
	disabled := make(map[string]bool, len(disabledAccounts))
	for _, id := range disabledAccounts {
		disabled[id] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.DryRun = dryRun
	c.config.LiveTradingBlocked = liveTradingBlocked
	c.disabled = disabled
}

func (c *Controller) killSwitches() (dryRun, blocked bool, disabled map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.config.DryRun, c.config.LiveTradingBlocked, c.disabled
}

// Admit runs the admission checks in order, short-circuiting on the first
// failure, and submits the order when all pass. Calls for the same account
// are serialized; counters is updated only on a successful submission.
func (c *Controller) Admit(ctx context.Context, accountID string, signal types.Signal, counters *adaptive.Counters) types.AdmissionResult {
	state := c.accountState(accountID)

	state.mu.Lock()
	defer state.mu.Unlock()

	dryRun, blocked, disabled := c.killSwitches()

	if dryRun {
		return c.reject(accountID, signal, types.RejectDryRun)
	}

	if disabled[accountID] {
		return c.reject(accountID, signal, types.RejectAccountDisabled)
	}

	if blocked {
		return c.reject(accountID, signal, types.RejectEnvironmentBlocked)
	}

	now := c.now()

	counter := c.counterFor(state, signal.StrategyName, now)
	if counter.count >= c.config.MaxDailyTrades {
		return c.reject(accountID, signal, types.RejectDailyLimit)
	}

	positions, err := c.broker.GetOpenPositions(ctx, accountID)
	if err != nil {
		return c.fail(accountID, signal, errors.Wrap(errors.ErrCodeAdmissionFailed, "failed to read open positions", err))
	}

	for _, position := range positions {
		if position.Instrument == signal.Instrument {
			return c.reject(accountID, signal, types.RejectDuplicatePosition)
		}
	}

	pending, err := c.broker.GetPendingOrders(ctx, accountID)
	if err != nil {
		return c.fail(accountID, signal, errors.Wrap(errors.ErrCodeAdmissionFailed, "failed to read pending orders", err))
	}

	if len(positions)+len(pending) >= c.config.MaxOpenPositions {
		return c.reject(accountID, signal, types.RejectGlobalCap)
	}

	instrumentCount := 0

	for _, order := range pending {
		if order.Instrument == signal.Instrument {
			instrumentCount++
		}
	}

	if instrumentCount >= c.config.MaxPerInstrument {
		return c.reject(accountID, signal, types.RejectSymbolCap)
	}

	order := c.buildOrder(accountID, signal, now)

	if err := order.Validate(); err != nil {
		return c.fail(accountID, signal, err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.submitTimeout())
	defer cancel()

	orderID, err := c.broker.PlaceMarketOrder(submitCtx, order)
	if err != nil {
		// A failed submission must not consume daily quota.
		return c.fail(accountID, signal, errors.Wrap(errors.ErrCodeAdmissionFailed, "broker rejected order", err))
	}

	counter.count++

	if counters != nil {
		counters.RecordSignal(now)
	}

	c.log.Info("order executed",
		zap.String("account", accountID),
		zap.String("instrument", signal.Instrument),
		zap.String("side", string(signal.Side)),
		zap.String("strategy", signal.StrategyName),
		zap.String("order_id", orderID),
		zap.Float64("units", order.Units),
	)
	c.notifier.Notify(
		fmt.Sprintf("%s %s %s %.0f units (order %s)",
			signal.StrategyName, signal.Side, signal.Instrument, order.Units, orderID),
		notifier.CategoryTrade,
	)

	return types.AdmissionResult{
		Status:  types.AdmissionExecuted,
		OrderID: orderID,
		Reason:  "",
		Err:     nil,
	}
}

// DailyCount returns the executed trade count for the (account, strategy)
// pair in the current local day.
func (c *Controller) DailyCount(accountID, strategyName string) int {
	state := c.accountState(accountID)

	state.mu.Lock()
	defer state.mu.Unlock()

	return c.counterFor(state, strategyName, c.now()).count
}

func (c *Controller) accountState(accountID string) *accountState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.accounts[accountID]
	if !ok {
		state = &accountState{
			mu:    sync.Mutex{},
			daily: make(map[string]*dailyCounter),
		}
		c.accounts[accountID] = state
	}

	return state
}

// counterFor returns the live counter for the pair, resetting it when the
// local calendar day has rolled over. Caller holds the account lock.
func (c *Controller) counterFor(state *accountState, strategyName string, now time.Time) *dailyCounter {
	today := localDay(now, c.location)

	counter, ok := state.daily[strategyName]
	if !ok {
		counter = &dailyCounter{day: today, count: 0}
		state.daily[strategyName] = counter
	}

	if !counter.day.Equal(today) {
		counter.day = today
		counter.count = 0
	}

	return counter
}

func (c *Controller) buildOrder(accountID string, signal types.Signal, now time.Time) types.OrderRequest {
	stopLoss := optional.None[float64]()
	if signal.StopLoss > 0 {
		stopLoss = optional.Some(signal.StopLoss)
	}

	takeProfit := optional.None[float64]()
	if signal.TakeProfit > 0 {
		takeProfit = optional.Some(signal.TakeProfit)
	}

	return types.OrderRequest{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		Instrument:   signal.Instrument,
		Side:         signal.Side,
		Units:        c.unitsFor(signal.Instrument),
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
		StrategyName: signal.StrategyName,
		SubmittedAt:  now,
	}
}

// unitsFor sizes the order from the instrument's class.
func (c *Controller) unitsFor(instrument string) float64 {
	if units, ok := c.config.UnitsByClass[InstrumentClass(instrument)]; ok && units > 0 {
		return units
	}

	return c.config.DefaultUnits
}

func (c *Controller) submitTimeout() time.Duration {
	if c.config.SubmitTimeout > 0 {
		return c.config.SubmitTimeout
	}

	return 10 * time.Second
}

func (c *Controller) reject(accountID string, signal types.Signal, reason types.RejectReason) types.AdmissionResult {
	// Rejections are expected outcomes, logged but never alerted.
	c.log.Debug("signal rejected",
		zap.String("account", accountID),
		zap.String("instrument", signal.Instrument),
		zap.String("strategy", signal.StrategyName),
		zap.String("reason", string(reason)),
	)

	return types.AdmissionResult{
		Status:  types.AdmissionRejected,
		OrderID: "",
		Reason:  reason,
		Err:     nil,
	}
}

func (c *Controller) fail(accountID string, signal types.Signal, err error) types.AdmissionResult {
	c.log.Error("admission failed",
		zap.String("account", accountID),
		zap.String("instrument", signal.Instrument),
		zap.String("strategy", signal.StrategyName),
		zap.Error(err),
	)
	c.notifier.Notify(
		fmt.Sprintf("order failed for %s on %s: %v", signal.StrategyName, signal.Instrument, err),
		notifier.CategoryAlert,
	)

	return types.AdmissionResult{
		Status:  types.AdmissionFailed,
		OrderID: "",
		Reason:  "",
		Err:     err,
	}
}

// localDay truncates t to midnight in the counter reset zone.
func localDay(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()

	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// InstrumentClass buckets an instrument for unit sizing. FX pairs quoted in
// JPY trade at a different pip scale, crypto pairs at fractional units.
func InstrumentClass(instrument string) string {
	parts := strings.Split(instrument, "_")
	if len(parts) != 2 {
		return "other"
	}

	switch {
	case parts[1] == "JPY":
		return "fx_jpy"
	case isCryptoBase(parts[0]):
		return "crypto"
	case parts[0] == "XAU" || parts[0] == "XAG":
		return "metal"
	default:
		return "fx"
	}
}

func isCryptoBase(base string) bool {
	switch base {
	case "BTC", "ETH", "SOL", "LTC":
		return true
	default:
		return false
	}
}
