// Package config loads and validates the process configuration. The file is
// read once at startup and again on an explicit reload signal; configuration
// errors are fatal and name the offending field.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quantrail-lab/quantrail/internal/adaptive"
	"github.com/quantrail-lab/quantrail/internal/admission"
	"github.com/quantrail-lab/quantrail/internal/broker"
	"github.com/quantrail-lab/quantrail/internal/notifier"
	"github.com/quantrail-lab/quantrail/internal/quality"
	"github.com/quantrail-lab/quantrail/internal/replay"
	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// SchemaVersion is the config schema this build reads. Major and minor of
// the file's schema_version must match; patch may differ.
const SchemaVersion = "1.0.0"

// Duration wraps time.Duration so YAML accepts "5m" style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AccountBinding ties one broker account to one strategy over a set of
// instruments.
type AccountBinding struct {
	// AccountID is the broker account identifier.
	AccountID string `yaml:"account_id" json:"account_id" validate:"required"`
	// StrategyName references an entry in the strategies list.
	StrategyName string `yaml:"strategy_name" json:"strategy_name" validate:"required"`
	// Active pauses the binding without removing it.
	Active bool `yaml:"active" json:"active"`
	// Instruments lists the instruments the strategy scans for this account.
	Instruments []string `yaml:"instruments" json:"instruments" validate:"required,min=1,dive,required"`
}

// StrategyConfig constructs one strategy instance.
type StrategyConfig struct {
	// Name is the unique strategy name bindings reference.
	Name string `yaml:"name" json:"name" validate:"required"`
	// Type selects the implementation.
	Type string `yaml:"type" json:"type" validate:"required,oneof=momentum breakout"`
	// Thresholds overrides default knob values by name.
	Thresholds map[string]float64 `yaml:"thresholds" json:"thresholds"`
	// AllowedZones restricts trading to the named kill zones. Empty means
	// unrestricted.
	AllowedZones []string `yaml:"allowed_zones" json:"allowed_zones" validate:"dive,oneof=Asia LondonOpen Overlap NewYork OffSession"`
	// MinInterval is the live minimum time between trades per instrument.
	MinInterval Duration `yaml:"min_interval" json:"min_interval"`
	// HistorySize caps the candle history the strategy considers.
	HistorySize int `yaml:"history_size" json:"history_size" validate:"gte=0"`
	// Band is the deploy gate's acceptable trades-per-day range.
	Band replay.Band `yaml:"band" json:"band"`
}

// ScanConfig drives the scan scheduler.
type ScanConfig struct {
	// Interval is the time between scan cycles.
	Interval Duration `yaml:"interval" json:"interval"`
	// PairTimeout bounds one account-strategy pair within a cycle.
	PairTimeout Duration `yaml:"pair_timeout" json:"pair_timeout"`
	// MaxBackoff caps the escalation backoff after consecutive fully-failed
	// cycles.
	MaxBackoff Duration `yaml:"max_backoff" json:"max_backoff"`
	// Granularity is the candle interval fetched for evaluation.
	Granularity types.Granularity `yaml:"granularity" json:"granularity" validate:"required,oneof=1m 5m 15m 1h 4h 1d"`
	// HistorySize is the number of candles fetched per instrument.
	HistorySize int `yaml:"history_size" json:"history_size" validate:"gt=0"`
}

// AdmissionConfig is the file-facing mirror of the admission limits.
type AdmissionConfig struct {
	DryRun             bool               `yaml:"dry_run" json:"dry_run"`
	LiveTradingBlocked bool               `yaml:"live_trading_blocked" json:"live_trading_blocked"`
	DisabledAccounts   []string           `yaml:"disabled_accounts" json:"disabled_accounts"`
	MaxDailyTrades     int                `yaml:"max_daily_trades" json:"max_daily_trades" validate:"gt=0"`
	MaxOpenPositions   int                `yaml:"max_open_positions" json:"max_open_positions" validate:"gt=0"`
	MaxPerInstrument   int                `yaml:"max_per_instrument" json:"max_per_instrument" validate:"gt=0"`
	UnitsByClass       map[string]float64 `yaml:"units_by_class" json:"units_by_class"`
	DefaultUnits       float64            `yaml:"default_units" json:"default_units" validate:"gt=0"`
	SubmitTimeout      Duration           `yaml:"submit_timeout" json:"submit_timeout"`
	Timezone           string             `yaml:"timezone" json:"timezone"`
}

// ToController converts to the admission controller's config.
func (c AdmissionConfig) ToController() admission.Config {
	return admission.Config{
		DryRun:             c.DryRun,
		LiveTradingBlocked: c.LiveTradingBlocked,
		DisabledAccounts:   c.DisabledAccounts,
		MaxDailyTrades:     c.MaxDailyTrades,
		MaxOpenPositions:   c.MaxOpenPositions,
		MaxPerInstrument:   c.MaxPerInstrument,
		UnitsByClass:       c.UnitsByClass,
		DefaultUnits:       c.DefaultUnits,
		SubmitTimeout:      c.SubmitTimeout.Std(),
		Timezone:           c.Timezone,
	}
}

// AdaptiveConfig is the file-facing mirror of the adaptive controller's
// tuning parameters.
type AdaptiveConfig struct {
	Interval        Duration `yaml:"interval" json:"interval"`
	NoSignalAfter   Duration `yaml:"no_signal_after" json:"no_signal_after"`
	MinSampleSize   int      `yaml:"min_sample_size" json:"min_sample_size" validate:"gt=0"`
	LowWinRate      float64  `yaml:"low_win_rate" json:"low_win_rate" validate:"gte=0,lte=1"`
	HighWinRate     float64  `yaml:"high_win_rate" json:"high_win_rate" validate:"gte=0,lte=1"`
	LoosenFraction  float64  `yaml:"loosen_fraction" json:"loosen_fraction" validate:"gt=0,lt=1"`
	TightenFraction float64  `yaml:"tighten_fraction" json:"tighten_fraction" validate:"gt=0,lt=1"`
	SessionRelax    float64  `yaml:"session_relax" json:"session_relax" validate:"gte=0,lt=1"`
}

// ToController converts to the adaptive controller's config.
func (c AdaptiveConfig) ToController() adaptive.Config {
	return adaptive.Config{
		Interval:        c.Interval.Std(),
		NoSignalAfter:   c.NoSignalAfter.Std(),
		MinSampleSize:   c.MinSampleSize,
		LowWinRate:      c.LowWinRate,
		HighWinRate:     c.HighWinRate,
		LoosenFraction:  c.LoosenFraction,
		TightenFraction: c.TightenFraction,
		SessionRelax:    c.SessionRelax,
	}
}

// QualityConfig holds the scorer's weights and cutoffs.
type QualityConfig struct {
	Weights quality.Weights `yaml:"weights" json:"weights"`
	Cutoffs quality.Cutoffs `yaml:"cutoffs" json:"cutoffs"`
}

// BrokerConfig selects and configures the broker implementation.
type BrokerConfig struct {
	// Provider is either "paper" or "binance".
	Provider string               `yaml:"provider" json:"provider" validate:"required,oneof=paper binance"`
	Binance  broker.BinanceConfig `yaml:"binance" json:"binance"`
}

// NotifierConfig selects and configures the messaging sink.
type NotifierConfig struct {
	// Provider is either "none" or "webhook".
	Provider string                 `yaml:"provider" json:"provider" validate:"required,oneof=none webhook"`
	Webhook  notifier.WebhookConfig `yaml:"webhook" json:"webhook"`
}

// MetricsConfig configures the status HTTP server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ListenAddr is the host:port the status server binds to.
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// Config is the full process configuration.
type Config struct {
	// SchemaVersionField pins the config schema the file was written for.
	SchemaVersionField string           `yaml:"schema_version" json:"schema_version" validate:"required"`
	Scan               ScanConfig       `yaml:"scan" json:"scan"`
	Broker             BrokerConfig     `yaml:"broker" json:"broker"`
	Admission          AdmissionConfig  `yaml:"admission" json:"admission"`
	Adaptive           AdaptiveConfig   `yaml:"adaptive" json:"adaptive"`
	Quality            QualityConfig    `yaml:"quality" json:"quality"`
	Notifier           NotifierConfig   `yaml:"notifier" json:"notifier"`
	Metrics            MetricsConfig    `yaml:"metrics" json:"metrics"`
	Accounts           []AccountBinding `yaml:"accounts" json:"accounts" validate:"required,min=1,dive"`
	Strategies         []StrategyConfig `yaml:"strategies" json:"strategies" validate:"required,min=1,dive"`
}

// Default returns a config with every tunable at its production default.
// Loading overlays the file on top of this.
func Default() Config {
	adaptiveDefaults := adaptive.DefaultConfig()
	admissionDefaults := admission.DefaultConfig()

	return Config{
		SchemaVersionField: SchemaVersion,
		Scan: ScanConfig{
			Interval:    Duration(5 * time.Minute),
			PairTimeout: Duration(30 * time.Second),
			MaxBackoff:  Duration(40 * time.Minute),
			Granularity: types.Granularity5m,
			HistorySize: 64,
		},
		Broker: BrokerConfig{
			Provider: "paper",
			Binance: broker.BinanceConfig{
				APIKey:     "",
				SecretKey:  "",
				BaseURL:    "",
				UseTestnet: false,
			},
		},
		Admission: AdmissionConfig{
			DryRun:             admissionDefaults.DryRun,
			LiveTradingBlocked: admissionDefaults.LiveTradingBlocked,
			DisabledAccounts:   admissionDefaults.DisabledAccounts,
			MaxDailyTrades:     admissionDefaults.MaxDailyTrades,
			MaxOpenPositions:   admissionDefaults.MaxOpenPositions,
			MaxPerInstrument:   admissionDefaults.MaxPerInstrument,
			UnitsByClass:       admissionDefaults.UnitsByClass,
			DefaultUnits:       admissionDefaults.DefaultUnits,
			SubmitTimeout:      Duration(admissionDefaults.SubmitTimeout),
			Timezone:           admissionDefaults.Timezone,
		},
		Adaptive: AdaptiveConfig{
			Interval:        Duration(adaptiveDefaults.Interval),
			NoSignalAfter:   Duration(adaptiveDefaults.NoSignalAfter),
			MinSampleSize:   adaptiveDefaults.MinSampleSize,
			LowWinRate:      adaptiveDefaults.LowWinRate,
			HighWinRate:     adaptiveDefaults.HighWinRate,
			LoosenFraction:  adaptiveDefaults.LoosenFraction,
			TightenFraction: adaptiveDefaults.TightenFraction,
			SessionRelax:    adaptiveDefaults.SessionRelax,
		},
		Quality: QualityConfig{
			Weights: quality.DefaultWeights(),
			Cutoffs: quality.DefaultCutoffs(),
		},
		Notifier: NotifierConfig{
			Provider: "none",
			Webhook: notifier.WebhookConfig{
				URL:               "",
				MessagesPerMinute: 0,
			},
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
		Accounts:   nil,
		Strategies: nil,
	}
}

// Load reads, parses, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfig, err, "failed to read config %s", path)
	}

	return Parse(data)
}

// Parse parses and validates a raw YAML config.
func Parse(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks field constraints, schema version compatibility, and
// cross references between bindings and strategies.
func (c *Config) Validate() error {
	if err := checkSchemaVersion(c.SchemaVersionField); err != nil {
		return err
	}

	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.Newf(errors.ErrCodeMissingConfigField,
				"config field %s failed rule %q", verrs[0].Namespace(), verrs[0].Tag())
		}

		return errors.Wrap(errors.ErrCodeInvalidConfig, "config validation failed", err)
	}

	names := make(map[string]bool, len(c.Strategies))

	for _, s := range c.Strategies {
		if names[s.Name] {
			return errors.Newf(errors.ErrCodeInvalidConfig, "duplicate strategy name %q", s.Name)
		}

		names[s.Name] = true
	}

	for _, binding := range c.Accounts {
		if !names[binding.StrategyName] {
			return errors.Newf(errors.ErrCodeInvalidConfig,
				"account %s references unknown strategy %q", binding.AccountID, binding.StrategyName)
		}
	}

	if c.Broker.Provider == "binance" {
		if c.Broker.Binance.APIKey == "" || c.Broker.Binance.SecretKey == "" {
			return errors.New(errors.ErrCodeMissingConfigField,
				"config field broker.binance.api_key/secret_key required for the binance provider")
		}
	}

	if c.Notifier.Provider == "webhook" && c.Notifier.Webhook.URL == "" {
		return errors.New(errors.ErrCodeMissingConfigField,
			"config field notifier.webhook.url required for the webhook provider")
	}

	return nil
}

// ActiveBindings returns the bindings with Active set, in file order.
func (c *Config) ActiveBindings() []AccountBinding {
	out := make([]AccountBinding, 0, len(c.Accounts))

	for _, binding := range c.Accounts {
		if binding.Active {
			out = append(out, binding)
		}
	}

	return out
}

// Strategy returns the strategy config by name.
func (c *Config) Strategy(name string) (StrategyConfig, bool) {
	for _, s := range c.Strategies {
		if s.Name == name {
			return s, true
		}
	}

	return StrategyConfig{}, false
}

// Zones parses the AllowedZones names. Validation already rejected unknown
// names.
func (s StrategyConfig) Zones() []types.KillZone {
	zones := make([]types.KillZone, 0, len(s.AllowedZones))
	for _, name := range s.AllowedZones {
		zones = append(zones, types.KillZone(name))
	}

	return zones
}

// checkSchemaVersion requires the file's major.minor to match this build's.
func checkSchemaVersion(raw string) error {
	fileVersion, err := semver.NewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		return errors.Newf(errors.ErrCodeSchemaVersion, "invalid schema_version %q: %v", raw, err)
	}

	supported := semver.MustParse(SchemaVersion)

	if fileVersion.Major() != supported.Major() || fileVersion.Minor() != supported.Minor() {
		return errors.Newf(errors.ErrCodeSchemaVersion,
			"config schema %s is incompatible with supported schema %s (major.minor must match)",
			raw, SchemaVersion)
	}

	return nil
}
