package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantrail-lab/quantrail/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

const validYAML = `
schema_version: "1.0.0"
scan:
  interval: 5m
  pair_timeout: 30s
  granularity: 5m
  history_size: 64
broker:
  provider: paper
admission:
  max_daily_trades: 4
notifier:
  provider: none
accounts:
  - account_id: "101-001-1234567-001"
    strategy_name: momentum-eur
    active: true
    instruments: [EUR_USD, GBP_USD]
strategies:
  - name: momentum-eur
    type: momentum
    thresholds:
      min_confidence: 0.6
    allowed_zones: [LondonOpen, Overlap]
    min_interval: 45m
    band:
      min_per_day: 0.5
      max_per_day: 4
`

func (suite *ConfigTestSuite) TestParseValid() {
	config, err := Parse([]byte(validYAML))
	suite.Require().NoError(err)

	suite.Equal(5*time.Minute, config.Scan.Interval.Std())
	suite.Equal(30*time.Second, config.Scan.PairTimeout.Std())
	suite.Equal(4, config.Admission.MaxDailyTrades)

	// Defaults survive a partial file.
	suite.Equal(30*time.Minute, config.Adaptive.Interval.Std())
	suite.InDelta(0.60, config.Adaptive.LowWinRate, 1e-9)
	suite.InDelta(30, config.Quality.Weights.Trend, 1e-9)

	suite.Require().Len(config.ActiveBindings(), 1)
	suite.Equal("momentum-eur", config.ActiveBindings()[0].StrategyName)

	strategyConfig, ok := config.Strategy("momentum-eur")
	suite.Require().True(ok)
	suite.Equal(45*time.Minute, strategyConfig.MinInterval.Std())
	suite.Len(strategyConfig.Zones(), 2)
}

func (suite *ConfigTestSuite) TestMissingAccountsFatal() {
	yaml := `
schema_version: "1.0.0"
strategies:
  - name: momentum-eur
    type: momentum
`

	_, err := Parse([]byte(yaml))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingConfigField))
	suite.Contains(err.Error(), "Accounts")
}

func (suite *ConfigTestSuite) TestUnknownStrategyReference() {
	yaml := `
schema_version: "1.0.0"
accounts:
  - account_id: a1
    strategy_name: missing
    active: true
    instruments: [EUR_USD]
strategies:
  - name: momentum-eur
    type: momentum
`

	_, err := Parse([]byte(yaml))
	suite.Require().Error(err)
	suite.Contains(err.Error(), `unknown strategy "missing"`)
}

func (suite *ConfigTestSuite) TestDuplicateStrategyName() {
	yaml := `
schema_version: "1.0.0"
accounts:
  - account_id: a1
    strategy_name: momentum-eur
    active: true
    instruments: [EUR_USD]
strategies:
  - name: momentum-eur
    type: momentum
  - name: momentum-eur
    type: breakout
`

	_, err := Parse([]byte(yaml))
	suite.Require().Error(err)
	suite.Contains(err.Error(), "duplicate strategy name")
}

func (suite *ConfigTestSuite) TestSchemaVersionMismatch() {
	yaml := `
schema_version: "2.0.0"
accounts:
  - account_id: a1
    strategy_name: momentum-eur
    active: true
    instruments: [EUR_USD]
strategies:
  - name: momentum-eur
    type: momentum
`

	_, err := Parse([]byte(yaml))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSchemaVersion))
}

func (suite *ConfigTestSuite) TestBinanceRequiresCredentials() {
	yaml := `
schema_version: "1.0.0"
broker:
  provider: binance
accounts:
  - account_id: a1
    strategy_name: momentum-eur
    active: true
    instruments: [EUR_USD]
strategies:
  - name: momentum-eur
    type: momentum
`

	_, err := Parse([]byte(yaml))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingConfigField))
	suite.Contains(err.Error(), "api_key")
}

func (suite *ConfigTestSuite) TestInvalidDuration() {
	yaml := `
schema_version: "1.0.0"
scan:
  interval: soon
accounts:
  - account_id: a1
    strategy_name: momentum-eur
    active: true
    instruments: [EUR_USD]
strategies:
  - name: momentum-eur
    type: momentum
`

	_, err := Parse([]byte(yaml))
	suite.Require().Error(err)
	suite.Contains(err.Error(), "invalid duration")
}

func (suite *ConfigTestSuite) TestSchemaRenders() {
	schema, err := ToJSONSchema()
	suite.Require().NoError(err)
	suite.Contains(schema, "schema_version")
	suite.Contains(schema, "accounts")
}
