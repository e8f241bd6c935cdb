package replay

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantrail-lab/quantrail/internal/strategy"
	"github.com/quantrail-lab/quantrail/internal/types"
)

// Report is the outcome of one replay run. Guards echoes the relaxation the
// run was made with; a report plus the strategy configuration reproduces the
// run exactly.
type Report struct {
	StrategyName string                     `json:"strategy_name"`
	Start        time.Time                  `json:"start"`
	End          time.Time                  `json:"end"`
	Guards       strategy.GuardMultipliers  `json:"guards"`
	Signals      int                        `json:"signals"`
	Trades       []Trade                    `json:"trades"`
	Wins         int                        `json:"wins"`
	Losses       int                        `json:"losses"`
	WinRate      float64                    `json:"win_rate"`
	GrossProfit  decimal.Decimal            `json:"gross_profit"`
	GrossLoss    decimal.Decimal            `json:"gross_loss"`
	NetProfit    decimal.Decimal            `json:"net_profit"`
	ProfitFactor float64                    `json:"profit_factor"`
	TradesPerDay float64                    `json:"trades_per_day"`
	AvgQuality   float64                    `json:"avg_quality"`
	Skips        map[types.SkipReason]int   `json:"skips"`

	qualitySum   float64
	qualityCount int
}

func newReport(strategyName string, guards strategy.GuardMultipliers, start, end time.Time) *Report {
	return &Report{
		StrategyName: strategyName,
		Start:        start,
		End:          end,
		Guards:       guards,
		Signals:      0,
		Trades:       nil,
		Wins:         0,
		Losses:       0,
		WinRate:      0,
		GrossProfit:  decimal.Zero,
		GrossLoss:    decimal.Zero,
		NetProfit:    decimal.Zero,
		ProfitFactor: 0,
		TradesPerDay: 0,
		AvgQuality:   0,
		Skips:        make(map[types.SkipReason]int),
		qualitySum:   0,
		qualityCount: 0,
	}
}

func (r *Report) recordTrade(trade Trade) {
	r.Trades = append(r.Trades, trade)

	if trade.Win {
		r.Wins++
		r.GrossProfit = r.GrossProfit.Add(trade.PnL)
	} else {
		r.Losses++
		r.GrossLoss = r.GrossLoss.Add(trade.PnL.Neg())
	}
}

func (r *Report) addQuality(score float64) {
	r.qualitySum += score
	r.qualityCount++
}

// finalize derives the aggregate figures once all trades are recorded.
func (r *Report) finalize() {
	total := r.Wins + r.Losses
	if total > 0 {
		r.WinRate = float64(r.Wins) / float64(total)
	}

	r.NetProfit = r.GrossProfit.Sub(r.GrossLoss)

	// ProfitFactor stays zero when there are no losing trades; the ratio is
	// undefined there and zero keeps the JSON encodable.
	if r.GrossLoss.IsPositive() {
		r.ProfitFactor, _ = r.GrossProfit.Div(r.GrossLoss).Float64()
	}

	days := r.End.Sub(r.Start).Hours() / 24
	if days < 1 {
		days = 1
	}

	r.TradesPerDay = float64(total) / days

	if r.qualityCount > 0 {
		r.AvgQuality = r.qualitySum / float64(r.qualityCount)
	}
}
