package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// OrderRequest is the broker-facing order produced by the admission
// controller from an admitted Signal.
type OrderRequest struct {
	// ID is the client-generated order id.
	ID string `yaml:"id" json:"id" validate:"required,uuid"`
	// AccountID is the broker account the order is placed on.
	AccountID string `yaml:"account_id" json:"account_id" validate:"required"`
	// Instrument is the traded instrument.
	Instrument string `yaml:"instrument" json:"instrument" validate:"required"`
	// Side is the trade direction.
	Side Side `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	// Units is the position size in instrument units. Always positive; Side
	// carries the direction.
	Units float64 `yaml:"units" json:"units" validate:"required,gt=0"`
	// StopLoss is the absolute stop price. None means no stop attached.
	StopLoss optional.Option[float64] `yaml:"stop_loss" json:"stop_loss"`
	// TakeProfit is the absolute target price. None means no target attached.
	TakeProfit optional.Option[float64] `yaml:"take_profit" json:"take_profit"`
	// StrategyName identifies the strategy whose signal produced the order.
	StrategyName string `yaml:"strategy_name" json:"strategy_name" validate:"required"`
	// SubmittedAt is set by the admission controller just before submission.
	SubmittedAt time.Time `yaml:"submitted_at" json:"submitted_at"`
}

// Validate validates the OrderRequest struct.
func (o *OrderRequest) Validate() error {
	validate := validator.New()

	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order request", err)
	}

	return nil
}

// AdmissionStatus is the outcome class of an Admit call.
type AdmissionStatus string

const (
	// AdmissionExecuted means the order was submitted and accepted.
	AdmissionExecuted AdmissionStatus = "EXECUTED"
	// AdmissionRejected means an admission check refused the signal.
	AdmissionRejected AdmissionStatus = "REJECTED"
	// AdmissionFailed means the broker rejected or errored the submission.
	AdmissionFailed AdmissionStatus = "FAILED"
)

// RejectReason names the admission check that refused a signal.
type RejectReason string

const (
	// RejectDryRun: the process runs with the dry-run kill switch on.
	RejectDryRun RejectReason = "DryRun"
	// RejectAccountDisabled: the account binding is inactive or globally disabled.
	RejectAccountDisabled RejectReason = "AccountDisabled"
	// RejectEnvironmentBlocked: live trading is blocked outside practice environments.
	RejectEnvironmentBlocked RejectReason = "EnvironmentBlocked"
	// RejectDailyLimit: the owning strategy hit its daily trade cap.
	RejectDailyLimit RejectReason = "DailyLimit"
	// RejectDuplicatePosition: an open position already exists on the instrument.
	RejectDuplicatePosition RejectReason = "DuplicatePosition"
	// RejectGlobalCap: open positions plus pending orders hit the account cap.
	RejectGlobalCap RejectReason = "GlobalCap"
	// RejectSymbolCap: the per-instrument concurrency cap is reached.
	RejectSymbolCap RejectReason = "SymbolCap"
)

// AdmissionResult is the outcome of routing one Signal through the
// admission controller.
type AdmissionResult struct {
	// Status is the outcome class.
	Status AdmissionStatus `json:"status"`
	// OrderID is the broker order id. Set only when Status is EXECUTED.
	OrderID string `json:"order_id,omitempty"`
	// Reason names the failed check. Set only when Status is REJECTED.
	Reason RejectReason `json:"reason,omitempty"`
	// Err carries the broker error. Set only when Status is FAILED.
	Err error `json:"-"`
}

// Executed reports whether the admission resulted in a live order.
func (r AdmissionResult) Executed() bool {
	return r.Status == AdmissionExecuted
}
