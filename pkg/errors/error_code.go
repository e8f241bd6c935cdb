package errors

// ErrorCode is a typed numeric code identifying a class of error.
type ErrorCode int

// General errors (1-99).
const (
	// ErrCodeUnknown is the fallback code for errors without an explicit code.
	ErrCodeUnknown ErrorCode = 1
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = 2
)

// Configuration and validation errors (100-199). Fatal at startup.
const (
	// ErrCodeInvalidConfig indicates a config file that failed validation.
	ErrCodeInvalidConfig ErrorCode = 100
	// ErrCodeMissingConfigField indicates a required config field is absent.
	ErrCodeMissingConfigField ErrorCode = 101
	// ErrCodeSchemaVersion indicates an incompatible config schema version.
	ErrCodeSchemaVersion ErrorCode = 102
	// ErrCodeInvalidParameter indicates an invalid caller-supplied parameter.
	ErrCodeInvalidParameter ErrorCode = 110
)

// Data and resource errors (200-299).
const (
	// ErrCodeDataNotFound indicates no data exists for the requested key.
	ErrCodeDataNotFound ErrorCode = 200
	// ErrCodeQueryFailed indicates a candle store query failed.
	ErrCodeQueryFailed ErrorCode = 201
	// ErrCodeImportFailed indicates a candle import failed.
	ErrCodeImportFailed ErrorCode = 202
)

// Market data and transient IO errors (300-399). Retried on the next scan
// cycle, never inline.
const (
	// ErrCodeTransientIO indicates a network or broker IO failure.
	ErrCodeTransientIO ErrorCode = 300
	// ErrCodeFetchTimeout indicates a market data fetch exceeded its budget.
	ErrCodeFetchTimeout ErrorCode = 301
)

// Admission errors (400-499).
const (
	// ErrCodeAdmissionRejected indicates a signal was rejected by an
	// admission check. Expected, logged, never alerted.
	ErrCodeAdmissionRejected ErrorCode = 400
	// ErrCodeAdmissionFailed indicates the broker rejected or errored the
	// order submission. Alerted, not retried automatically.
	ErrCodeAdmissionFailed ErrorCode = 401
)

// Replay errors (500-599). Fail the replay run only.
const (
	// ErrCodeReplayInvariant indicates a replay invariant violation, such as
	// a signal referencing an instrument absent from the supplied series.
	ErrCodeReplayInvariant ErrorCode = 500
	// ErrCodeEmptySeries indicates the replay was given no candles.
	ErrCodeEmptySeries ErrorCode = 501
)
