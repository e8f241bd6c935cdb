package types

// OpenPositionView is the broker's view of one open position. It is read
// fresh from the broker each scan cycle and never cached beyond the cycle.
type OpenPositionView struct {
	// Instrument is the position's instrument.
	Instrument string `json:"instrument"`
	// Side is the position direction.
	Side Side `json:"side"`
	// Units is the position size, always positive.
	Units float64 `json:"units"`
	// EntryPrice is the average fill price.
	EntryPrice float64 `json:"entry_price"`
}

// PendingOrderView is the broker's view of one not-yet-filled entry order.
type PendingOrderView struct {
	// Instrument is the order's instrument.
	Instrument string `json:"instrument"`
	// Side is the order direction.
	Side Side `json:"side"`
	// Units is the order size, always positive.
	Units float64 `json:"units"`
}
