// Package broker defines the order and market data boundary. Every call is
// fallible I/O with no retry built in; retry policy belongs to the callers.
package broker

import (
	"context"

	"github.com/quantrail-lab/quantrail/internal/types"
)

// Broker is the trading venue collaborator. Implementations block up to the
// deadline carried by ctx and report timeouts as transient errors.
type Broker interface {
	// GetCandles returns the most recent count candles for the instrument,
	// oldest first.
	GetCandles(ctx context.Context, instrument string, granularity types.Granularity, count int) ([]types.Candle, error)
	// GetCurrentPrices returns the current bid/ask for each instrument. A
	// missing instrument in the result map means the venue had no quote.
	GetCurrentPrices(ctx context.Context, instruments []string) (map[string]types.Quote, error)
	// GetOpenPositions returns all open positions for the account.
	GetOpenPositions(ctx context.Context, accountID string) ([]types.OpenPositionView, error)
	// GetPendingOrders returns all not-yet-filled entry orders for the account.
	GetPendingOrders(ctx context.Context, accountID string) ([]types.PendingOrderView, error)
	// PlaceMarketOrder submits a market order and returns the venue's order id.
	PlaceMarketOrder(ctx context.Context, order types.OrderRequest) (string, error)
}
