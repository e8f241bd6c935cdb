package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// Paper is an in-memory broker used for dry runs and tests. Orders never
// touch a venue; a placed market order immediately becomes an open position
// at the seeded quote. Candle and quote data is whatever was seeded.
type Paper struct {
	mu        sync.Mutex
	quotes    map[string]types.Quote
	candles   map[string][]types.Candle
	positions map[string][]types.OpenPositionView
	pending   map[string][]types.PendingOrderView
	placed    []types.OrderRequest
	nextID    int
	placeErr  error
	priceErr  error
}

// NewPaper creates an empty paper broker.
func NewPaper() *Paper {
	return &Paper{
		quotes:    make(map[string]types.Quote),
		candles:   make(map[string][]types.Candle),
		positions: make(map[string][]types.OpenPositionView),
		pending:   make(map[string][]types.PendingOrderView),
		placed:    nil,
		nextID:    1,
		placeErr:  nil,
		priceErr:  nil,
	}
}

// SetQuote seeds the current bid/ask for an instrument.
func (p *Paper) SetQuote(instrument string, quote types.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[instrument] = quote
}

// SetCandles seeds the candle series for an instrument, oldest first.
func (p *Paper) SetCandles(instrument string, candles []types.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[instrument] = candles
}

// SeedPosition adds an open position visible to GetOpenPositions.
func (p *Paper) SeedPosition(accountID string, position types.OpenPositionView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[accountID] = append(p.positions[accountID], position)
}

// RemovePosition drops the account's position on the instrument, simulating
// a close that happened on the venue side.
func (p *Paper) RemovePosition(accountID, instrument string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.positions[accountID][:0]

	for _, position := range p.positions[accountID] {
		if position.Instrument != instrument {
			kept = append(kept, position)
		}
	}

	p.positions[accountID] = kept
}

// SeedPendingOrder adds a pending entry order visible to GetPendingOrders.
func (p *Paper) SeedPendingOrder(accountID string, order types.PendingOrderView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[accountID] = append(p.pending[accountID], order)
}

// FailNextPlace makes every subsequent PlaceMarketOrder return err until
// called again with nil.
func (p *Paper) FailNextPlace(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placeErr = err
}

// FailPrices makes every subsequent GetCurrentPrices return err until called
// again with nil.
func (p *Paper) FailPrices(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.priceErr = err
}

// PlacedOrders returns a copy of every order accepted so far, in submission
// order.
func (p *Paper) PlacedOrders() []types.OrderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.OrderRequest, len(p.placed))
	copy(out, p.placed)

	return out
}

func (p *Paper) GetCandles(ctx context.Context, instrument string, granularity types.Granularity, count int) ([]types.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	series, ok := p.candles[instrument]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "no candles seeded for %s", instrument)
	}

	if count > 0 && len(series) > count {
		series = series[len(series)-count:]
	}

	out := make([]types.Candle, len(series))
	copy(out, series)

	return out, nil
}

func (p *Paper) GetCurrentPrices(ctx context.Context, instruments []string) (map[string]types.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.priceErr != nil {
		return nil, p.priceErr
	}

	out := make(map[string]types.Quote, len(instruments))

	for _, instrument := range instruments {
		if quote, ok := p.quotes[instrument]; ok {
			out[instrument] = quote
		}
	}

	return out, nil
}

func (p *Paper) GetOpenPositions(ctx context.Context, accountID string) ([]types.OpenPositionView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.OpenPositionView, len(p.positions[accountID]))
	copy(out, p.positions[accountID])

	return out, nil
}

func (p *Paper) GetPendingOrders(ctx context.Context, accountID string) ([]types.PendingOrderView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.PendingOrderView, len(p.pending[accountID]))
	copy(out, p.pending[accountID])

	return out, nil
}

// PlaceMarketOrder fills the order at the seeded quote and records it as an
// open position for the account.
func (p *Paper) PlaceMarketOrder(ctx context.Context, order types.OrderRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.placeErr != nil {
		return "", p.placeErr
	}

	quote, ok := p.quotes[order.Instrument]
	if !ok {
		return "", errors.Newf(errors.ErrCodeDataNotFound, "no quote seeded for %s", order.Instrument)
	}

	fill := quote.Ask
	if order.Side == types.SideSell {
		fill = quote.Bid
	}

	p.positions[order.AccountID] = append(p.positions[order.AccountID], types.OpenPositionView{
		Instrument: order.Instrument,
		Side:       order.Side,
		Units:      order.Units,
		EntryPrice: fill,
	})
	p.placed = append(p.placed, order)

	id := fmt.Sprintf("paper-%04d", p.nextID)
	p.nextID++

	return id, nil
}

// Ensure Paper implements Broker.
var _ Broker = (*Paper)(nil)
