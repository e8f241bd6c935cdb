package broker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

const (
	// binanceDecimalPrecision is the quantity precision used when formatting
	// order sizes. 8 decimals covers satoshi-level sizing; production setups
	// should read symbol filters (LOT_SIZE) from exchange info instead.
	binanceDecimalPrecision = 8
)

// Service interfaces for mocking the Binance API.

// KlinesService interface for fetching candles.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BookTickerService interface for fetching best bid/ask.
type BookTickerService interface {
	Symbol(symbol string) BookTickerService
	Do(ctx context.Context) ([]*binance.BookTicker, error)
}

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// ListOpenOrdersService interface for listing open orders.
type ListOpenOrdersService interface {
	Do(ctx context.Context) ([]*binance.Order, error)
}

// BinanceClient abstracts the Binance client for testing.
type BinanceClient interface {
	NewKlinesService() KlinesService
	NewBookTickerService() BookTickerService
	NewCreateOrderService() CreateOrderService
	NewGetAccountService() GetAccountService
	NewListOpenOrdersService() ListOpenOrdersService
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

func (r *realBinanceClient) NewBookTickerService() BookTickerService {
	return &realBookTickerService{service: r.client.NewListBookTickersService()}
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realBinanceClient) NewListOpenOrdersService() ListOpenOrdersService {
	return &realListOpenOrdersService{service: r.client.NewListOpenOrdersService()}
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

type realBookTickerService struct {
	service *binance.ListBookTickersService
}

func (s *realBookTickerService) Symbol(symbol string) BookTickerService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realBookTickerService) Do(ctx context.Context) ([]*binance.BookTicker, error) {
	return s.service.Do(ctx)
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

type realListOpenOrdersService struct {
	service *binance.ListOpenOrdersService
}

func (s *realListOpenOrdersService) Do(ctx context.Context) ([]*binance.Order, error) {
	return s.service.Do(ctx)
}

// BinanceConfig holds the credentials and endpoint for the Binance broker.
type BinanceConfig struct {
	// APIKey and SecretKey are required when the binance provider is
	// selected; the config loader enforces that.
	APIKey    string `yaml:"api_key" json:"api_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	// BaseURL overrides the default endpoint. Takes precedence over
	// UseTestnet when set.
	BaseURL    string `yaml:"base_url" json:"base_url"`
	UseTestnet bool   `yaml:"use_testnet" json:"use_testnet"`
}

// Binance implements Broker on the Binance spot API. It is stateless, every
// call goes straight to the venue.
type Binance struct {
	client BinanceClient
}

// NewBinance creates a Binance-backed broker. If config.UseTestnet is true it
// connects to the Binance testnet.
func NewBinance(config BinanceConfig) (*Binance, error) {
	if config.UseTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(config.APIKey, config.SecretKey)

	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return &Binance{client: &realBinanceClient{client: client}}, nil
}

// newBinanceWithClient creates a Binance broker with a custom client. Used by
// tests with mock clients.
func newBinanceWithClient(client BinanceClient) *Binance {
	return &Binance{client: client}
}

// venueSymbol maps an internal instrument name like BTC_USDT to the venue's
// BTCUSDT form.
func venueSymbol(instrument string) string {
	return strings.ReplaceAll(instrument, "_", "")
}

func (b *Binance) GetCandles(ctx context.Context, instrument string, granularity types.Granularity, count int) ([]types.Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(venueSymbol(instrument)).
		Interval(string(granularity)).
		Limit(count).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransientIO, "failed to fetch klines from Binance", err)
	}

	candles := make([]types.Candle, 0, len(klines))

	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		cls, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		candles = append(candles, types.Candle{
			Instrument: instrument,
			Time:       time.UnixMilli(k.OpenTime).UTC(),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      cls,
			Volume:     volume,
		})
	}

	return candles, nil
}

func (b *Binance) GetCurrentPrices(ctx context.Context, instruments []string) (map[string]types.Quote, error) {
	out := make(map[string]types.Quote, len(instruments))

	for _, instrument := range instruments {
		tickers, err := b.client.NewBookTickerService().
			Symbol(venueSymbol(instrument)).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeTransientIO, err, "failed to fetch book ticker for %s", instrument)
		}

		if len(tickers) == 0 {
			continue
		}

		bid, _ := strconv.ParseFloat(tickers[0].BidPrice, 64)
		ask, _ := strconv.ParseFloat(tickers[0].AskPrice, 64)
		out[instrument] = types.Quote{Bid: bid, Ask: ask}
	}

	return out, nil
}

// GetOpenPositions derives positions from non-zero base asset balances. Spot
// accounts have no position ledger, so a held balance is treated as one long
// position with an unknown entry price. accountID is ignored, the client's
// credentials select the account.
func (b *Binance) GetOpenPositions(ctx context.Context, accountID string) ([]types.OpenPositionView, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransientIO, "failed to get account info from Binance", err)
	}

	positions := make([]types.OpenPositionView, 0)

	for _, balance := range account.Balances {
		free, _ := strconv.ParseFloat(balance.Free, 64)
		locked, _ := strconv.ParseFloat(balance.Locked, 64)
		total := free + locked

		if total > 0 && !isQuoteAsset(balance.Asset) {
			positions = append(positions, types.OpenPositionView{
				Instrument: balance.Asset,
				Side:       types.SideBuy,
				Units:      total,
				EntryPrice: 0,
			})
		}
	}

	return positions, nil
}

func (b *Binance) GetPendingOrders(ctx context.Context, accountID string) ([]types.PendingOrderView, error) {
	binanceOrders, err := b.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransientIO, "failed to get open orders from Binance", err)
	}

	orders := make([]types.PendingOrderView, 0, len(binanceOrders))

	for _, bo := range binanceOrders {
		units, _ := strconv.ParseFloat(bo.OrigQuantity, 64)

		side := types.SideBuy
		if bo.Side == binance.SideTypeSell {
			side = types.SideSell
		}

		orders = append(orders, types.PendingOrderView{
			Instrument: bo.Symbol,
			Side:       side,
			Units:      units,
		})
	}

	return orders, nil
}

func (b *Binance) PlaceMarketOrder(ctx context.Context, order types.OrderRequest) (string, error) {
	var side binance.SideType

	switch order.Side {
	case types.SideBuy:
		side = binance.SideTypeBuy
	case types.SideSell:
		side = binance.SideTypeSell
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", order.Side)
	}

	if order.Units <= 0 {
		return "", errors.New(errors.ErrCodeInvalidParameter, "order units must be greater than zero")
	}

	response, err := b.client.NewCreateOrderService().
		Symbol(venueSymbol(order.Instrument)).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(order.Units, 'f', binanceDecimalPrecision, 64)).
		Do(ctx)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeTransientIO, "failed to place order on Binance", err)
	}

	return strconv.FormatInt(response.OrderID, 10), nil
}

// isQuoteAsset reports whether the asset is a funding currency rather than a
// held position.
func isQuoteAsset(asset string) bool {
	switch asset {
	case "USDT", "BUSD", "USDC", "USD":
		return true
	default:
		return false
	}
}

// Ensure Binance implements Broker.
var _ Broker = (*Binance)(nil)
