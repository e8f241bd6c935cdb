package broker

import (
	"context"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/suite"

	"github.com/quantrail-lab/quantrail/internal/types"
	"github.com/quantrail-lab/quantrail/pkg/errors"
)

// mockBinanceClient implements BinanceClient for testing.
type mockBinanceClient struct {
	klinesService         *mockKlinesService
	bookTickerService     *mockBookTickerService
	createOrderService    *mockCreateOrderService
	getAccountService     *mockGetAccountService
	listOpenOrdersService *mockListOpenOrdersService
}

func newMockBinanceClient() *mockBinanceClient {
	return &mockBinanceClient{
		klinesService:         &mockKlinesService{},
		bookTickerService:     &mockBookTickerService{},
		createOrderService:    &mockCreateOrderService{},
		getAccountService:     &mockGetAccountService{},
		listOpenOrdersService: &mockListOpenOrdersService{},
	}
}

func (m *mockBinanceClient) NewKlinesService() KlinesService {
	return m.klinesService
}

func (m *mockBinanceClient) NewBookTickerService() BookTickerService {
	return m.bookTickerService
}

func (m *mockBinanceClient) NewCreateOrderService() CreateOrderService {
	return m.createOrderService
}

func (m *mockBinanceClient) NewGetAccountService() GetAccountService {
	return m.getAccountService
}

func (m *mockBinanceClient) NewListOpenOrdersService() ListOpenOrdersService {
	return m.listOpenOrdersService
}

// mockKlinesService implements KlinesService.
type mockKlinesService struct {
	klines   []*binance.Kline
	err      error
	symbol   string
	interval string
	limit    int
}

func (m *mockKlinesService) Symbol(symbol string) KlinesService {
	m.symbol = symbol
	return m
}

func (m *mockKlinesService) Interval(interval string) KlinesService {
	m.interval = interval
	return m
}

func (m *mockKlinesService) Limit(limit int) KlinesService {
	m.limit = limit
	return m
}

func (m *mockKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	return m.klines, m.err
}

// mockBookTickerService implements BookTickerService.
type mockBookTickerService struct {
	tickers []*binance.BookTicker
	err     error
	symbol  string
}

func (m *mockBookTickerService) Symbol(symbol string) BookTickerService {
	m.symbol = symbol
	return m
}

func (m *mockBookTickerService) Do(_ context.Context) ([]*binance.BookTicker, error) {
	return m.tickers, m.err
}

// mockCreateOrderService implements CreateOrderService.
type mockCreateOrderService struct {
	response *binance.CreateOrderResponse
	err      error
	symbol   string
	side     binance.SideType
	orderTyp binance.OrderType
	quantity string
}

func (m *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	m.symbol = symbol
	return m
}

func (m *mockCreateOrderService) Side(side binance.SideType) CreateOrderService {
	m.side = side
	return m
}

func (m *mockCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	m.orderTyp = orderType
	return m
}

func (m *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	m.quantity = quantity
	return m
}

func (m *mockCreateOrderService) Do(_ context.Context) (*binance.CreateOrderResponse, error) {
	return m.response, m.err
}

// mockGetAccountService implements GetAccountService.
type mockGetAccountService struct {
	account *binance.Account
	err     error
}

func (m *mockGetAccountService) Do(_ context.Context) (*binance.Account, error) {
	return m.account, m.err
}

// mockListOpenOrdersService implements ListOpenOrdersService.
type mockListOpenOrdersService struct {
	orders []*binance.Order
	err    error
}

func (m *mockListOpenOrdersService) Do(_ context.Context) ([]*binance.Order, error) {
	return m.orders, m.err
}

type BinanceTestSuite struct {
	suite.Suite
	client *mockBinanceClient
	broker *Binance
}

func TestBinanceSuite(t *testing.T) {
	suite.Run(t, new(BinanceTestSuite))
}

func (suite *BinanceTestSuite) SetupTest() {
	suite.client = newMockBinanceClient()
	suite.broker = newBinanceWithClient(suite.client)
}

func (suite *BinanceTestSuite) TestGetCandlesMapsKlines() {
	openTime := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	suite.client.klinesService.klines = []*binance.Kline{
		{
			OpenTime: openTime.UnixMilli(),
			Open:     "42000.50",
			High:     "42100.00",
			Low:      "41900.25",
			Close:    "42050.75",
			Volume:   "12.5",
		},
		{
			OpenTime: openTime.Add(5 * time.Minute).UnixMilli(),
			Open:     "42050.75",
			High:     "42200.00",
			Low:      "42000.00",
			Close:    "42150.00",
			Volume:   "8.25",
		},
	}

	candles, err := suite.broker.GetCandles(context.Background(), "BTC_USDT", types.Granularity5m, 2)

	suite.Require().NoError(err)
	suite.Require().Len(candles, 2)
	suite.Equal("BTCUSDT", suite.client.klinesService.symbol)
	suite.Equal("5m", suite.client.klinesService.interval)
	suite.Equal(2, suite.client.klinesService.limit)
	suite.Equal("BTC_USDT", candles[0].Instrument)
	suite.Equal(openTime, candles[0].Time)
	suite.InDelta(42000.50, candles[0].Open, 1e-9)
	suite.InDelta(42100.00, candles[0].High, 1e-9)
	suite.InDelta(41900.25, candles[0].Low, 1e-9)
	suite.InDelta(42050.75, candles[0].Close, 1e-9)
	suite.InDelta(12.5, candles[0].Volume, 1e-9)
}

func (suite *BinanceTestSuite) TestGetCandlesVenueError() {
	suite.client.klinesService.err = errors.New(errors.ErrCodeTransientIO, "rate limited")

	_, err := suite.broker.GetCandles(context.Background(), "BTC_USDT", types.Granularity5m, 100)

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeTransientIO))
}

func (suite *BinanceTestSuite) TestGetCurrentPrices() {
	suite.client.bookTickerService.tickers = []*binance.BookTicker{
		{Symbol: "BTCUSDT", BidPrice: "42000.00", AskPrice: "42000.50"},
	}

	quotes, err := suite.broker.GetCurrentPrices(context.Background(), []string{"BTC_USDT"})

	suite.Require().NoError(err)
	suite.Require().Contains(quotes, "BTC_USDT")
	suite.InDelta(42000.00, quotes["BTC_USDT"].Bid, 1e-9)
	suite.InDelta(42000.50, quotes["BTC_USDT"].Ask, 1e-9)
}

func (suite *BinanceTestSuite) TestGetCurrentPricesEmptyTickerSkipsInstrument() {
	suite.client.bookTickerService.tickers = nil

	quotes, err := suite.broker.GetCurrentPrices(context.Background(), []string{"BTC_USDT"})

	suite.Require().NoError(err)
	suite.NotContains(quotes, "BTC_USDT")
}

func (suite *BinanceTestSuite) TestGetOpenPositionsFromBalances() {
	suite.client.getAccountService.account = &binance.Account{
		Balances: []binance.Balance{
			{Asset: "USDT", Free: "10000", Locked: "0"},
			{Asset: "BTC", Free: "0.5", Locked: "0.1"},
			{Asset: "ETH", Free: "0", Locked: "0"},
		},
	}

	positions, err := suite.broker.GetOpenPositions(context.Background(), "acct-1")

	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal("BTC", positions[0].Instrument)
	suite.Equal(types.SideBuy, positions[0].Side)
	suite.InDelta(0.6, positions[0].Units, 1e-9)
}

func (suite *BinanceTestSuite) TestGetPendingOrders() {
	suite.client.listOpenOrdersService.orders = []*binance.Order{
		{Symbol: "BTCUSDT", Side: binance.SideTypeSell, OrigQuantity: "0.25"},
	}

	orders, err := suite.broker.GetPendingOrders(context.Background(), "acct-1")

	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)
	suite.Equal(types.SideSell, orders[0].Side)
	suite.InDelta(0.25, orders[0].Units, 1e-9)
}

func (suite *BinanceTestSuite) TestPlaceMarketOrder() {
	suite.client.createOrderService.response = &binance.CreateOrderResponse{OrderID: 12345}

	orderID, err := suite.broker.PlaceMarketOrder(context.Background(), types.OrderRequest{
		AccountID:  "acct-1",
		Instrument: "BTC_USDT",
		Side:       types.SideBuy,
		Units:      0.6,
	})

	suite.Require().NoError(err)
	suite.Equal("12345", orderID)
	suite.Equal("BTCUSDT", suite.client.createOrderService.symbol)
	suite.Equal(binance.SideTypeBuy, suite.client.createOrderService.side)
	suite.Equal(binance.OrderTypeMarket, suite.client.createOrderService.orderTyp)
	suite.Equal("0.60000000", suite.client.createOrderService.quantity)
}

func (suite *BinanceTestSuite) TestPlaceMarketOrderRejectsZeroUnits() {
	_, err := suite.broker.PlaceMarketOrder(context.Background(), types.OrderRequest{
		AccountID:  "acct-1",
		Instrument: "BTC_USDT",
		Side:       types.SideBuy,
		Units:      0,
	})

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *BinanceTestSuite) TestPlaceMarketOrderVenueError() {
	suite.client.createOrderService.err = errors.New(errors.ErrCodeTransientIO, "insufficient balance")

	_, err := suite.broker.PlaceMarketOrder(context.Background(), types.OrderRequest{
		AccountID:  "acct-1",
		Instrument: "BTC_USDT",
		Side:       types.SideSell,
		Units:      0.1,
	})

	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeTransientIO))
	suite.True(errors.IsTransient(err))
}

func (suite *BinanceTestSuite) TestVenueSymbol() {
	suite.Equal("BTCUSDT", venueSymbol("BTC_USDT"))
	suite.Equal("GBPUSD", venueSymbol("GBP_USD"))
	suite.Equal("SPX500", venueSymbol("SPX500"))
}
