package exchange

import (
	"context"
	"fmt"
	"strconv"

	"cdczone-bot-go/internal/models"

	"github.com/adshao/go-binance/v2"
)

// BinanceClient implements ExecutionClient against the Binance spot API.
type BinanceClient struct {
	client *binance.Client
	retry  RetryPolicy
}

// NewBinanceClient builds the live execution client. Testnet routing is
// controlled by the package-level binance.UseTestnet flag, so it must be set
// before the first client is created.
func NewBinanceClient(apiKey, secretKey string, isTestnet bool, retry RetryPolicy) *BinanceClient {
	binance.UseTestnet = isTestnet
	return &BinanceClient{
		client: binance.NewClient(apiKey, secretKey),
		retry:  retry,
	}
}

func (b *BinanceClient) PlaceMarketOrder(ctx context.Context, pair string, side models.Side, qty float64, clientOrderID string) (*models.Fill, error) {
	sideType := binance.SideTypeBuy
	if side == models.Sell {
		sideType = binance.SideTypeSell
	}

	var res *binance.CreateOrderResponse
	err := b.retry.Do(ctx, "place_order", func() error {
		var err error
		res, err = b.client.NewCreateOrderService().
			Symbol(pair).
			Side(sideType).
			Type(binance.OrderTypeMarket).
			Quantity(strconv.FormatFloat(qty, 'f', -1, 64)).
			NewClientOrderID(clientOrderID).
			NewOrderRespType(binance.NewOrderRespTypeFULL).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	fill := &models.Fill{
		ExchangeOrderID: res.OrderID,
		Status:          mapOrderStatus(res.Status),
	}
	fill.FilledQty, _ = strconv.ParseFloat(res.ExecutedQuantity, 64)
	fill.AvgPrice = avgFillPrice(res.Fills, fill.FilledQty)
	return fill, nil
}

func (b *BinanceClient) GetOrderStatus(ctx context.Context, pair string, exchangeOrderID int64) (*models.Fill, error) {
	var order *binance.Order
	err := b.retry.Do(ctx, "get_order_status", func() error {
		var err error
		order, err = b.client.NewGetOrderService().
			Symbol(pair).
			OrderID(exchangeOrderID).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	fill := &models.Fill{
		ExchangeOrderID: order.OrderID,
		Status:          mapOrderStatus(order.Status),
	}
	fill.FilledQty, _ = strconv.ParseFloat(order.ExecutedQuantity, 64)
	quote, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if fill.FilledQty > 0 {
		fill.AvgPrice = quote / fill.FilledQty
	}
	return fill, nil
}

func (b *BinanceClient) GetBalance(ctx context.Context, asset string) (float64, error) {
	var account *binance.Account
	err := b.retry.Do(ctx, "get_balance", func() error {
		var err error
		account, err = b.client.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, balance := range account.Balances {
		if balance.Asset == asset {
			free, err := strconv.ParseFloat(balance.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("parse balance for %s: %w", asset, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

func (b *BinanceClient) GetPrice(ctx context.Context, pair string) (float64, error) {
	var prices []*binance.SymbolPrice
	err := b.retry.Do(ctx, "get_price", func() error {
		var err error
		prices, err = b.client.NewListPricesService().Symbol(pair).Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price returned for %s", pair)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

// Klines fetches recent candles for a pair; used by the live candle feed.
func (b *BinanceClient) Klines(ctx context.Context, pair, interval string, limit int) ([]*binance.Kline, error) {
	var klines []*binance.Kline
	err := b.retry.Do(ctx, "get_klines", func() error {
		var err error
		klines, err = b.client.NewKlinesService().
			Symbol(pair).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	})
	return klines, err
}

func mapOrderStatus(status binance.OrderStatusType) models.OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled:
		return models.OrderFilled
	case binance.OrderStatusTypePartiallyFilled:
		return models.OrderPartial
	case binance.OrderStatusTypeNew:
		return models.OrderPending
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return models.OrderCanceled
	case binance.OrderStatusTypeRejected:
		return models.OrderFailed
	default:
		return models.OrderPending
	}
}

func avgFillPrice(fills []*binance.Fill, totalQty float64) float64 {
	if totalQty <= 0 {
		return 0
	}
	var quote float64
	for _, f := range fills {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Quantity, 64)
		quote += price * qty
	}
	return quote / totalQty
}
