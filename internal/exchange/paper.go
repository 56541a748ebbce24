package exchange

import (
	"context"
	"fmt"
	"sync"

	"cdczone-bot-go/internal/models"
)

// PaperClient simulates execution for backtest and paper-trade runs. Market
// orders fill immediately at the configured price; FillRatio below 1.0
// produces PARTIAL fills, mirroring what a thin live book can do.
type PaperClient struct {
	mu         sync.Mutex
	prices     map[string]float64
	balances   map[string]float64
	quoteAsset string
	FillRatio  float64
	nextID     int64
	orders     map[int64]*models.Fill
}

// NewPaperClient starts a simulated account with the given quote balance.
func NewPaperClient(quoteAsset string, quoteBalance float64) *PaperClient {
	return &PaperClient{
		prices:     make(map[string]float64),
		balances:   map[string]float64{quoteAsset: quoteBalance},
		quoteAsset: quoteAsset,
		FillRatio:  1.0,
		orders:     make(map[int64]*models.Fill),
	}
}

// SetPrice updates the simulated market price for a pair.
func (p *PaperClient) SetPrice(pair string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[pair] = price
}

// SetBalance overrides an asset balance.
func (p *PaperClient) SetBalance(asset string, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[asset] = amount
}

func (p *PaperClient) PlaceMarketOrder(_ context.Context, pair string, side models.Side, qty float64, _ string) (*models.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[pair]
	if !ok || price <= 0 {
		return nil, &models.ExecutionError{Op: "place_order", Err: fmt.Errorf("no price for %s", pair)}
	}

	ratio := p.FillRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	filled := qty * ratio
	status := models.OrderFilled
	if ratio < 1 {
		status = models.OrderPartial
	}

	if side == models.Buy {
		p.balances[p.quoteAsset] -= filled * price
	} else {
		p.balances[p.quoteAsset] += filled * price
	}

	p.nextID++
	fill := &models.Fill{
		ExchangeOrderID: p.nextID,
		Status:          status,
		FilledQty:       filled,
		AvgPrice:        price,
	}
	p.orders[p.nextID] = fill
	return fill, nil
}

func (p *PaperClient) GetOrderStatus(_ context.Context, _ string, exchangeOrderID int64) (*models.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fill, ok := p.orders[exchangeOrderID]
	if !ok {
		return nil, &models.ExecutionError{Op: "get_order_status", Err: fmt.Errorf("unknown order %d", exchangeOrderID)}
	}
	copied := *fill
	return &copied, nil
}

func (p *PaperClient) GetBalance(_ context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[asset], nil
}

func (p *PaperClient) GetPrice(_ context.Context, pair string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.prices[pair]
	if !ok {
		return 0, fmt.Errorf("no price for %s", pair)
	}
	return price, nil
}
