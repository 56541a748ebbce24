package exchange

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/jxskiss/base62"
)

// ExecutionClient is the boundary the position engine places orders through.
// Implementations must be safe for concurrent use by per-pair cycles.
type ExecutionClient interface {
	// PlaceMarketOrder submits a market order and returns the immediate fill
	// outcome. A PENDING fill means the exchange accepted the order but has
	// not confirmed execution; the caller reconciles it later via
	// GetOrderStatus.
	PlaceMarketOrder(ctx context.Context, pair string, side models.Side, qty float64, clientOrderID string) (*models.Fill, error)

	// GetOrderStatus fetches the authoritative state of a previously placed
	// order.
	GetOrderStatus(ctx context.Context, pair string, exchangeOrderID int64) (*models.Fill, error)

	// GetBalance returns the free balance of an asset.
	GetBalance(ctx context.Context, asset string) (float64, error)

	// GetPrice returns the latest trade price for a pair.
	GetPrice(ctx context.Context, pair string) (float64, error)
}

// NewClientOrderID generates a unique, exchange-safe client order id from the
// current time and random entropy, base62-encoded.
func NewClientOrderID() string {
	buf := make([]byte, 14)
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixNano()))
	_, _ = rand.Read(buf[8:])
	return "cdc" + base62.EncodeToString(buf)
}
