package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"cdczone-bot-go/internal/logger"

	"github.com/gorilla/websocket"
)

// PriceStream holds a combined mini-ticker websocket subscription and fans
// price ticks out to the protective-stop hook. It reconnects with backoff
// until the context is canceled.
type PriceStream struct {
	baseURL string
	pairs   []string
	onPrice func(pair string, price float64)

	mu     sync.RWMutex
	prices map[string]float64
}

// NewPriceStream subscribes to the given pairs. baseURL is the websocket
// endpoint, e.g. "wss://stream.binance.com:9443".
func NewPriceStream(baseURL string, pairs []string, onPrice func(pair string, price float64)) *PriceStream {
	return &PriceStream{
		baseURL: baseURL,
		pairs:   pairs,
		onPrice: onPrice,
		prices:  make(map[string]float64),
	}
}

// Price returns the last streamed price for a pair.
func (ps *PriceStream) Price(pair string) (float64, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	price, ok := ps.prices[pair]
	return price, ok
}

// Run blocks reading the stream until ctx is canceled, reconnecting on drops.
func (ps *PriceStream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := ps.streamOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.S().Warnw("price stream disconnected", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (ps *PriceStream) streamOnce(ctx context.Context) error {
	streams := make([]string, 0, len(ps.pairs))
	for _, pair := range ps.pairs {
		streams = append(streams, strings.ToLower(pair)+"@miniTicker")
	}
	wsURL := fmt.Sprintf("%s/stream?streams=%s", ps.baseURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	logger.S().Infow("price stream connected", "pairs", ps.pairs)

	for {
		var msg struct {
			Stream string `json:"stream"`
			Data   struct {
				Symbol string `json:"s"`
				Close  string `json:"c"`
			} `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Data.Symbol == "" {
			continue
		}
		price, err := strconv.ParseFloat(msg.Data.Close, 64)
		if err != nil || price <= 0 {
			continue
		}
		ps.mu.Lock()
		ps.prices[msg.Data.Symbol] = price
		ps.mu.Unlock()
		if ps.onPrice != nil {
			ps.onPrice(msg.Data.Symbol, price)
		}
	}
}
