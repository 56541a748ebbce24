package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cdczone-bot-go/internal/candles"
	"cdczone-bot-go/internal/engine"
	"cdczone-bot-go/internal/exchange"
	"cdczone-bot-go/internal/logger"
	"cdczone-bot-go/internal/models"
	"cdczone-bot-go/internal/persistence"
	"cdczone-bot-go/internal/reporter"
	"cdczone-bot-go/internal/risk"
)

const quoteAsset = "USDT"

// Runner replays historical candles through the live engine: same rules, same
// risk guard, same order journal, with a simulated exchange behind them.
type Runner struct {
	cfg            models.Config
	pair           models.PairConfig
	feed           *candles.HistoryFeed
	initialBalance float64
}

// NewRunner prepares a backtest for the first configured pair from CSV kline
// exports of the lower and higher timeframes.
func NewRunner(cfg models.Config, ltfPath, htfPath string, initialBalance float64) (*Runner, error) {
	if len(cfg.Pairs) == 0 {
		return nil, models.ErrUnconfiguredPair
	}
	pc := cfg.Pairs[0]

	feed := candles.NewHistoryFeed()
	ltf, err := candles.LoadCSV(ltfPath, pc.Pair, pc.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("load %s data: %w", pc.Timeframe, err)
	}
	if len(ltf) == 0 {
		return nil, models.ErrInsufficientData
	}
	feed.Load(pc.Pair, pc.Timeframe, ltf)

	htfTimeframe := candles.HigherTimeframe(pc.Timeframe)
	htf, err := candles.LoadCSV(htfPath, pc.Pair, htfTimeframe)
	if err != nil {
		return nil, fmt.Errorf("load %s data: %w", htfTimeframe, err)
	}
	feed.Load(pc.Pair, htfTimeframe, htf)
	feed.SetPrimary(pc.Pair, pc.Timeframe)

	return &Runner{
		cfg:            cfg,
		pair:           pc,
		feed:           feed,
		initialBalance: initialBalance,
	}, nil
}

// NewRunnerFromSeries prepares a backtest from candles already in memory,
// bypassing the CSV loading path.
func NewRunnerFromSeries(cfg models.Config, ltf, htf []models.Candle, initialBalance float64) (*Runner, error) {
	if len(cfg.Pairs) == 0 {
		return nil, models.ErrUnconfiguredPair
	}
	if len(ltf) == 0 {
		return nil, models.ErrInsufficientData
	}
	pc := cfg.Pairs[0]
	feed := candles.NewHistoryFeed()
	feed.Load(pc.Pair, pc.Timeframe, ltf)
	feed.Load(pc.Pair, candles.HigherTimeframe(pc.Timeframe), htf)
	feed.SetPrimary(pc.Pair, pc.Timeframe)
	return &Runner{cfg: cfg, pair: pc, feed: feed, initialBalance: initialBalance}, nil
}

// Run replays the series bar by bar. Each bar the engine sees the closed
// window, enters at the forming bar's open, then the bar's high ratchets the
// trailing stop and the bar's low tests the protective stops (stop fills are
// taken pessimistically at the low). Returns the performance summary.
func (r *Runner) Run(ctx context.Context) (*reporter.Summary, error) {
	pair := r.pair.Pair
	timeframe := r.pair.Timeframe

	repo := persistence.NewMemoryRepository()
	store, err := persistence.NewOrderStore(":memory:")
	if err != nil {
		return nil, err
	}
	defer store.Close()

	paper := exchange.NewPaperClient(quoteAsset, r.initialBalance)
	guard, err := risk.NewGuard(r.cfg.Risk, repo, time.UTC, r.initialBalance)
	if err != nil {
		return nil, err
	}
	eng := engine.New(r.cfg, repo, store, guard, paper, r.feed, quoteAsset)
	eng.SetClock(func() time.Time { return r.feed.Now(pair, timeframe) })

	var equityCurve []float64
	start := r.feed.Now(pair, timeframe)

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		bar, err := r.currentBar()
		if err != nil {
			return nil, err
		}

		paper.SetPrice(pair, bar.Open)
		if err := eng.RunCycle(ctx, pair); err != nil && !recoverable(err) {
			return nil, fmt.Errorf("cycle at %s: %w", bar.OpenTime, err)
		}

		paper.SetPrice(pair, bar.High)
		if err := eng.CheckProtectiveStops(ctx, pair, bar.High); err != nil {
			return nil, err
		}
		paper.SetPrice(pair, bar.Low)
		if err := eng.CheckProtectiveStops(ctx, pair, bar.Low); err != nil {
			return nil, err
		}
		paper.SetPrice(pair, bar.Close)

		equity, err := r.markEquity(ctx, paper, repo, bar.Close)
		if err != nil {
			return nil, err
		}
		equityCurve = append(equityCurve, equity)

		if !r.feed.Advance(pair, timeframe) {
			break
		}
	}

	end := r.feed.Now(pair, timeframe)
	finalEquity := r.initialBalance
	if len(equityCurve) > 0 {
		finalEquity = equityCurve[len(equityCurve)-1]
	}
	orders, err := store.OrdersForPair(pair, 100000)
	if err != nil {
		return nil, err
	}
	summary := reporter.Build(pair, orders, r.initialBalance, finalEquity, equityCurve, start, end)
	logger.S().Infow("backtest finished",
		"pair", pair,
		"trades", summary.TotalTrades,
		"profit", summary.TotalProfit,
		"max_drawdown_pct", summary.MaxDrawdown,
	)
	return summary, nil
}

// currentBar is the forming bar at the replay cursor.
func (r *Runner) currentBar() (models.Candle, error) {
	bars, err := r.feed.Candles(context.Background(), r.pair.Pair, r.pair.Timeframe, 1)
	if err != nil {
		return models.Candle{}, err
	}
	if len(bars) == 0 {
		return models.Candle{}, models.ErrInsufficientData
	}
	return bars[len(bars)-1], nil
}

func (r *Runner) markEquity(ctx context.Context, paper *exchange.PaperClient, repo persistence.Repository, closePrice float64) (float64, error) {
	cash, err := paper.GetBalance(ctx, quoteAsset)
	if err != nil {
		return 0, err
	}
	pos, err := repo.GetPosition(r.pair.Pair)
	if err != nil {
		return 0, err
	}
	equity := cash
	if pos != nil && pos.IsLong() {
		equity += pos.Qty * closePrice
	}
	return equity, nil
}

// recoverable errors skip a bar instead of aborting the replay: the warmup
// window and unreconciled simulated orders are normal mid-run states.
func recoverable(err error) bool {
	return errors.Is(err, models.ErrInsufficientData) ||
		errors.Is(err, models.ErrPendingOrderOutstanding)
}
