package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cdczone-bot-go/internal/candles"
	"cdczone-bot-go/internal/exchange"
	"cdczone-bot-go/internal/indicator"
	"cdczone-bot-go/internal/logger"
	"cdczone-bot-go/internal/metrics"
	"cdczone-bot-go/internal/models"
	"cdczone-bot-go/internal/persistence"
	"cdczone-bot-go/internal/risk"
	"cdczone-bot-go/internal/rules"
)

// Candle windows fetched per cycle. The lower timeframe must cover the
// widest lookback of any entry rule (swing scan plus divergence warmup).
const (
	ltfFetchLimit = 200
	htfFetchLimit = 120
)

// OrderJournal is the slice of the order store the engine writes through.
type OrderJournal interface {
	AppendOrder(order *models.OrderRecord) error
	UpdateOrder(order *models.OrderRecord) error
	PendingOrders(pair string) ([]models.OrderRecord, error)
	AppendEvaluation(eval *models.RuleEvaluation) error
}

// Engine owns every position transition. One instance serves all pairs;
// cycles for the same pair are serialized by a per-pair mutex, cycles for
// different pairs run concurrently. Position state only advances after the
// exchange confirms a fill and the new state is persisted; an order whose
// position commit failed stays PENDING and is reconciled on the next cycle.
type Engine struct {
	cfg        models.Config
	pairs      map[string]models.PairConfig
	repo       persistence.Repository
	orders     OrderJournal
	guard      *risk.Guard
	client     exchange.ExecutionClient
	feed       candles.Feed
	retry      exchange.RetryPolicy
	quoteAsset string

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New wires the engine. quoteAsset is the balance asset equity is measured in.
func New(cfg models.Config, repo persistence.Repository, orders OrderJournal, guard *risk.Guard, client exchange.ExecutionClient, feed candles.Feed, quoteAsset string) *Engine {
	e := &Engine{
		cfg:        cfg,
		pairs:      make(map[string]models.PairConfig, len(cfg.Pairs)),
		repo:       repo,
		orders:     orders,
		guard:      guard,
		client:     client,
		feed:       feed,
		quoteAsset: quoteAsset,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, pc := range cfg.Pairs {
		e.pairs[pc.Pair] = pc
	}
	e.retry = exchange.RetryPolicy{
		Attempts:     cfg.RetryAttempts,
		InitialDelay: time.Duration(cfg.RetryInitialDelayMs) * time.Millisecond,
	}
	return e
}

// SetClock overrides the engine clock. Backtests drive it from the replay
// cursor.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) pairLock(pair string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[pair]
	if !ok {
		l = &sync.Mutex{}
		e.locks[pair] = l
	}
	return l
}

// Equity returns the free quote balance plus the open notional.
func (e *Engine) Equity(ctx context.Context) (float64, error) {
	free, err := e.client.GetBalance(ctx, e.quoteAsset)
	if err != nil {
		return 0, err
	}
	equity := free + e.guard.TotalExposure()
	metrics.Equity.Set(equity)
	return equity, nil
}

// RunRiskChecks rolls the daily counters over the day boundary and trips the
// circuit breaker when a loss limit is breached. On the trip transition every
// open position is force-flattened. Called once per tick, before pair cycles;
// returns whether the breaker tripped on this check.
func (e *Engine) RunRiskChecks(ctx context.Context) (bool, error) {
	equity, err := e.Equity(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch equity: %w", err)
	}
	now := e.now()
	if err := e.guard.ResetDaily(equity, now); err != nil {
		return false, err
	}
	tripped, err := e.guard.CheckBreakers(equity, now)
	if err != nil {
		return false, err
	}
	// Flatten whenever the breaker is active, not only on the trip
	// transition, so exits that failed or were deferred earlier are retried.
	if e.guard.Active() {
		e.ForceFlattenAll(ctx)
	}
	return tripped, nil
}

// CheckProtectiveStops applies a live price tick to an open position: the
// trailing stop ratchets and the structural and trailing stops fire without
// waiting for the next evaluation cycle. Trend exits stay on the cycle path.
func (e *Engine) CheckProtectiveStops(ctx context.Context, pair string, price float64) error {
	cfg, ok := e.pairs[pair]
	if !ok {
		return models.ErrUnconfiguredPair
	}
	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()

	pos, err := e.loadPosition(pair)
	if err != nil {
		return err
	}
	if !pos.IsLong() {
		return nil
	}
	if updateTrailing(pos, price, cfg.RuleParams.TrailingOffsetPct) {
		pos.UpdatedAt = e.now()
		if err := e.repo.PutPosition(pos); err != nil {
			return fmt.Errorf("persist trailing update: %w", err)
		}
	}
	reason := ""
	switch {
	case pos.SLPrice > 0 && price <= pos.SLPrice:
		reason = models.ExitRuleStructuralSL
	case pos.TrailingStopActivated && pos.TrailingStopPrice > 0 && price <= pos.TrailingStopPrice:
		reason = models.ExitRuleTrailingStop
	}
	if reason == "" {
		return nil
	}
	// One outstanding order per pair: a stop firing while an earlier order
	// awaits reconciliation defers to the next cycle instead of re-placing.
	outstanding, err := e.hasPendingOrder(pair)
	if err != nil {
		return err
	}
	if outstanding {
		logger.S().Debugw("stop exit deferred, order awaiting reconciliation",
			"pair", pair, "reason", reason)
		return nil
	}
	return e.placeExit(ctx, cfg, pos, reason, pos.LastSignalBar)
}

// ForceFlattenAll market-sells every open position. Used on the circuit
// breaker trip transition; individual failures are logged and retried on the
// next trip check, never silently dropped.
func (e *Engine) ForceFlattenAll(ctx context.Context) {
	for pair := range e.pairs {
		lock := e.pairLock(pair)
		lock.Lock()
		pos, err := e.loadPosition(pair)
		if err != nil {
			logger.S().Errorw("force flatten: load position failed", "pair", pair, "error", err)
			lock.Unlock()
			continue
		}
		if pos.IsLong() {
			outstanding, err := e.hasPendingOrder(pair)
			switch {
			case err != nil:
				logger.S().Errorw("force flatten: query pending orders failed", "pair", pair, "error", err)
			case outstanding:
				logger.S().Infow("force flatten deferred, order awaiting reconciliation", "pair", pair)
			default:
				if err := e.placeExit(ctx, e.pairs[pair], pos, models.ReasonForcedFlatten, pos.LastSignalBar); err != nil {
					logger.S().Errorw("force flatten failed", "pair", pair, "error", err)
				}
			}
		}
		lock.Unlock()
	}
}

// hasPendingOrder reports whether an order for the pair is still awaiting
// reconciliation.
func (e *Engine) hasPendingOrder(pair string) (bool, error) {
	pending, err := e.orders.PendingOrders(pair)
	if err != nil {
		return false, fmt.Errorf("query pending orders: %w", err)
	}
	return len(pending) > 0, nil
}

// RunCycle executes one evaluation cycle for a pair: reconcile pending
// orders, fetch candles, evaluate the rule set for the current position
// state, and act on the verdict. Returns ErrPendingOrderOutstanding when an
// unresolved order blocks new signals.
func (e *Engine) RunCycle(ctx context.Context, pair string) error {
	cfg, ok := e.pairs[pair]
	if !ok {
		return models.ErrUnconfiguredPair
	}

	// Breaker state is read before the pair lock; the guard has its own lock
	// and is never acquired while holding a pair lock.
	breakerActive := e.guard.Active()

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()

	outstanding, err := e.reconcilePending(ctx, cfg)
	if err != nil {
		return err
	}
	if outstanding {
		return models.ErrPendingOrderOutstanding
	}

	ltfRaw, err := e.feed.Candles(ctx, pair, cfg.Timeframe, ltfFetchLimit)
	if err != nil {
		return fmt.Errorf("fetch %s candles: %w", cfg.Timeframe, err)
	}
	htfTimeframe := candles.HigherTimeframe(cfg.Timeframe)
	htfRaw, err := e.feed.Candles(ctx, pair, htfTimeframe, htfFetchLimit)
	if err != nil {
		return fmt.Errorf("fetch %s candles: %w", htfTimeframe, err)
	}
	ltf, current := candles.SplitClosed(ltfRaw)
	htf, _ := candles.SplitClosed(htfRaw)
	if len(ltf) == 0 {
		return models.ErrInsufficientData
	}

	price, err := e.client.GetPrice(ctx, pair)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}

	pos, err := e.loadPosition(pair)
	if err != nil {
		return err
	}

	if pos.IsLong() {
		return e.cycleLong(ctx, cfg, pos, ltf, current, price)
	}
	if breakerActive {
		logger.S().Debugw("entry evaluation skipped, circuit breaker active", "pair", pair)
		return nil
	}
	return e.cycleFlat(ctx, cfg, pos, ltf, htf, price)
}

// loadPosition reads the persisted record, treating a missing one as fresh
// FLAT. Reading before every decision keeps cycles safe after a crash between
// a fill and its commit.
func (e *Engine) loadPosition(pair string) (*models.PositionState, error) {
	pos, err := e.repo.GetPosition(pair)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	if pos == nil {
		pos = &models.PositionState{Pair: pair, Status: models.StatusFlat}
	}
	return pos, nil
}

func (e *Engine) cycleFlat(ctx context.Context, cfg models.PairConfig, pos *models.PositionState, ltf, htf []models.Candle, price float64) error {
	eval, plan, err := rules.EvaluateEntry(cfg, ltf, htf, e.now())
	if err != nil {
		return err
	}
	if err := e.orders.AppendEvaluation(eval); err != nil {
		logger.S().Errorw("append evaluation failed", "pair", cfg.Pair, "error", err)
	}
	if !eval.EntryPass {
		return nil
	}
	// A bar produces at most one transition.
	if eval.BarOpenTime.Equal(pos.LastSignalBar) {
		logger.S().Debugw("entry signal already consumed for bar",
			"pair", cfg.Pair, "bar", eval.BarOpenTime)
		return nil
	}

	equity, err := e.Equity(ctx)
	if err != nil {
		return err
	}
	qty := e.guard.PositionSize(cfg.BudgetPct, equity, price)
	if qty <= 0 {
		logger.S().Warnw("entry skipped, zero position size",
			"pair", cfg.Pair, "equity", equity, "price", price)
		return nil
	}
	if err := e.guard.AllowsEntry(cfg.Pair, qty*price, equity); err != nil {
		logger.S().Warnw("entry blocked by risk guard", "pair", cfg.Pair, "error", err)
		return nil
	}

	wLow := plan.WLow
	if wLow <= 0 {
		wLow = indicator.NearestSwingLow(ltf, cfg.RuleParams.WWindowBars)
	}
	return e.placeEntry(ctx, cfg, qty, wLow, plan, eval.BarOpenTime)
}

func (e *Engine) cycleLong(ctx context.Context, cfg models.PairConfig, pos *models.PositionState, ltf []models.Candle, current *models.Candle, price float64) error {
	high := price
	if current != nil && current.High > high {
		high = current.High
	}
	if updateTrailing(pos, high, cfg.RuleParams.TrailingOffsetPct) {
		pos.UpdatedAt = e.now()
		if err := e.repo.PutPosition(pos); err != nil {
			return fmt.Errorf("persist trailing update: %w", err)
		}
	}

	reason, outcomes := rules.EvaluateExit(cfg, pos, ltf, price)
	eval := &models.RuleEvaluation{
		Pair:        cfg.Pair,
		Timestamp:   e.now(),
		BarOpenTime: ltf[len(ltf)-1].OpenTime,
		ExitRules:   outcomes,
		AnyExitPass: reason != "",
		ExitReason:  reason,
	}
	if err := e.orders.AppendEvaluation(eval); err != nil {
		logger.S().Errorw("append evaluation failed", "pair", cfg.Pair, "error", err)
	}
	if reason == "" {
		return nil
	}
	return e.placeExit(ctx, cfg, pos, reason, eval.BarOpenTime)
}

// updateTrailing arms the trailing stop once the high reaches the activation
// price and ratchets it on every new high. The stop never moves down.
func updateTrailing(pos *models.PositionState, currentHigh, offsetPct float64) bool {
	changed := false
	if currentHigh > pos.PrevHigh {
		pos.PrevHigh = currentHigh
		changed = true
	}
	if !pos.TrailingStopActivated {
		if pos.ActivationPrice > 0 && currentHigh >= pos.ActivationPrice {
			pos.TrailingStopActivated = true
			pos.TrailingStopPrice = pos.PrevHigh * (1 - offsetPct)
			return true
		}
		return changed
	}
	candidate := pos.PrevHigh * (1 - offsetPct)
	if candidate > pos.TrailingStopPrice {
		pos.TrailingStopPrice = candidate
		changed = true
	}
	return changed
}

func (e *Engine) placeEntry(ctx context.Context, cfg models.PairConfig, qty float64, wLow float64, plan rules.EntryPlan, signalBar time.Time) error {
	order := &models.OrderRecord{
		ClientOrderID: exchange.NewClientOrderID(),
		Pair:          cfg.Pair,
		OrderType:     models.OrderEntry,
		Side:          models.Buy,
		RequestedQty:  qty,
		Status:        models.OrderPending,
		Reason:        "entry_signal",
		SignalBar:     signalBar,
		RequestedAt:   e.now(),
	}
	if err := e.orders.AppendOrder(order); err != nil {
		return fmt.Errorf("journal entry order: %w", err)
	}

	var fill *models.Fill
	err := e.retry.Do(ctx, "place_entry_order", func() error {
		var placeErr error
		fill, placeErr = e.client.PlaceMarketOrder(ctx, cfg.Pair, models.Buy, qty, order.ClientOrderID)
		return placeErr
	})
	if err != nil {
		order.Status = models.OrderFailed
		if updErr := e.orders.UpdateOrder(order); updErr != nil {
			logger.S().Errorw("mark order failed", "pair", cfg.Pair, "error", updErr)
		}
		metrics.OrdersTotal.WithLabelValues(cfg.Pair, string(models.OrderEntry), string(models.OrderFailed)).Inc()
		return err
	}

	// The exchange id goes to the journal before any commit so a crash between
	// fill and commit leaves a reconcilable PENDING row, not an orphan.
	order.ExchangeOrderID = fill.ExchangeOrderID
	if err := e.orders.UpdateOrder(order); err != nil {
		logger.S().Errorw("record exchange order id", "pair", cfg.Pair, "error", err)
	}
	if fill.Status == models.OrderPending {
		return nil
	}

	activation := indicator.TrailingActivation(plan.Pattern, plan.WShape, fill.AvgPrice, cfg.RuleParams.ActivationThresholdPct)
	return e.commitEntry(cfg, order, fill, wLow, activation, signalBar)
}

// commitEntry persists the LONG state from a confirmed entry fill, then
// finalizes the order row. Persistence failure leaves the order PENDING so
// the next cycle rebuilds the position from the recorded fill.
func (e *Engine) commitEntry(cfg models.PairConfig, order *models.OrderRecord, fill *models.Fill, wLow, activation float64, signalBar time.Time) error {
	now := e.now()
	pos := &models.PositionState{
		Pair:            cfg.Pair,
		Status:          models.StatusLong,
		EntryPrice:      fill.AvgPrice,
		EntryTime:       now,
		WLow:            wLow,
		SLPrice:         indicator.StructuralSL(wLow, cfg.RuleParams.StructuralSLBufferPct),
		ActivationPrice: activation,
		PrevHigh:        fill.AvgPrice,
		Qty:             fill.FilledQty,
		LastSignalBar:   signalBar,
		UpdatedAt:       now,
	}
	if err := e.repo.PutPosition(pos); err != nil {
		return fmt.Errorf("commit entry position: %w", err)
	}
	e.guard.RecordEntry(cfg.Pair, fill.AvgPrice*fill.FilledQty)

	order.FilledQty = fill.FilledQty
	order.AvgPrice = fill.AvgPrice
	order.Status = fill.Status
	order.FilledAt = now
	if err := e.orders.UpdateOrder(order); err != nil {
		logger.S().Errorw("finalize entry order", "pair", cfg.Pair, "error", err)
	}
	metrics.OrdersTotal.WithLabelValues(cfg.Pair, string(models.OrderEntry), string(fill.Status)).Inc()
	metrics.OpenPositions.WithLabelValues(cfg.Pair).Set(1)
	logger.S().Infow("entered position",
		"pair", cfg.Pair,
		"qty", fill.FilledQty,
		"entry_price", fill.AvgPrice,
		"sl_price", pos.SLPrice,
		"activation_price", pos.ActivationPrice,
	)
	return nil
}

func (e *Engine) placeExit(ctx context.Context, cfg models.PairConfig, pos *models.PositionState, reason string, signalBar time.Time) error {
	order := &models.OrderRecord{
		ClientOrderID: exchange.NewClientOrderID(),
		Pair:          cfg.Pair,
		OrderType:     models.OrderExit,
		Side:          models.Sell,
		RequestedQty:  pos.Qty,
		Status:        models.OrderPending,
		Reason:        reason,
		SignalBar:     signalBar,
		RequestedAt:   e.now(),
	}
	if err := e.orders.AppendOrder(order); err != nil {
		return fmt.Errorf("journal exit order: %w", err)
	}

	var fill *models.Fill
	err := e.retry.Do(ctx, "place_exit_order", func() error {
		var placeErr error
		fill, placeErr = e.client.PlaceMarketOrder(ctx, cfg.Pair, models.Sell, pos.Qty, order.ClientOrderID)
		return placeErr
	})
	if err != nil {
		order.Status = models.OrderFailed
		if updErr := e.orders.UpdateOrder(order); updErr != nil {
			logger.S().Errorw("mark order failed", "pair", cfg.Pair, "error", updErr)
		}
		metrics.OrdersTotal.WithLabelValues(cfg.Pair, string(models.OrderExit), string(models.OrderFailed)).Inc()
		return err
	}

	order.ExchangeOrderID = fill.ExchangeOrderID
	if updErr := e.orders.UpdateOrder(order); updErr != nil {
		logger.S().Errorw("record exchange order id", "pair", cfg.Pair, "error", updErr)
	}
	if fill.Status == models.OrderPending {
		return nil
	}
	return e.commitExit(cfg, pos, order, fill, signalBar)
}

// commitExit applies a confirmed exit fill. A partial fill reduces the
// position and keeps it LONG; a full fill flattens it. The order row is
// finalized only after the position commit, same as entries.
func (e *Engine) commitExit(cfg models.PairConfig, pos *models.PositionState, order *models.OrderRecord, fill *models.Fill, signalBar time.Time) error {
	now := e.now()
	pnl := (fill.AvgPrice - pos.EntryPrice) * fill.FilledQty
	pnlPct := 0.0
	if pos.EntryPrice > 0 {
		pnlPct = fill.AvgPrice/pos.EntryPrice - 1
	}

	remaining := pos.Qty - fill.FilledQty
	if remaining > pos.Qty*1e-9 && fill.Status == models.OrderPartial {
		pos.Qty = remaining
		pos.UpdatedAt = now
		if err := e.repo.PutPosition(pos); err != nil {
			return fmt.Errorf("commit partial exit: %w", err)
		}
		e.guard.RecordExit(cfg.Pair, pnl, now)
		e.guard.RecordEntry(cfg.Pair, remaining*pos.EntryPrice)
	} else {
		pos.ClearToFlat(now)
		pos.LastSignalBar = signalBar
		if err := e.repo.PutPosition(pos); err != nil {
			return fmt.Errorf("commit exit position: %w", err)
		}
		e.guard.RecordExit(cfg.Pair, pnl, now)
		metrics.OpenPositions.WithLabelValues(cfg.Pair).Set(0)
	}

	order.FilledQty = fill.FilledQty
	order.AvgPrice = fill.AvgPrice
	order.Status = fill.Status
	order.PnL = pnl
	order.PnLPct = pnlPct
	order.FilledAt = now
	if err := e.orders.UpdateOrder(order); err != nil {
		logger.S().Errorw("finalize exit order", "pair", cfg.Pair, "error", err)
	}
	metrics.OrdersTotal.WithLabelValues(cfg.Pair, string(models.OrderExit), string(fill.Status)).Inc()
	logger.S().Infow("exited position",
		"pair", cfg.Pair,
		"reason", order.Reason,
		"qty", fill.FilledQty,
		"exit_price", fill.AvgPrice,
		"pnl", pnl,
		"pnl_pct", pnlPct,
	)
	return nil
}

// reconcilePending resolves orders left unconfirmed by an earlier cycle or a
// crash. Returns true when an order is still unresolved; the cycle then skips
// signal processing for the pair.
func (e *Engine) reconcilePending(ctx context.Context, cfg models.PairConfig) (bool, error) {
	pending, err := e.orders.PendingOrders(cfg.Pair)
	if err != nil {
		return false, fmt.Errorf("query pending orders: %w", err)
	}

	outstanding := false
	for i := range pending {
		o := &pending[i]
		if o.ExchangeOrderID == 0 {
			// Journaled but never accepted by the exchange.
			o.Status = models.OrderFailed
			if err := e.orders.UpdateOrder(o); err != nil {
				return false, fmt.Errorf("expire orphan order %s: %w", o.ClientOrderID, err)
			}
			continue
		}
		fill, err := e.client.GetOrderStatus(ctx, cfg.Pair, o.ExchangeOrderID)
		if err != nil {
			logger.S().Warnw("order status query failed",
				"pair", cfg.Pair, "client_order_id", o.ClientOrderID, "error", err)
			outstanding = true
			continue
		}
		switch fill.Status {
		case models.OrderPending:
			outstanding = true
		case models.OrderFilled, models.OrderPartial:
			if err := e.applyReconciledFill(ctx, cfg, o, fill); err != nil {
				return false, err
			}
		default:
			o.Status = fill.Status
			if err := e.orders.UpdateOrder(o); err != nil {
				return false, fmt.Errorf("finalize order %s: %w", o.ClientOrderID, err)
			}
			metrics.OrdersTotal.WithLabelValues(cfg.Pair, string(o.OrderType), string(fill.Status)).Inc()
		}
	}
	return outstanding, nil
}

// applyReconciledFill commits a fill discovered during reconciliation. The
// entry's stop anchors are recomputed from the current closed candles since
// the original entry plan did not survive the restart.
func (e *Engine) applyReconciledFill(ctx context.Context, cfg models.PairConfig, order *models.OrderRecord, fill *models.Fill) error {
	if order.OrderType == models.OrderExit {
		pos, err := e.loadPosition(cfg.Pair)
		if err != nil {
			return err
		}
		if pos.IsFlat() {
			// Already committed before the restart.
			order.Status = fill.Status
			order.FilledQty = fill.FilledQty
			order.AvgPrice = fill.AvgPrice
			order.FilledAt = e.now()
			return e.orders.UpdateOrder(order)
		}
		return e.commitExit(cfg, pos, order, fill, order.SignalBar)
	}

	pos, err := e.loadPosition(cfg.Pair)
	if err != nil {
		return err
	}
	if pos.IsLong() {
		order.Status = fill.Status
		order.FilledQty = fill.FilledQty
		order.AvgPrice = fill.AvgPrice
		order.FilledAt = e.now()
		return e.orders.UpdateOrder(order)
	}

	ltfRaw, err := e.feed.Candles(ctx, cfg.Pair, cfg.Timeframe, ltfFetchLimit)
	if err != nil {
		return fmt.Errorf("fetch candles for reconciliation: %w", err)
	}
	ltf, _ := candles.SplitClosed(ltfRaw)

	pattern, w := indicator.ClassifyPattern(ltf, cfg.RuleParams)
	wLow := 0.0
	if pattern == models.PatternW {
		wLow = w.Low1
		if w.Low2 < w.Low1 {
			wLow = w.Low2
		}
	}
	if wLow <= 0 {
		wLow = indicator.NearestSwingLow(ltf, cfg.RuleParams.WWindowBars)
	}
	activation := indicator.TrailingActivation(pattern, w, fill.AvgPrice, cfg.RuleParams.ActivationThresholdPct)
	return e.commitEntry(cfg, order, fill, wLow, activation, order.SignalBar)
}
