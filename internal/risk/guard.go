package risk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"cdczone-bot-go/internal/logger"
	"cdczone-bot-go/internal/metrics"
	"cdczone-bot-go/internal/models"
)

// Entry rejections that are policy decisions rather than failures.
var (
	ErrPerTradeCapExceeded = errors.New("proposed notional exceeds per-trade cap")
	ErrExposureCapExceeded = errors.New("proposed notional exceeds total exposure cap")
)

// Breaker trip reasons persisted in CircuitBreakerState.Reason.
const (
	ReasonDailyLoss = "DAILY_LOSS_LIMIT"
	ReasonDrawdown  = "MAX_DRAWDOWN"
)

// BreakerStore persists the process-wide circuit breaker state.
type BreakerStore interface {
	GetCircuitBreaker() (*models.CircuitBreakerState, error)
	PutCircuitBreaker(state *models.CircuitBreakerState) error
}

// Guard enforces the account-level risk limits: per-trade cap, total exposure
// cap, daily-loss breaker, and drawdown breaker. It is the only writer of
// CircuitBreakerState. All methods are safe for concurrent use by per-pair
// cycles.
type Guard struct {
	mu       sync.Mutex
	settings models.RiskSettings
	store    BreakerStore
	loc      *time.Location

	breaker     models.CircuitBreakerState
	startEquity float64
	peakEquity  float64
	dailyPnL    float64
	exposures   map[string]float64

	// Set when RecordExit trips the breaker between scheduled checks;
	// consumed by the next CheckBreakers so its caller still flattens and
	// alerts exactly once.
	unreportedTrip bool
}

// NewGuard loads the persisted breaker state and seeds the equity baselines.
func NewGuard(settings models.RiskSettings, store BreakerStore, loc *time.Location, equity float64) (*Guard, error) {
	g := &Guard{
		settings:    settings,
		store:       store,
		loc:         loc,
		startEquity: equity,
		peakEquity:  equity,
		exposures:   make(map[string]float64),
	}
	state, err := store.GetCircuitBreaker()
	if err != nil {
		return nil, fmt.Errorf("load circuit breaker state: %w", err)
	}
	if state != nil {
		g.breaker = *state
	}
	if g.breaker.IsActive {
		metrics.CircuitBreakerActive.Set(1)
	}
	return g, nil
}

// Active reports whether the circuit breaker is tripped.
func (g *Guard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.breaker.IsActive
}

// State returns a copy of the breaker state.
func (g *Guard) State() models.CircuitBreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.breaker
}

// AllowsEntry decides whether a new entry of the proposed notional may be
// placed. Rejections come back as sentinel errors so cycles can log the
// specific gate that blocked them.
func (g *Guard) AllowsEntry(pair string, notional, equity float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.breaker.IsActive {
		return models.ErrCircuitBreakerActive
	}
	if notional > equity*g.settings.PerTradeCapPct {
		return ErrPerTradeCapExceeded
	}
	if g.settings.TotalExposureCapPct > 0 {
		if g.totalExposureLocked()+notional > equity*g.settings.TotalExposureCapPct {
			return ErrExposureCapExceeded
		}
	}
	return nil
}

// PositionSize converts the pair budget into an order quantity, clipped to
// the per-trade cap and the remaining exposure headroom.
func (g *Guard) PositionSize(budgetPct, equity, price float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	capPct := g.settings.PerTradeCapPct
	if budgetPct < capPct {
		capPct = budgetPct
	}
	notional := equity * capPct
	if g.settings.TotalExposureCapPct > 0 {
		headroom := equity*g.settings.TotalExposureCapPct - g.totalExposureLocked()
		if headroom < 0 {
			headroom = 0
		}
		if notional > headroom {
			notional = headroom
		}
	}
	if price <= 0 {
		return 0
	}
	return notional / price
}

// RecordEntry books the filled notional into the exposure ledger.
func (g *Guard) RecordEntry(pair string, notional float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exposures[pair] = notional
}

// RecordExit releases the pair's exposure and accumulates realized PnL into
// the daily counter. A loss that pushes the day over the limit trips the
// breaker here, not on the next scheduled check, so pairs evaluated later in
// the same tick are already blocked.
func (g *Guard) RecordExit(pair string, pnl float64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.exposures, pair)
	g.dailyPnL += pnl
	metrics.DailyPnL.Set(g.dailyPnL)

	if g.breaker.IsActive || g.dailyPnL >= 0 || g.startEquity <= 0 {
		return
	}
	dailyLossPct := -g.dailyPnL / g.startEquity
	if dailyLossPct < g.settings.DailyLossLimitPct {
		return
	}
	g.breaker.DailyLossPct = dailyLossPct
	g.tripLocked(ReasonDailyLoss, now)
	g.unreportedTrip = true
	if err := g.persistLocked(); err != nil {
		logger.S().Errorw("persist circuit breaker state", "error", err)
	}
}

// TotalExposure returns the aggregate open notional across pairs.
func (g *Guard) TotalExposure() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalExposureLocked()
}

func (g *Guard) totalExposureLocked() float64 {
	total := 0.0
	for _, n := range g.exposures {
		total += n
	}
	return total
}

// CheckBreakers updates the loss and drawdown counters against current
// equity and trips the breaker when a limit is breached. Returns true on the
// transition from inactive to active; the caller must then force-flatten all
// open positions.
func (g *Guard) CheckBreakers(equity float64, now time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if equity > g.peakEquity {
		g.peakEquity = equity
	}

	dailyLossPct := 0.0
	if g.dailyPnL < 0 && g.startEquity > 0 {
		dailyLossPct = -g.dailyPnL / g.startEquity
	}
	drawdownPct := 0.0
	if g.peakEquity > 0 {
		drawdownPct = (g.peakEquity - equity) / g.peakEquity
	}
	g.breaker.DailyLossPct = dailyLossPct
	g.breaker.TotalDrawdownPct = drawdownPct

	if g.breaker.IsActive {
		tripped := g.unreportedTrip
		g.unreportedTrip = false
		return tripped, g.persistLocked()
	}

	var reason string
	switch {
	case dailyLossPct >= g.settings.DailyLossLimitPct:
		reason = ReasonDailyLoss
	case drawdownPct >= g.settings.MaxDrawdownPct:
		reason = ReasonDrawdown
	default:
		return false, g.persistLocked()
	}

	g.tripLocked(reason, now)
	return true, g.persistLocked()
}

func (g *Guard) tripLocked(reason string, now time.Time) {
	g.breaker.IsActive = true
	g.breaker.Reason = reason
	g.breaker.ActivatedAt = now
	metrics.CircuitBreakerActive.Set(1)
	logger.S().Warnw("circuit breaker tripped",
		"reason", reason,
		"daily_loss_pct", g.breaker.DailyLossPct,
		"drawdown_pct", g.breaker.TotalDrawdownPct,
	)
}

// ResetDaily clears the daily-loss counter when the day boundary in the
// configured timezone has passed. It never touches the breaker: deactivation
// is a separate operator action.
func (g *Guard) ResetDaily(equity float64, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	date := now.In(g.loc).Format("2006-01-02")
	if date == g.breaker.LastResetDate {
		return nil
	}
	g.dailyPnL = 0
	g.startEquity = equity
	g.breaker.LastResetDate = date
	g.breaker.DailyLossPct = 0
	metrics.DailyPnL.Set(0)
	logger.S().Infow("daily risk counters reset", "date", date)
	return g.persistLocked()
}

// Reset deactivates the breaker on explicit operator request and rebases the
// drawdown peak to current equity so the breaker does not retrip instantly.
func (g *Guard) Reset(equity float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.breaker.IsActive = false
	g.breaker.Reason = ""
	g.breaker.ActivatedAt = time.Time{}
	g.peakEquity = equity
	metrics.CircuitBreakerActive.Set(0)
	logger.S().Warnw("circuit breaker reset by operator", "equity", equity)
	return g.persistLocked()
}

func (g *Guard) persistLocked() error {
	state := g.breaker
	return g.store.PutCircuitBreaker(&state)
}
