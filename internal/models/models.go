package models

import (
	"fmt"
	"time"
)

// CDCColor is the three-state trend classification derived from the
// fast/slow EMA relationship and the close's position relative to them.
type CDCColor string

const (
	ColorGreen  CDCColor = "GREEN"
	ColorRed    CDCColor = "RED"
	ColorOrange CDCColor = "ORANGE"
	ColorNone   CDCColor = "NONE"
)

// Pattern classifies the recent price structure.
type Pattern string

const (
	PatternW    Pattern = "W"
	PatternV    Pattern = "V"
	PatternNone Pattern = "NONE"
)

// Divergence is the RSI divergence classification.
type Divergence string

const (
	DivergenceNone       Divergence = "NONE"
	DivergenceBull       Divergence = "BULL"
	DivergenceBear       Divergence = "BEAR"
	DivergenceStrongSell Divergence = "STRONG_SELL"
)

// Side is the order direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Candle is a single OHLCV bar. Closed bars are immutable; the most recent
// bar may still be forming and mutates in place until its close time passes.
type Candle struct {
	Pair      string    `json:"pair"`
	Timeframe string    `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Closed    bool      `json:"closed"`
}

// IndicatorSnapshot captures the indicator outputs of one evaluation cycle.
// It is embedded in RuleEvaluation records for audit, never stored on its own.
type IndicatorSnapshot struct {
	CDCColorLTF   CDCColor   `json:"cdc_color_ltf"`
	CDCColorHTF   CDCColor   `json:"cdc_color_htf"`
	LeadingRed    bool       `json:"leading_red"`
	LeadingSignal bool       `json:"leading_signal"`
	Pattern       Pattern    `json:"pattern"`
	WLow          float64    `json:"w_low,omitempty"`
	WMidHigh      float64    `json:"w_mid_high,omitempty"`
	EMAFast       float64    `json:"ema_fast"`
	EMASlow       float64    `json:"ema_slow"`
	RSI           float64    `json:"rsi"`
	RSIDivergence Divergence `json:"rsi_divergence"`
}

// Entry rule names, in evaluation order.
const (
	EntryRuleCDCGreen      = "cdc_green"
	EntryRuleLeadingRed    = "leading_red"
	EntryRuleLeadingSignal = "leading_signal"
	EntryRuleWShape        = "w_shape"
)

// Exit rule names, in priority order.
const (
	ExitRuleEMACross     = "ema_cross_bearish"
	ExitRuleTrailingStop = "trailing_stop"
	ExitRuleOrangeRed    = "orange_red"
	ExitRuleStrongSell   = "strong_sell_divergence"
	ExitRuleStructuralSL = "structural_sl"
)

// ReasonForcedFlatten marks exits issued directly by the risk guard when the
// circuit breaker trips, bypassing rule evaluation.
const ReasonForcedFlatten = "FORCED_FLATTEN"

// RuleEvaluation is the write-once audit record of one evaluation cycle for
// one pair. Every cycle appends one, regardless of pass/fail.
type RuleEvaluation struct {
	Pair        string            `json:"pair"`
	Timestamp   time.Time         `json:"timestamp"`
	BarOpenTime time.Time         `json:"bar_open_time"`
	EntryRules  map[string]bool   `json:"entry_rules"`
	ExitRules   map[string]bool   `json:"exit_rules"`
	EntryPass   bool              `json:"entry_pass"`
	AnyExitPass bool              `json:"any_exit_pass"`
	ExitReason  string            `json:"exit_reason,omitempty"`
	Snapshot    IndicatorSnapshot `json:"snapshot"`
}

// PositionStatus is the state of a pair's position.
type PositionStatus string

const (
	StatusFlat PositionStatus = "FLAT"
	StatusLong PositionStatus = "LONG"
)

// PositionState is the singleton position record for one pair.
// Invariant: FLAT implies all entry/trailing fields are zero; LONG implies
// EntryPrice and Qty are set with Qty > 0. Only the position engine mutates it.
type PositionState struct {
	Pair                  string         `json:"pair"`
	Status                PositionStatus `json:"status"`
	EntryPrice            float64        `json:"entry_price,omitempty"`
	EntryTime             time.Time      `json:"entry_time,omitempty"`
	WLow                  float64        `json:"w_low,omitempty"`
	SLPrice               float64        `json:"sl_price,omitempty"`
	ActivationPrice       float64        `json:"activation_price,omitempty"`
	TrailingStopActivated bool           `json:"trailing_stop_activated"`
	TrailingStopPrice     float64        `json:"trailing_stop_price,omitempty"`
	PrevHigh              float64        `json:"prev_high,omitempty"`
	Qty                   float64        `json:"qty,omitempty"`
	// LastSignalBar is the open time of the closed bar that produced the most
	// recent transition. Re-running the evaluator over the same window must not
	// re-trigger an already recorded transition.
	LastSignalBar time.Time `json:"last_signal_bar,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsFlat reports whether the position is FLAT.
func (p *PositionState) IsFlat() bool { return p.Status == StatusFlat }

// IsLong reports whether the position is LONG.
func (p *PositionState) IsLong() bool { return p.Status == StatusLong }

// ClearToFlat resets the record to a clean FLAT state, preserving the pair
// and the idempotence marker.
func (p *PositionState) ClearToFlat(now time.Time) {
	p.Status = StatusFlat
	p.EntryPrice = 0
	p.EntryTime = time.Time{}
	p.WLow = 0
	p.SLPrice = 0
	p.ActivationPrice = 0
	p.TrailingStopActivated = false
	p.TrailingStopPrice = 0
	p.PrevHigh = 0
	p.Qty = 0
	p.UpdatedAt = now
}

// OrderType distinguishes entry from exit intents.
type OrderType string

const (
	OrderEntry OrderType = "ENTRY"
	OrderExit  OrderType = "EXIT"
)

// OrderStatus is the lifecycle state of an order record.
type OrderStatus string

const (
	OrderPending  OrderStatus = "PENDING"
	OrderFilled   OrderStatus = "FILLED"
	OrderPartial  OrderStatus = "PARTIAL"
	OrderFailed   OrderStatus = "FAILED"
	OrderCanceled OrderStatus = "CANCELED"
)

// OrderRecord is one row of the append-only order history. Created by the
// position engine when it requests execution, finalized when the fill
// confirmation arrives. Never deleted.
type OrderRecord struct {
	ID              int64       `json:"id"`
	ClientOrderID   string      `json:"client_order_id"`
	ExchangeOrderID int64       `json:"exchange_order_id,omitempty"`
	Pair            string      `json:"pair"`
	OrderType       OrderType   `json:"order_type"`
	Side            Side        `json:"side"`
	RequestedQty    float64     `json:"requested_qty"`
	FilledQty       float64     `json:"filled_qty"`
	AvgPrice        float64     `json:"avg_price"`
	Status          OrderStatus `json:"status"`
	Reason          string      `json:"reason"`
	PnL             float64     `json:"pnl,omitempty"`
	PnLPct          float64     `json:"pnl_pct,omitempty"`
	SignalBar       time.Time   `json:"signal_bar"`
	RequestedAt     time.Time   `json:"requested_at"`
	FilledAt        time.Time   `json:"filled_at,omitempty"`
}

// CircuitBreakerState is the process-wide kill switch. Only the risk guard
// writes it; every pair's cycle reads it before evaluating entries.
type CircuitBreakerState struct {
	IsActive         bool      `json:"is_active"`
	Reason           string    `json:"reason,omitempty"`
	DailyLossPct     float64   `json:"daily_loss_pct"`
	TotalDrawdownPct float64   `json:"total_drawdown_pct"`
	LastResetDate    string    `json:"last_reset_date"`
	ActivatedAt      time.Time `json:"activated_at,omitempty"`
}

// Fill is the execution client's response to a placed order.
type Fill struct {
	ExchangeOrderID int64
	Status          OrderStatus
	FilledQty       float64
	AvgPrice        float64
}

// ExecutionError wraps a transient exchange rejection or transport failure.
// Orders hit by one stay PENDING or FAILED; position state is never advanced
// on the strength of a failed call.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
