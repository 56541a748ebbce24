package models

// Config is the full bot configuration, loaded from JSON.
type Config struct {
	IsTestnet     bool         `json:"is_testnet"`
	DBPath        string       `json:"db_path"`
	OrderDBPath   string       `json:"order_db_path"`
	MetricsAddr   string       `json:"metrics_addr,omitempty"`
	AlertWebhook  string       `json:"alert_webhook_url,omitempty"`
	Timezone      string       `json:"timezone"`       // daily reset boundary, e.g. "UTC"
	CycleInterval int          `json:"cycle_interval_sec"`
	Pairs         []PairConfig `json:"pairs"`
	Risk          RiskSettings `json:"risk"`
	LogConfig     LogConfig    `json:"log"`

	RetryAttempts       int `json:"retry_attempts"`
	RetryInitialDelayMs int `json:"retry_initial_delay_ms"`
}

// PairConfig holds the per-pair strategy configuration. At most
// MaxActivePairs entries may be enabled at once.
type PairConfig struct {
	Pair                string     `json:"pair"`      // e.g. "BTCUSDT"
	Timeframe           string     `json:"timeframe"` // LTF: "1h", "4h", "1d"
	BudgetPct           float64    `json:"budget_pct"`
	EnableWShape        bool       `json:"enable_w_shape"`
	EnableLeadingSignal bool       `json:"enable_leading_signal"`
	RuleParams          RuleParams `json:"rule_params"`
}

// MaxActivePairs caps the number of concurrently enabled pair configurations.
const MaxActivePairs = 5

// RuleParams tunes the indicator lookbacks and thresholds per pair.
type RuleParams struct {
	EMAFastPeriod          int     `json:"ema_fast_period"`
	EMASlowPeriod          int     `json:"ema_slow_period"`
	RSIPeriod              int     `json:"rsi_period"`
	LeadRedMinBars         int     `json:"lead_red_min_bars"`
	LeadRedMaxBars         int     `json:"lead_red_max_bars"`
	MomentumLookback       int     `json:"momentum_lookback"`
	HigherLowMinDiffPct    float64 `json:"higher_low_min_diff_pct"`
	HigherLowMaxBars       int     `json:"higher_low_max_bars_between"`
	WWindowBars            int     `json:"w_window_bars"`
	WMidHighMinDiffPct     float64 `json:"w_mid_high_min_diff_pct"`
	WLegMinBars            int     `json:"w_leg_min_bars"`
	WLegMaxBars            int     `json:"w_leg_max_bars"`
	WMinHigherLowPct       float64 `json:"w_min_higher_low_pct"`
	VWindowBars            int     `json:"v_window_bars"`
	VMaxDropBars           int     `json:"v_max_drop_bars"`
	VMaxRecoveryBars       int     `json:"v_max_recovery_bars"`
	VMinDropPct            float64 `json:"v_min_drop_pct"`
	VMinRecoveryPct        float64 `json:"v_min_recovery_pct"`
	StructuralSLBufferPct  float64 `json:"structural_sl_buffer_pct"`
	TrailingOffsetPct      float64 `json:"trailing_offset_pct"`
	ActivationThresholdPct float64 `json:"activation_threshold_pct"`
}

// DefaultRuleParams returns the parameter set the strategy was tuned with.
func DefaultRuleParams() RuleParams {
	return RuleParams{
		EMAFastPeriod:          12,
		EMASlowPeriod:          26,
		RSIPeriod:              14,
		LeadRedMinBars:         1,
		LeadRedMaxBars:         20,
		MomentumLookback:       3,
		HigherLowMinDiffPct:    0.002,
		HigherLowMaxBars:       20,
		WWindowBars:            30,
		WMidHighMinDiffPct:     0.02,
		WLegMinBars:            3,
		WLegMaxBars:            15,
		WMinHigherLowPct:       0.0,
		VWindowBars:            15,
		VMaxDropBars:           5,
		VMaxRecoveryBars:       5,
		VMinDropPct:            0.03,
		VMinRecoveryPct:        0.03,
		StructuralSLBufferPct:  0.003,
		TrailingOffsetPct:      0.07,
		ActivationThresholdPct: 0.05,
	}
}

// RiskSettings are the account-level risk limits enforced by the risk guard.
type RiskSettings struct {
	PerTradeCapPct      float64 `json:"per_trade_cap_pct"`
	TotalExposureCapPct float64 `json:"total_exposure_cap_pct"`
	DailyLossLimitPct   float64 `json:"daily_loss_limit_pct"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
}

// LogConfig controls the zap/lumberjack logger.
type LogConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"` // "console", "file", "both"
	File       string `json:"file"`
	MaxSize    int    `json:"max_size"`
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"`
	Compress   bool   `json:"compress"`
}
