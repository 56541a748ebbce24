package config

import (
	"encoding/json"
	"fmt"
	"os"

	"cdczone-bot-go/internal/models"
)

// LoadConfig reads and validates the JSON configuration file.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &models.Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func validate(cfg *models.Config) error {
	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("config: at least one pair must be configured")
	}
	if len(cfg.Pairs) > models.MaxActivePairs {
		return fmt.Errorf("config: %d pairs configured, limit is %d", len(cfg.Pairs), models.MaxActivePairs)
	}
	seen := make(map[string]bool, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		if p.Pair == "" {
			return fmt.Errorf("config: pair name must not be empty")
		}
		if seen[p.Pair] {
			return fmt.Errorf("config: duplicate pair %s", p.Pair)
		}
		seen[p.Pair] = true
		switch p.Timeframe {
		case "1h", "4h", "1d":
		default:
			return fmt.Errorf("config: pair %s has unsupported timeframe %q", p.Pair, p.Timeframe)
		}
		if p.BudgetPct <= 0 || p.BudgetPct > 1 {
			return fmt.Errorf("config: pair %s budget_pct %.4f out of (0,1]", p.Pair, p.BudgetPct)
		}
	}
	if cfg.Risk.PerTradeCapPct <= 0 {
		return fmt.Errorf("config: risk.per_trade_cap_pct must be positive")
	}
	if cfg.Risk.DailyLossLimitPct <= 0 || cfg.Risk.MaxDrawdownPct <= 0 {
		return fmt.Errorf("config: daily loss and drawdown limits must be positive")
	}
	return nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 60
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryInitialDelayMs <= 0 {
		cfg.RetryInitialDelayMs = 1000
	}
	defaults := models.DefaultRuleParams()
	for i := range cfg.Pairs {
		rp := &cfg.Pairs[i].RuleParams
		if rp.EMAFastPeriod == 0 {
			rp.EMAFastPeriod = defaults.EMAFastPeriod
		}
		if rp.EMASlowPeriod == 0 {
			rp.EMASlowPeriod = defaults.EMASlowPeriod
		}
		if rp.RSIPeriod == 0 {
			rp.RSIPeriod = defaults.RSIPeriod
		}
		if rp.LeadRedMinBars == 0 {
			rp.LeadRedMinBars = defaults.LeadRedMinBars
		}
		if rp.LeadRedMaxBars == 0 {
			rp.LeadRedMaxBars = defaults.LeadRedMaxBars
		}
		if rp.MomentumLookback == 0 {
			rp.MomentumLookback = defaults.MomentumLookback
		}
		if rp.HigherLowMinDiffPct == 0 {
			rp.HigherLowMinDiffPct = defaults.HigherLowMinDiffPct
		}
		if rp.HigherLowMaxBars == 0 {
			rp.HigherLowMaxBars = defaults.HigherLowMaxBars
		}
		if rp.WWindowBars == 0 {
			rp.WWindowBars = defaults.WWindowBars
		}
		if rp.WMidHighMinDiffPct == 0 {
			rp.WMidHighMinDiffPct = defaults.WMidHighMinDiffPct
		}
		if rp.WLegMinBars == 0 {
			rp.WLegMinBars = defaults.WLegMinBars
		}
		if rp.WLegMaxBars == 0 {
			rp.WLegMaxBars = defaults.WLegMaxBars
		}
		if rp.VWindowBars == 0 {
			rp.VWindowBars = defaults.VWindowBars
		}
		if rp.VMaxDropBars == 0 {
			rp.VMaxDropBars = defaults.VMaxDropBars
		}
		if rp.VMaxRecoveryBars == 0 {
			rp.VMaxRecoveryBars = defaults.VMaxRecoveryBars
		}
		if rp.VMinDropPct == 0 {
			rp.VMinDropPct = defaults.VMinDropPct
		}
		if rp.VMinRecoveryPct == 0 {
			rp.VMinRecoveryPct = defaults.VMinRecoveryPct
		}
		if rp.StructuralSLBufferPct == 0 {
			rp.StructuralSLBufferPct = defaults.StructuralSLBufferPct
		}
		if rp.TrailingOffsetPct == 0 {
			rp.TrailingOffsetPct = defaults.TrailingOffsetPct
		}
		if rp.ActivationThresholdPct == 0 {
			rp.ActivationThresholdPct = defaults.ActivationThresholdPct
		}
	}
}
