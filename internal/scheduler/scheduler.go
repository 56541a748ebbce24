package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cdczone-bot-go/internal/logger"
	"cdczone-bot-go/internal/metrics"
	"cdczone-bot-go/internal/models"
	"cdczone-bot-go/internal/notify"
)

// CycleRunner is the engine surface the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context, pair string) error
	RunRiskChecks(ctx context.Context) (bool, error)
	CheckProtectiveStops(ctx context.Context, pair string, price float64) error
}

// Scheduler ticks the evaluation loop: risk checks first, then one cycle per
// pair, pairs in parallel. Price ticks from the stream bypass the ticker and
// go straight to the protective-stop check.
type Scheduler struct {
	interval time.Duration
	pairs    []string
	runner   CycleRunner
	notifier notify.Notifier
}

// New builds a scheduler from the bot configuration.
func New(cfg models.Config, runner CycleRunner, notifier notify.Notifier) *Scheduler {
	pairs := make([]string, 0, len(cfg.Pairs))
	for _, pc := range cfg.Pairs {
		pairs = append(pairs, pc.Pair)
	}
	interval := time.Duration(cfg.CycleInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		pairs:    pairs,
		runner:   runner,
		notifier: notifier,
	}
}

// Run blocks until the context is canceled. The first tick fires immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	tripped, err := s.runner.RunRiskChecks(ctx)
	if err != nil {
		logger.S().Errorw("risk checks failed", "error", err)
	}
	if tripped {
		s.alert(ctx, notify.Alert{
			Level:   notify.AlertCritical,
			Title:   "circuit breaker tripped",
			Message: "all positions force-flattened, entries halted until operator reset",
		})
	}

	var wg sync.WaitGroup
	for _, pair := range s.pairs {
		wg.Add(1)
		go func(pair string) {
			defer wg.Done()
			s.runPair(ctx, pair)
		}(pair)
	}
	wg.Wait()
}

func (s *Scheduler) runPair(ctx context.Context, pair string) {
	err := s.runner.RunCycle(ctx, pair)
	switch {
	case err == nil:
		metrics.CyclesTotal.WithLabelValues(pair).Inc()
	case errors.Is(err, models.ErrPendingOrderOutstanding):
		logger.S().Infow("cycle deferred, order pending", "pair", pair)
	case errors.Is(err, models.ErrInsufficientData):
		logger.S().Infow("cycle skipped, not enough candles", "pair", pair)
	default:
		metrics.CycleErrors.WithLabelValues(pair).Inc()
		logger.S().Errorw("cycle failed", "pair", pair, "error", err)
		s.alert(ctx, notify.Alert{
			Level:   notify.AlertWarning,
			Title:   "evaluation cycle failed",
			Message: fmt.Sprintf("%s: %v", pair, err),
		})
	}
}

// OnPrice is the price-stream hook: every tick checks the pair's protective
// stops.
func (s *Scheduler) OnPrice(pair string, price float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.runner.CheckProtectiveStops(ctx, pair, price); err != nil {
		logger.S().Errorw("protective stop check failed", "pair", pair, "error", err)
	}
}

func (s *Scheduler) alert(ctx context.Context, alert notify.Alert) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, alert); err != nil {
		logger.S().Errorw("alert delivery failed", "title", alert.Title, "error", err)
	}
}
