package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts completed evaluation cycles per pair.
	CyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_cycles_total",
		Help: "Number of completed evaluation cycles.",
	}, []string{"pair"})

	// CycleErrors counts cycles aborted by an error per pair.
	CycleErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_cycle_errors_total",
		Help: "Number of evaluation cycles aborted by an error.",
	}, []string{"pair"})

	// OrdersTotal counts orders by pair, type and terminal status.
	OrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_orders_total",
		Help: "Number of orders placed, by type and status.",
	}, []string{"pair", "type", "status"})

	// OpenPositions is 1 while a pair is LONG, 0 while FLAT.
	OpenPositions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bot_open_positions",
		Help: "Whether a position is open for the pair.",
	}, []string{"pair"})

	// CircuitBreakerActive is 1 while the account-level breaker is tripped.
	CircuitBreakerActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_circuit_breaker_active",
		Help: "Whether the circuit breaker is active.",
	})

	// Equity is the last computed account equity in quote currency.
	Equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_equity_quote",
		Help: "Account equity in quote currency.",
	})

	// DailyPnL is today's realized PnL in quote currency.
	DailyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_daily_pnl_quote",
		Help: "Realized PnL since the last daily reset.",
	})
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleErrors,
		OrdersTotal,
		OpenPositions,
		CircuitBreakerActive,
		Equity,
		DailyPnL,
	)
}

// Serve exposes the /metrics endpoint on addr. It blocks, so callers run it
// in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
