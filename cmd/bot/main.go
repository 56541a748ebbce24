package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdczone-bot-go/internal/backtest"
	"cdczone-bot-go/internal/candles"
	"cdczone-bot-go/internal/config"
	"cdczone-bot-go/internal/engine"
	"cdczone-bot-go/internal/exchange"
	"cdczone-bot-go/internal/logger"
	"cdczone-bot-go/internal/metrics"
	"cdczone-bot-go/internal/models"
	"cdczone-bot-go/internal/notify"
	"cdczone-bot-go/internal/persistence"
	"cdczone-bot-go/internal/risk"
	"cdczone-bot-go/internal/scheduler"

	"github.com/joho/godotenv"
)

const quoteAsset = "USDT"

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "live", "running mode: live or backtest")
	ltfData := flag.String("data", "", "path to lower-timeframe kline CSV for backtesting")
	htfData := flag.String("htf-data", "", "path to higher-timeframe kline CSV for backtesting")
	balance := flag.Float64("balance", 10000, "starting balance for backtesting")
	start := flag.String("start", "", "download start date (YYYY-MM-DD)")
	end := flag.String("end", "", "download end date (YYYY-MM-DD), defaults to now")
	flag.Parse()

	// A default console logger covers startup before the config is loaded.
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenv.Load(); err != nil {
		logger.S().Info("no .env file found, reading from process environment")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("failed to load config: %v", err)
	}

	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	switch *mode {
	case "live":
		runLive(cfg)
	case "backtest":
		runBacktest(cfg, *ltfData, *htfData, *balance)
	case "download":
		runDownload(cfg, *ltfData, *htfData, *start, *end)
	default:
		logger.S().Fatalf("unknown mode %q, expected live, backtest or download", *mode)
	}
}

func runLive(cfg *models.Config) {
	logger.S().Info("starting live trading mode")

	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")
	if apiKey == "" || secretKey == "" {
		logger.S().Fatal("BINANCE_API_KEY and BINANCE_SECRET_KEY must be set")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.S().Fatalf("invalid timezone %q: %v", cfg.Timezone, err)
	}

	retry := exchange.RetryPolicy{
		Attempts:     cfg.RetryAttempts,
		InitialDelay: time.Duration(cfg.RetryInitialDelayMs) * time.Millisecond,
	}
	client := exchange.NewBinanceClient(apiKey, secretKey, cfg.IsTestnet, retry)

	repo, err := persistence.NewBadgerRepository(cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("failed to open state database: %v", err)
	}
	defer repo.Close()

	store, err := persistence.NewOrderStore(cfg.OrderDBPath)
	if err != nil {
		logger.S().Fatalf("failed to open order database: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	equity, err := client.GetBalance(ctx, quoteAsset)
	if err != nil {
		logger.S().Fatalf("failed to fetch starting balance: %v", err)
	}
	guard, err := risk.NewGuard(cfg.Risk, repo, loc, equity)
	if err != nil {
		logger.S().Fatalf("failed to initialize risk guard: %v", err)
	}
	if guard.Active() {
		logger.S().Warnw("circuit breaker is active from a previous session, entries are halted",
			"reason", guard.State().Reason)
	}

	feed := candles.NewBinanceFeed(client)
	eng := engine.New(*cfg, repo, store, guard, client, feed, quoteAsset)

	var notifier notify.Notifier = notify.NewLogNotifier()
	if cfg.AlertWebhook != "" {
		notifier = notify.NewWebhookNotifier(cfg.AlertWebhook)
	}
	sched := scheduler.New(*cfg, eng, notifier)

	if cfg.MetricsAddr != "" {
		go func() {
			logger.S().Infow("metrics endpoint listening", "addr", cfg.MetricsAddr)
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				logger.S().Errorw("metrics server stopped", "error", err)
			}
		}()
	}

	pairs := make([]string, 0, len(cfg.Pairs))
	for _, pc := range cfg.Pairs {
		pairs = append(pairs, pc.Pair)
	}
	stream := scheduler.NewPriceStream(wsBaseURL(cfg.IsTestnet), pairs, sched.OnPrice)
	go stream.Run(ctx)

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.S().Info("shutdown signal received")
		cancel()
		<-done
	case err := <-done:
		if err != nil && err != context.Canceled {
			logger.S().Errorw("scheduler stopped", "error", err)
		}
	}
	logger.S().Info("bot stopped")
}

func wsBaseURL(isTestnet bool) string {
	if isTestnet {
		return "wss://testnet.binance.vision"
	}
	return "wss://stream.binance.com:9443"
}

func runBacktest(cfg *models.Config, ltfData, htfData string, balance float64) {
	logger.S().Info("starting backtest mode")
	if ltfData == "" || htfData == "" {
		logger.S().Fatal("backtest mode requires --data and --htf-data CSV paths")
	}

	runner, err := backtest.NewRunner(*cfg, ltfData, htfData, balance)
	if err != nil {
		logger.S().Fatalf("failed to prepare backtest: %v", err)
	}

	summary, err := runner.Run(context.Background())
	if err != nil {
		logger.S().Fatalf("backtest failed: %v", err)
	}
	summary.Render(os.Stdout)
}

func runDownload(cfg *models.Config, ltfData, htfData, startStr, endStr string) {
	if len(cfg.Pairs) == 0 {
		logger.S().Fatal("no pairs configured")
	}
	if ltfData == "" || htfData == "" {
		logger.S().Fatal("download mode requires --data and --htf-data output paths")
	}
	if startStr == "" {
		logger.S().Fatal("download mode requires --start (YYYY-MM-DD)")
	}
	startTime, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		logger.S().Fatalf("invalid --start date %q: %v", startStr, err)
	}
	endTime := time.Now().UTC()
	if endStr != "" {
		if endTime, err = time.Parse("2006-01-02", endStr); err != nil {
			logger.S().Fatalf("invalid --end date %q: %v", endStr, err)
		}
	}

	pc := cfg.Pairs[0]
	dl := candles.NewDownloader()
	ctx := context.Background()
	if err := dl.Download(ctx, pc.Pair, pc.Timeframe, ltfData, startTime, endTime); err != nil {
		logger.S().Fatalf("download %s klines failed: %v", pc.Timeframe, err)
	}
	htf := candles.HigherTimeframe(pc.Timeframe)
	if err := dl.Download(ctx, pc.Pair, htf, htfData, startTime, endTime); err != nil {
		logger.S().Fatalf("download %s klines failed: %v", htf, err)
	}
}
