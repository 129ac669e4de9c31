package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hakimelghazi/binary-exchange/internal/api"
	"github.com/hakimelghazi/binary-exchange/internal/config"
	"github.com/hakimelghazi/binary-exchange/internal/engine"
	"github.com/hakimelghazi/binary-exchange/internal/quotes"
	"github.com/hakimelghazi/binary-exchange/internal/store"
	"github.com/hakimelghazi/binary-exchange/internal/util"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	cfg, err := config.Load(configFile, "")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Log.File != "" {
		logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	} else {
		logger, err = util.NewLogger(cfg.Log.Level)
	}
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) trade journal (optional)
	var (
		recorder engine.TradeRecorder
		lister   api.TradeLister
	)
	pool, err := store.NewPool(ctx, cfg.Database.URL)
	switch {
	case errors.Is(err, store.ErrNoDatabase):
		logger.Warn("trade_journal_disabled", zap.String("reason", "DATABASE_URL not set"))
	case err != nil:
		return fmt.Errorf("db connect: %w", err)
	default:
		defer pool.Close()
		trades := store.NewTradeStore(pool)
		if err := trades.Migrate(ctx); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
		recorder, lister = trades, trades
	}

	// 2) engine
	hub := api.NewHub(logger)
	cache := quotes.NewPriceCache()
	matcher := engine.NewMatchingEngine(
		engine.WithLogger(logger),
		engine.WithCommissionRate(cfg.Engine.CommissionRate),
		engine.WithMarketMaker(cfg.Engine.MarketMaker),
	)
	eng := engine.NewEngine(cfg.Engine.CommandBuffer, matcher, recorder, logger, hub, cache)
	go eng.Run(ctx)
	go hub.Run(ctx)

	logger.Info("engine_started",
		zap.String("commission_rate", matcher.CommissionRate().String()),
		zap.Bool("market_maker", matcher.MarketMaker()),
		zap.Uint64("next_order_id", matcher.NextOrderID()),
		zap.Int("command_buffer", cfg.Engine.CommandBuffer))

	// 3) api
	srv := api.NewServer(api.Options{
		Engine:         eng,
		Trades:         lister,
		Quotes:         cache,
		Hub:            hub,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	<-eng.Done()
	logger.Info("shutdown_complete")
	return nil
}
