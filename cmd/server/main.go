package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/database"
	"papertrade/internal/logger"
	"papertrade/internal/market"
	"papertrade/internal/portfolio"
	"papertrade/internal/quotes"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Quote providers: Finnhub first, Alpha Vantage as fallback, with a
	// shared cache in front.
	quoteTimeout := time.Duration(cfg.Quotes.TimeoutSeconds) * time.Second
	finnhub := quotes.NewFinnhubClient(&cfg.Quotes.Finnhub, quoteTimeout, log)
	alphavantage := quotes.NewAlphaVantageClient(&cfg.Quotes.AlphaVantage, quoteTimeout, log)
	chain := quotes.NewChain(log, finnhub, alphavantage)
	quoteSource := quotes.NewCache(chain, time.Duration(cfg.Quotes.CacheTTLSeconds)*time.Second, log)

	// Market-hours clock
	clock, err := market.NewHoursClock(&cfg.Market)
	if err != nil {
		log.Fatal("Failed to build market clock", zap.Error(err))
	}

	svc := portfolio.NewService(db, quoteSource, log, decimal.NewFromFloat(cfg.Trading.StartingBalance))

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// One-time startup sweep: replay any orders queued while the process
	// was down, if the market is open.
	runSweep := func() {
		sweepCtx, sweepCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer sweepCancel()
		if err := svc.SweepAllPending(sweepCtx, clock); err != nil {
			log.Error("Pending-order sweep failed", zap.Error(err))
		}
	}
	runSweep()

	// Scheduled sweeps while the process runs
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Trading.SweepSchedule, runSweep); err != nil {
		log.Fatal("Invalid sweep schedule", zap.String("schedule", cfg.Trading.SweepSchedule), zap.Error(err))
	}
	scheduler.Start()

	// HTTP API
	mux := http.NewServeMux()
	apiHandler := NewAPIHandler(log, db, svc, clock)
	apiHandler.Register(mux)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting API server", zap.String("address", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("API server failed", zap.Error(err))
	}

	log.Info("Server has been shut down.")
}
