// Package main is the entry point for the asset forecast API.
// The service keeps daily price history in SQLite, fits geometric Brownian
// motion parameters to it, and serves Monte Carlo price forecasts and
// portfolio Value-at-Risk over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pnlync/asset-forecast-api/internal/calculations"
	"github.com/pnlync/asset-forecast-api/internal/clients/yahoo"
	"github.com/pnlync/asset-forecast-api/internal/config"
	"github.com/pnlync/asset-forecast-api/internal/database"
	"github.com/pnlync/asset-forecast-api/internal/history"
	"github.com/pnlync/asset-forecast-api/internal/modules/forecast"
	forecasthandlers "github.com/pnlync/asset-forecast-api/internal/modules/forecast/handlers"
	"github.com/pnlync/asset-forecast-api/internal/modules/risk"
	riskhandlers "github.com/pnlync/asset-forecast-api/internal/modules/risk/handlers"
	"github.com/pnlync/asset-forecast-api/internal/scheduler"
	"github.com/pnlync/asset-forecast-api/internal/server"
	"github.com/pnlync/asset-forecast-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting asset forecast API")

	// history.db holds durable daily prices, cache.db holds ephemeral
	// calculation results. Separate files keep WAL churn on the cache
	// from touching price history.
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	priceStore := history.NewDB(historyDB.Conn(), log)
	if err := priceStore.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history schema")
	}

	calcCache := calculations.NewCache(cacheDB.Conn())
	if err := calcCache.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache schema")
	}

	// Services
	forecastService := forecast.NewService(priceStore, forecast.NewEngine(), log)

	riskEngine := risk.NewEngine(log)
	riskEngine.SetCache(calcCache)
	riskService := risk.NewService(priceStore, riskEngine, log)

	// Background price sync
	yahooClient := yahoo.NewClient(log)
	if cfg.YahooBaseURL != "" {
		yahooClient.SetBaseURL(cfg.YahooBaseURL)
	}

	sched := scheduler.New(log)
	if len(cfg.SyncSymbols) > 0 {
		syncJob := scheduler.NewPriceSyncJob(yahooClient, priceStore, cfg.SyncSymbols, log)
		if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register price sync job")
		}

		// Populate history on startup so forecasts work before the first tick.
		go func() {
			if err := sched.RunNow(syncJob); err != nil {
				log.Warn().Err(err).Msg("Initial price sync incomplete")
			}
		}()
	}
	cleanupJob := scheduler.NewCacheCleanupJob(calcCache, log)
	if err := sched.AddJob("0 0 3 * * *", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	sched.Start()

	srv := server.New(server.Config{
		Log:              log,
		Port:             cfg.Port,
		DevMode:          cfg.DevMode,
		DataDir:          cfg.DataDir,
		ForecastHandlers: forecasthandlers.NewHandler(forecastService, log),
		RiskHandlers:     riskhandlers.NewHandler(riskService, log),
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
