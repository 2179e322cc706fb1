package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/learnhubhq/learnhub-api/api"
	"github.com/learnhubhq/learnhub-api/config"
	"github.com/learnhubhq/learnhub-api/database"
	"github.com/learnhubhq/learnhub-api/router"
	"github.com/learnhubhq/learnhub-api/services/cron"
	"github.com/learnhubhq/learnhub-api/utils"
	"github.com/learnhubhq/learnhub-api/utils/cache"
	"github.com/rs/zerolog/log"
)

// SetupAndRunServer boots the whole service: config, logging, database,
// optional redis and cron, then the HTTP server.
func SetupAndRunServer() error {
	if err := config.LoadENV(); err != nil {
		return err
	}

	settings, err := config.Get()
	if err != nil {
		return err
	}

	utils.InitLogger(os.Getenv("LOG_LEVEL"), settings.IsProduction())

	store, err := database.StartGORM(settings)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Redis is optional: without it reconciliation relies on database
	// constraints alone, which is correct but admits more 500-on-conflict
	// noise under concurrent retries.
	var redisCache *cache.RedisCache
	if settings.RedisURL != "" {
		redisCache, err = cache.NewRedisCache(settings.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, reference locking disabled")
			redisCache = nil
		}
	}

	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store.DB())
		if err := cronManager.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start cron jobs")
			cronManager = nil
		}
	}

	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if redisCache != nil {
			redisCache.Close()
		}
		store.Close()
	}()

	server := api.NewAPIServer(fmt.Sprintf(":%d", settings.Port), settings.AppName)
	app := server.GetEngine()

	app.Use(logger.New())
	app.Use(recover.New())

	router.SetupRoutes(app, store, settings, redisCache)

	// Drain in-flight reconciliations on SIGINT/SIGTERM instead of cutting
	// them off mid-settlement
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		received := <-sig
		log.Info().Str("signal", received.String()).Msg("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	return server.Run()
}
