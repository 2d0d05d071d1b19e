package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"weatherdash/internal/api"
	"weatherdash/internal/config"
	"weatherdash/internal/history"
	"weatherdash/internal/scheduler"
	"weatherdash/internal/services"
	"weatherdash/pkg/client"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Weather Dashboard Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.WeatherAPI.APIKey == "" {
		logger.Fatal("OPENWEATHER_API_KEY is required")
	}

	// History store is optional at runtime: searches still work when the
	// database is down, they are just not recorded.
	store, err := history.Open(cfg.DSN(), logger)
	if err != nil {
		logger.Warn("History store unavailable, continuing without persistence", zap.Error(err))
		store = nil
	}

	clientConfig := client.ClientConfig{
		Timeout:        10 * time.Second,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		Multiplier:     cfg.Retry.Multiplier,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}

	weatherClient := client.NewOpenWeatherClient(
		cfg.WeatherAPI.APIKey,
		cfg.WeatherAPI.BaseURL,
		cfg.WeatherAPI.ZipCountry,
		clientConfig,
		logger,
	)
	geoClient := client.NewGeoIPClient(cfg.GeoIP.URL, clientConfig, logger)

	// A typed-nil store must not reach the interface field.
	var recorder services.HistoryRecorder
	if store != nil {
		recorder = store
	}

	service := services.NewWeatherService(
		weatherClient,
		geoClient,
		recorder,
		cfg.Cache.Duration,
		cfg.Cache.MaxSize,
		logger,
	)
	defer service.Close()

	// History retention job
	var retention *scheduler.Retention
	if store != nil {
		retention = scheduler.NewRetention(store, cfg.Retention.CronSpec, cfg.Retention.MaxAge, logger)
		if err := retention.Start(); err != nil {
			logger.Error("Failed to start retention job", zap.Error(err))
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(service, store, logger)
	api.SetupRoutes(app, handler, logger)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if retention != nil {
		retention.Stop()
	}

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}
