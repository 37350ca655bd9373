package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-query-pipeline/internal/api/http"
	"github.com/i474232898/weather-query-pipeline/internal/config"
	"github.com/i474232898/weather-query-pipeline/internal/geo"
	"github.com/i474232898/weather-query-pipeline/internal/pipeline"
	"github.com/i474232898/weather-query-pipeline/internal/scheduler"
	"github.com/i474232898/weather-query-pipeline/internal/telemetry"
	"github.com/i474232898/weather-query-pipeline/internal/weather"
	"github.com/i474232898/weather-query-pipeline/internal/weather/providers"
)

const (
	serviceName    = "weather-query-pipeline"
	serviceVersion = "0.1.0"
)

var logLevels = map[string]log.Level{
	"trace": log.LevelTrace,
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.SetLevel(logLevels[cfg.LogLevel])

	shutdownTracing, err := telemetry.Setup(serviceName, serviceVersion, cfg.ZipkinURL)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider, err := newProvider(cfg, httpClient)
	if err != nil {
		log.Fatalf("failed to create weather provider: %v", err)
	}

	resolver := geo.NewResolver(geo.NewGoogleGeocoder(cfg.GeocoderAPIKey))
	service := weather.NewService(resolver, provider)

	state := pipeline.NewState()
	pipe := pipeline.New(service, state,
		pipeline.WithDebounce(cfg.DebounceWindow),
		pipeline.WithListener(func(r pipeline.Result) {
			if !r.OK() {
				return
			}
			cond, _ := r.Weather.Current.Primary()
			log.Infof("delivered weather for %q: %s, %.1f°C (attempt %s)",
				r.Query, cond.Label(), r.Weather.Current.Temperature, r.AttemptID)
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeDone := make(chan struct{})
	go func() {
		defer close(pipeDone)
		if err := pipe.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("pipeline stopped: %v", err)
		}
	}()

	if cfg.DefaultCity != "" {
		if err := pipe.Submit(ctx, cfg.DefaultCity); err != nil {
			log.Warnf("failed to submit default city: %v", err)
		}
	}

	// Scheduler that periodically refreshes the current city.
	sched := scheduler.New(cfg.RefreshInterval, pipe)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
			"phase":   pipe.Phase().String(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, pipe, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()
	log.Infof("%s listening on :%s (provider %s)", serviceName, cfg.Port, provider.Name())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
	<-pipeDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Errorf("error flushing traces: %v", err)
	}
}

// newProvider builds the configured weather backend on top of a fetcher
// sharing httpClient.
func newProvider(cfg *config.AppConfig, httpClient *http.Client) (weather.Provider, error) {
	fetcherCfg := providers.FetcherConfig{
		Name:             cfg.Provider,
		Client:           httpClient,
		Retry:            cfg.Retry(),
		BreakerThreshold: uint32(cfg.BreakerThreshold),
	}

	switch cfg.Provider {
	case config.ProviderOpenMeteo:
		fetcherCfg.BaseURL = cfg.OpenMeteoBaseURL
		f, err := providers.NewFetcher(fetcherCfg)
		if err != nil {
			return nil, err
		}
		return providers.NewOpenMeteoProvider(f), nil
	default:
		fetcherCfg.BaseURL = cfg.OpenWeatherBaseURL
		f, err := providers.NewFetcher(fetcherCfg)
		if err != nil {
			return nil, err
		}
		return providers.NewOpenWeatherProvider(f, cfg.OpenWeatherAPIKey), nil
	}
}
