package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/crop-advisory/internal/advisory"
	httpapi "github.com/i474232898/crop-advisory/internal/api/http"
	"github.com/i474232898/crop-advisory/internal/config"
	"github.com/i474232898/crop-advisory/internal/crops"
	"github.com/i474232898/crop-advisory/internal/faq"
	"github.com/i474232898/crop-advisory/internal/market"
	"github.com/i474232898/crop-advisory/internal/scheduler"
	"github.com/i474232898/crop-advisory/internal/store"
	"github.com/i474232898/crop-advisory/internal/weather"
	"github.com/i474232898/crop-advisory/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider, err := providers.New(cfg.WeatherProvider, httpClient, cfg.WeatherAPIKey,
		providers.WithBaseURL(cfg.WeatherBaseURL),
		providers.WithBackoff(providers.BackoffConfig{
			MaxRetries:      cfg.WeatherMaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}),
	)
	if err != nil {
		log.Fatalf("failed to create weather provider: %v", err)
	}
	if cfg.WeatherAPIKey == "" && cfg.WeatherProvider != "openmeteo" {
		log.Printf("WARN: no API key for %s; weather requests will fail until WEATHER_API_KEY is set", cfg.WeatherProvider)
	}

	weatherCache := weather.NewCache(provider,
		store.NewMemoryStore[weather.Snapshot](cfg.WeatherCacheTTL(), cfg.WeatherCacheMaxEntries))

	rules := crops.NewRuleStore(crops.CSVFileLoader(cfg.CropRulesPath))
	if _, err := rules.EnsureLoaded(context.Background()); err != nil {
		// Not fatal: the next recommendation request retries the load.
		log.Printf("WARN: initial crop rule load failed: %v", err)
	}

	advisor := advisory.NewAdvisor(rules, weatherCache, crops.NewScorer(cfg.Scoring.Weights()), cfg.TopN)

	prices := market.NewService(cfg.MandiPricesPath,
		store.NewMemoryStore[[]market.PriceRecord](cfg.MandiCacheTTL(), 1))

	var geo weather.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geo = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}

	faqs, err := faq.LoadFile(cfg.FAQPath)
	if err != nil {
		log.Printf("WARN: %v; chatbot will answer with the fallback text", err)
		faqs = faq.NewMatcher(nil)
	}

	sched := scheduler.New(cfg.WarmLocations, cfg.WarmInterval, weatherCache)
	if cfg.MandiReloadInterval > 0 {
		sched.Every("mandi-reload", cfg.MandiReloadInterval, prices.Reload)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "crop-advisory",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * cfg.HTTPTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(httpapi.CORS(cfg.CORSAllowOrigins))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "crop-advisory",
			"rules":   len(rules.Rules()),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Advisor:  advisor,
		Weather:  weatherCache,
		Prices:   prices,
		Geocoder: geo,
		FAQ:      faqs,
	})

	go func() {
		log.Printf("INFO: listening on :%s (provider %s)", cfg.Port, provider.Name())
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
