package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/chefbook/internal/api/router"
	"github.com/wolfman30/chefbook/internal/catalog"
	"github.com/wolfman30/chefbook/internal/chefapi"
	appconfig "github.com/wolfman30/chefbook/internal/config"
	"github.com/wolfman30/chefbook/internal/flow"
	"github.com/wolfman30/chefbook/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/chefbook/internal/http/middleware"
	"github.com/wolfman30/chefbook/internal/observability/metrics"
	"github.com/wolfman30/chefbook/pkg/logging"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chefbook bridge",
		"env", cfg.Env,
		"port", cfg.Port,
		"chef_api", cfg.ChefAPIBaseURL,
		"catalog_cache", cfg.CatalogCache,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metricsHandler, bookingMetrics := setupMetrics()
	client := chefapi.NewClient(cfg.ChefAPIBaseURL, cfg.ChefAPITimeout, logger, chefapi.WithMetrics(bookingMetrics))
	cache, closeCache := setupCatalogCache(ctx, cfg, logger)
	defer closeCache()

	flows := flow.NewService(flow.Config{
		Catalog:    catalog.NewResolver(client, cache, cfg.CatalogCacheTTL, logger),
		Backend:    client,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
		Metrics:    bookingMetrics,
	})
	go flows.Run(ctx, time.Minute)

	pinLimiter := setupPinLimiter(cfg)
	if pinLimiter != nil {
		go pinLimiter.Run(ctx)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Drafts:             handlers.NewDraftHandler(flows, logger),
		Bookings:           handlers.NewBookingHandler(flows, client, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PinLimiter:         pinLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ChefAPITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

// setupCatalogCache returns the configured cache. A Redis cache that cannot
// be reached at startup falls back to memory.
func setupCatalogCache(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (catalog.Cache, func()) {
	if !cfg.UsesRedisCache() {
		return catalog.NewMemoryCache(), func() {}
	}
	client := catalog.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisTLS)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis catalog cache unavailable, using memory", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return catalog.NewMemoryCache(), func() {}
	}
	logger.Info("catalog cache backed by redis", "addr", cfg.RedisAddr)
	return catalog.NewRedisCache(client), func() { _ = client.Close() }
}

func setupPinLimiter(cfg *appconfig.Config) *httpmiddleware.RateLimiter {
	if cfg.PinSubmitsPerMinute <= 0 {
		return nil
	}
	return httpmiddleware.NewRateLimiter(float64(cfg.PinSubmitsPerMinute)/60, cfg.PinSubmitsPerMinute)
}
