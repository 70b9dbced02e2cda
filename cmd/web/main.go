// market-web - Server-rendered storefront and back office for the commerce API.
// Holds no domain data; every page is a view over backend calls.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"market-web/internal/admin"
	"market-web/internal/compat"
	"market-web/internal/config"
	"market-web/internal/handler"
	"market-web/internal/identity"
	"market-web/internal/market"
	"market-web/internal/metrics"
	"market-web/internal/middleware"
	"market-web/internal/session"
	"market-web/internal/transport"
	"market-web/internal/view"
	"market-web/internal/workflow"
)

const (
	sessionSweepInterval = 5 * time.Minute
	limiterSweepInterval = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := initLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("market_api", cfg.Market.BaseURL),
		slog.String("tls_profile", cfg.Market.TLSProfile),
		slog.String("session_store", cfg.Session.Store),
	)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading time zone: %w", err)
	}

	reg := metrics.New()

	// Backend client
	profile, err := transport.ParseProfile(cfg.Market.TLSProfile)
	if err != nil {
		return err
	}
	client, err := market.New(market.Config{
		BaseURL:   cfg.Market.BaseURL,
		Timeout:   cfg.Market.Timeout(),
		Transport: transport.New(profile, cfg.Market.Timeout()),
		Observer:  reg,
	})
	if err != nil {
		return fmt.Errorf("creating market client: %w", err)
	}

	checker, err := compat.NewChecker(client, cfg.Market.MinVersion)
	if err != nil {
		return fmt.Errorf("creating compatibility checker: %w", err)
	}

	store, closeStore, err := createStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer closeStore()

	admins := admin.NewManager(client, store, logger, reg)
	storefront := workflow.NewStorefront(client, logger, workflow.StorefrontConfig{
		DefaultDongCode: cfg.DefaultDongCode,
		Location:        loc,
	})
	backoffice := workflow.NewBackoffice(client, admins, logger, loc)

	views, err := view.New()
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute, logger, reg)
	go limiter.RunSweeper(ctx, limiterSweepInterval)

	h := handler.New(handler.Options{
		Storefront:   storefront,
		Backoffice:   backoffice,
		Sessions:     session.NewManager(store, cfg.Session.CookieSecure),
		Identity:     identity.Resolver{Secure: cfg.Session.CookieSecure},
		Views:        views,
		Readiness:    checker,
		Metrics:      reg,
		LoginLimiter: limiter,
		Logger:       logger,
	})

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(h.Routes(), "market-web"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// createStore builds the session store named by configuration. The returned
// func releases it.
func createStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		store := session.NewRedisStore(rdb, cfg.Session.TTL())

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			rdb.Close()
			return nil, nil, err
		}
		logger.Info("redis session store connected", slog.String("addr", cfg.Session.RedisAddr))
		return store, func() { rdb.Close() }, nil

	case config.StoreMemory:
		store := session.NewMemoryStore(cfg.Session.TTL())
		go store.RunSweeper(ctx, sessionSweepInterval)
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported session store: %s", cfg.Session.Store)
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(environment, levelName string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
