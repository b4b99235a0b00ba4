package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foodanalyzer/food-analyzer/internal/api"
	"github.com/foodanalyzer/food-analyzer/internal/auth"
	"github.com/foodanalyzer/food-analyzer/internal/budget"
	"github.com/foodanalyzer/food-analyzer/internal/cache"
	"github.com/foodanalyzer/food-analyzer/internal/config"
	"github.com/foodanalyzer/food-analyzer/internal/cost"
	"github.com/foodanalyzer/food-analyzer/internal/notifications"
	"github.com/foodanalyzer/food-analyzer/internal/provider"
	"github.com/foodanalyzer/food-analyzer/internal/provider/bedrock"
	"github.com/foodanalyzer/food-analyzer/internal/provider/ollama"
	"github.com/foodanalyzer/food-analyzer/internal/queue"
	"github.com/foodanalyzer/food-analyzer/internal/ratelimit"
	"github.com/foodanalyzer/food-analyzer/internal/relay"
	"github.com/foodanalyzer/food-analyzer/internal/repository"
	"github.com/foodanalyzer/food-analyzer/internal/router"
	"github.com/foodanalyzer/food-analyzer/internal/secrets"
	"github.com/foodanalyzer/food-analyzer/internal/telemetry"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting food analyzer", "addr", cfg.Addr, "version", "1.0.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, "food-analyzer", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(ctx)

	databaseURL := cfg.DatabaseURL
	if databaseURL == "" && cfg.DatabaseSecretName != "" {
		store, err := secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
		if err != nil {
			slog.Error("failed to create secrets manager client", "error", err)
			os.Exit(1)
		}
		databaseURL, err = store.GetSecret(ctx, cfg.DatabaseSecretName)
		if err != nil {
			slog.Error("failed to fetch database credentials", "error", err)
			os.Exit(1)
		}
	}

	var checkers []api.HealthChecker

	var products repository.ProductRepository
	if databaseURL != "" {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		products = repository.NewPostgresProductRepository(db)
		checkers = append(checkers, api.NewPostgresHealthChecker(db))
		slog.Info("using postgres product repository")
	} else {
		products = repository.NewInMemoryProductRepository()
		slog.Warn("no database configured, using empty in-memory product repository")
	}

	var store cache.Store
	var rateLimiter ratelimit.RateLimiter
	if cfg.RedisURL != "" {
		store, err = cache.NewRedisStore(cfg.RedisURL, cfg.SummaryCacheTTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		rateLimiter, err = ratelimit.NewRedisRateLimiter(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis for rate limiting", "error", err)
			os.Exit(1)
		}
		redisChecker, err := api.NewRedisHealthChecker(cfg.RedisURL)
		if err == nil {
			checkers = append(checkers, redisChecker)
		}
		slog.Info("using redis summary store and rate limiter")
	} else {
		store = cache.NewInMemoryStore(cfg.SummaryCacheTTL)
		rateLimiter = ratelimit.NewInMemoryRateLimiter()
		slog.Info("using in-memory summary store and rate limiter")
	}

	generators := make(map[string]provider.Generator)

	if cfg.AWSRegion != "" {
		gen, err := bedrock.New(ctx, cfg.AWSRegion, cfg.BedrockModelID)
		if err != nil {
			slog.Error("failed to create bedrock generator", "error", err)
			os.Exit(1)
		}
		generators["bedrock"] = gen
		slog.Info("registered generator", "provider", "bedrock", "model", cfg.BedrockModelID)
	}

	if cfg.OllamaBaseURL != "" {
		generators["ollama"] = ollama.New(cfg.OllamaBaseURL, cfg.OllamaModel)
		slog.Info("registered generator", "provider", "ollama", "url", cfg.OllamaBaseURL)
	}

	if len(generators) == 0 {
		slog.Error("no generation backends configured")
		os.Exit(1)
	}

	generatorRouter := router.New(generators, cfg.DefaultProvider)

	streamRelay := relay.New(generatorRouter, relay.Pacing{
		MinFragment: 1,
		MaxFragment: 10,
		Delay:       cfg.ReplayDelay,
	})

	var notifier notifications.Notifier
	if cfg.AlertTopicARN != "" {
		notifier, err = notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.AlertTopicARN)
		if err != nil {
			slog.Error("failed to create notifier", "error", err)
			os.Exit(1)
		}
		slog.Info("alerts enabled", "topic", cfg.AlertTopicARN)
	}

	var publisher queue.Publisher
	if cfg.UsageQueueURL != "" {
		publisher, err = queue.NewSQSPublisher(ctx, cfg.AWSRegion, cfg.UsageQueueURL)
		if err != nil {
			slog.Error("failed to create usage publisher", "error", err)
			os.Exit(1)
		}
		slog.Info("usage events enabled", "queue", cfg.UsageQueueURL)
	}

	calculator := cost.NewCalculator()
	tracker := cost.NewInMemoryTracker()

	monitor := budget.NewMonitor(tracker, cfg.DailyBudgetUSD, budget.DefaultThresholds())
	monitor.OnAlert(budget.LogAlertHandler)
	if notifier != nil {
		monitor.OnAlert(budgetAlertHandler(notifier))
	}
	if cfg.DailyBudgetUSD > 0 {
		slog.Info("daily generation budget enabled", "budget_usd", cfg.DailyBudgetUSD)
	}

	handler := api.NewHandler(api.HandlerConfig{
		Products:        products,
		Store:           store,
		Relay:           streamRelay,
		RateLimiter:     rateLimiter,
		Verifier:        auth.NewVerifier(cfg.APIKeyHash),
		Budget:          monitor,
		Calculator:      calculator,
		Tracker:         tracker,
		Publisher:       publisher,
		Notifier:        notifier,
		Router:          generatorRouter,
		RateLimitRPM:    cfg.RateLimitRPM,
		DefaultProvider: cfg.DefaultProvider,
		ModelID:         cfg.BedrockModelID,
		Checkers:        checkers,
	})

	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// Replayed and generated streams can stay open for minutes.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func budgetAlertHandler(notifier notifications.Notifier) budget.AlertHandler {
	return func(alert budget.Alert) {
		notificationType := notifications.NotificationBudgetWarning
		switch alert.Level {
		case budget.AlertLevelCritical:
			notificationType = notifications.NotificationBudgetCritical
		case budget.AlertLevelExceeded:
			notificationType = notifications.NotificationBudgetExceeded
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := notifier.Send(ctx, notifications.Notification{
			Type:    notificationType,
			Message: "daily generation budget threshold reached",
			Data: map[string]interface{}{
				"budget_usd":  alert.BudgetUSD,
				"current_usd": alert.CurrentUSD,
				"percentage":  alert.Percentage,
			},
		})
		if err != nil {
			slog.Warn("failed to send budget alert", "error", err)
		}
	}
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
