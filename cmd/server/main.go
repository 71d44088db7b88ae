package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ditto-builder-backend/internal/api"
	"ditto-builder-backend/internal/config"
	"ditto-builder-backend/internal/events"
	"ditto-builder-backend/internal/handlers"
	"ditto-builder-backend/internal/llm/gemini"
	"ditto-builder-backend/internal/market"
	"ditto-builder-backend/internal/meme"
	"ditto-builder-backend/internal/services"
	"ditto-builder-backend/internal/store"
	"ditto-builder-backend/internal/store/memory"
	"ditto-builder-backend/internal/store/postgres"
	redisstore "ditto-builder-backend/internal/store/redis"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("Starting Ditto Builder Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Store and Event Bus
	setupCtx, setupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer setupCancel()

	widgetStore, bus, closeBackends := initBackends(setupCtx, cfg)
	defer closeBackends()

	// 3. Initialize Model Backend and Tool
	backend, err := gemini.NewBackend(setupCtx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("FATAL: Failed to create Gemini client: %v", err)
	}
	log.Println("Gemini backend initialized.")

	marketClient := market.NewClient(market.ClientConfig{
		BaseURL:       cfg.MarketBaseURL,
		RatePerMinute: cfg.MarketRatePerMinute,
	})
	tokenTool := market.NewTool(marketClient)
	log.Println("DexScreener tool initialized.")

	// --- Initialize Services ---
	builderService := services.NewBuilderService(widgetStore, backend, tokenTool, bus, services.BuilderConfig{
		ChatModel:       cfg.ChatModel,
		TurnTimeout:     cfg.TurnTimeout,
		JWTSecret:       cfg.JWTSecret,
		TokenExpiration: cfg.TokenExpiration,
		IdleTimeout:     cfg.WidgetIdleTimeout,
	})
	evictCtx, stopEvictor := context.WithCancel(context.Background())
	defer stopEvictor()
	go builderService.RunEvictor(evictCtx, time.Minute)
	log.Println("BuilderService initialized.")
	memeService := services.NewMemeService(meme.NewService(gemini.NewMediaModels(backend, cfg.ImageModel, cfg.TextModel)))
	log.Println("MemeService initialized.")

	// --- Initialize Handlers ---
	routerDeps := api.RouterDependencies{
		WidgetHandler: handlers.NewWidgetHandler(builderService),
		StreamHandler: handlers.NewStreamHandler(builderService, cfg.AllowedOrigins),
		MemeHandler:   handlers.NewMemeHandler(memeService),
		Config:        cfg,
	}
	router := api.NewRouter(routerDeps)
	log.Println("HTTP router configured.")

	// 4. Configure and Start HTTP Server
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: replies stream for as long as the model takes.
	}

	// Channel to listen for OS signals for graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
	}
	log.Println("Server shutdown complete.")
}

// initBackends connects the configured widget store. Redis deployments also relay stream events
// through Redis so any instance can serve a widget's socket.
func initBackends(ctx context.Context, cfg *config.Config) (store.Store, events.Bus, func()) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		dbpool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
		}
		if err := dbpool.Ping(ctx); err != nil {
			log.Fatalf("FATAL: Unable to ping database: %v\n", err)
		}
		log.Println("Database connection pool established and pinged successfully.")

		pgStore := postgres.NewPostgresStore(dbpool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		return pgStore, events.NewLocalBus(), dbpool.Close

	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("FATAL: Invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("FATAL: Unable to ping Redis: %v", err)
		}
		log.Println("Redis connection established.")
		return redisstore.NewRedisStore(rdb, cfg.WidgetTTL), events.NewRedisBus(rdb), func() { rdb.Close() }

	default:
		log.Println("WARN: Using in-memory store; widgets are lost on restart.")
		return memory.NewMemoryStore(), events.NewLocalBus(), func() {}
	}
}
