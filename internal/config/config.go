package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

var ErrMissingGeminiKey = errors.New("GEMINI_API_KEY environment variable is not set")

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort string

	GeminiAPIKey string
	ChatModel    string
	ImageModel   string
	TextModel    string

	MarketBaseURL       string
	MarketRatePerMinute int

	StoreBackend string // "memory", "postgres" or "redis"
	DatabaseURL  string
	RedisURL     string
	WidgetTTL    time.Duration // Redis only

	// WidgetIdleTimeout is how long an unused widget stays loaded in memory.
	WidgetIdleTimeout time.Duration

	JWTSecret       string
	TokenExpiration time.Duration

	TurnTimeout    time.Duration // Zero means a turn may run as long as the client stays connected
	AllowedOrigins []string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
	}

	cfg := &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		ChatModel:           getEnv("CHAT_MODEL", "gemini-2.5-flash"),
		ImageModel:          getEnv("IMAGE_MODEL", "gemini-2.5-flash-image"),
		TextModel:           getEnv("TEXT_MODEL", "gemini-2.5-flash"),
		MarketBaseURL:       getEnv("MARKET_BASE_URL", "https://api.dexscreener.com/latest/dex"),
		MarketRatePerMinute: getEnvInt("MARKET_RATE_PER_MINUTE", 300),
		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		WidgetTTL:           time.Hour * time.Duration(getEnvInt("WIDGET_TTL_HOURS", 24)),
		WidgetIdleTimeout:   time.Minute * time.Duration(getEnvInt("WIDGET_IDLE_MINUTES", 30)),
		JWTSecret:           getEnv("JWT_SECRET", "default-super-secret-key"), // CHANGE THIS IN PRODUCTION!
		TokenExpiration:     time.Hour * time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)),
		TurnTimeout:         time.Second * time.Duration(getEnvInt("TURN_TIMEOUT_SECONDS", 0)),
		AllowedOrigins:      splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, ErrMissingGeminiKey
	}
	switch cfg.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for store backend %q", cfg.StoreBackend)
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for store backend %q", cfg.StoreBackend)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	log.Printf("Loaded config: Port=%s, Store=%s, ChatModel=%s, TokenExp=%s, TurnTimeout=%s, GeminiKey=***",
		cfg.HTTPPort, cfg.StoreBackend, cfg.ChatModel, cfg.TokenExpiration, cfg.TurnTimeout)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if fallback != "" {
		log.Printf("Env variable %s not set, using default: %s", key, fallback)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		log.Printf("Warning: Invalid %s '%s', using default %d", key, raw, fallback)
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
