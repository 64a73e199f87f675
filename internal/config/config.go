package config

import (
    "fmt"
    "os"

    "github.com/joho/godotenv"
)

type Config struct {
    Port           string
    Environment    string // "development" or "production"
    RedisURL       string
    DatabaseURL    string
    FPLBaseURL     string
    TrustedProxies string
}

func Load() (*Config, error) {
    // Load .env file (OK if it fails in production)
    if err := godotenv.Load(); err != nil {
        fmt.Printf("Warning: .env file not found: %v\n", err)
    }

    cfg := &Config{
        Port:           getEnv("PORT", "8080"),
        Environment:    getEnv("ENVIRONMENT", "development"),
        RedisURL:       os.Getenv("REDIS_URL"),
        DatabaseURL:    os.Getenv("DATABASE_URL"),
        FPLBaseURL:     getEnv("FPL_BASE_URL", "https://fantasy.premierleague.com/api"),
        TrustedProxies: os.Getenv("TRUSTED_PROXIES"),
    }

    // Validate required fields
    if cfg.RedisURL == "" {
        return nil, fmt.Errorf("REDIS_URL environment variable is required")
    }
    if cfg.DatabaseURL == "" {
        return nil, fmt.Errorf("DATABASE_URL environment variable is required")
    }

    return cfg, nil
}

func getEnv(key, defaultValue string) string {
    if value := os.Getenv(key); value != "" {
        return value
    }
    return defaultValue
}
