package cache

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "time"

    "github.com/redis/go-redis/v9"
)

// Cache TTLs per payload kind. Manager history only changes once a gameweek
// settles, so these can be generous without serving stale insights.
const (
    InsightsTTL = 1 * time.Hour
    TimelineTTL = 1 * time.Hour
    LeagueTTL   = 3 * time.Hour
    // Squad metrics lean on the bootstrap expectation figures, which move
    // more often than settled history.
    MetricsTTL = 30 * time.Minute
)

// InsightsKey builds the cache key for one insights computation: manager id
// plus the requested gameweek range and squad-detail flag.
func InsightsKey(entryID, from, to int, withSquad bool) string {
    return fmt.Sprintf("insights:%d:%d-%d:squad=%t", entryID, from, to, withSquad)
}

// TimelineKey builds the cache key for a manager's normalized timeline.
func TimelineKey(entryID int) string {
    return fmt.Sprintf("timeline:%d", entryID)
}

// LeagueKey builds the cache key for one league-wide analytics view.
func LeagueKey(view string, leagueID int) string {
    return fmt.Sprintf("league:%s:%d", view, leagueID)
}

// MetricsKey builds the cache key for one squad metric view.
func MetricsKey(view string, entryID, horizon int) string {
    return fmt.Sprintf("metrics:%s:%d:h%d", view, entryID, horizon)
}

type RedisClient struct {
    client *redis.Client
}

// NewRedisClient creates a new Redis client with connection retry logic
func NewRedisClient(url string) (*RedisClient, error) {
    opt, err := redis.ParseURL(url)
    if err != nil {
        return nil, fmt.Errorf("invalid Redis URL: %w", err)
    }

    // Configure connection pool
    opt.PoolSize = 10
    opt.MinIdleConns = 5
    opt.MaxRetries = 3
    opt.DialTimeout = 5 * time.Second
    opt.ReadTimeout = 3 * time.Second
    opt.WriteTimeout = 3 * time.Second

    client := redis.NewClient(opt)

    // Test connection with retries
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    for i := 0; i < 3; i++ {
        if err := client.Ping(ctx).Err(); err == nil {
            log.Printf("Successfully connected to Redis")
            return &RedisClient{client: client}, nil
        }
        log.Printf("Redis connection attempt %d failed, retrying...", i+1)
        time.Sleep(time.Second * 2)
    }

    return nil, fmt.Errorf("failed to connect to Redis after 3 attempts")
}

// Get retrieves and unmarshals a JSON value from cache
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
    val, err := r.client.Get(ctx, key).Result()

    if err == redis.Nil {
        return fmt.Errorf("cache miss")
    }

    if err != nil {
        log.Printf("Redis error for key '%s': %v", key, err)
        return fmt.Errorf("redis error: %w", err)
    }

    if err := json.Unmarshal([]byte(val), dest); err != nil {
        log.Printf("Failed to unmarshal cached value for key '%s': %v", key, err)
        return fmt.Errorf("failed to unmarshal: %w", err)
    }

    return nil
}

// Set marshals and stores a value as JSON in cache
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
    jsonBytes, err := json.Marshal(value)
    if err != nil {
        return fmt.Errorf("failed to marshal value: %w", err)
    }

    err = r.client.Set(ctx, key, jsonBytes, expiration).Err()
    if err != nil {
        log.Printf("Failed to set cache key '%s': %v", key, err)
        return fmt.Errorf("failed to set cache: %w", err)
    }

    return nil
}

// Delete removes a key from cache
func (r *RedisClient) Delete(ctx context.Context, key string) error {
    err := r.client.Del(ctx, key).Err()
    if err != nil {
        log.Printf("Failed to delete cache key '%s': %v", key, err)
        return err
    }
    return nil
}

// Exists checks if a key exists in cache
func (r *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
    result, err := r.client.Exists(ctx, key).Result()
    if err != nil {
        return false, err
    }
    return result > 0, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
    return r.client.Close()
}

// Ping checks if Redis is responsive
func (r *RedisClient) Ping(ctx context.Context) error {
    return r.client.Ping(ctx).Err()
}

// HealthCheck returns true if Redis is healthy
func (r *RedisClient) HealthCheck(ctx context.Context) bool {
    err := r.client.Ping(ctx).Err()
    return err == nil
}
