package main

import (
    "context"
    "log"
    "net/http"
    "os"
    "os/signal"
    "sync"
    "syscall"
    "time"

    "github.com/gin-gonic/gin"
    "golang.org/x/time/rate"
    "github.com/yourusername/fpl-insights-backend/internal/config"
    "github.com/yourusername/fpl-insights-backend/internal/fpl"
    "github.com/yourusername/fpl-insights-backend/internal/handlers"
    "github.com/yourusername/fpl-insights-backend/internal/repository"
    "github.com/yourusername/fpl-insights-backend/pkg/cache"
)

// ============================================================================
// RATE LIMITER
// ============================================================================
type IPRateLimiter struct {
    ips map[string]*rate.Limiter
    mu  *sync.RWMutex
    r   rate.Limit
    b   int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
    return &IPRateLimiter{
        ips: make(map[string]*rate.Limiter),
        mu:  &sync.RWMutex{},
        r:   r,
        b:   b,
    }
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
    i.mu.Lock()
    defer i.mu.Unlock()

    limiter, exists := i.ips[ip]
    if !exists {
        limiter = rate.NewLimiter(i.r, i.b)
        i.ips[ip] = limiter
    }
    return limiter
}

func rateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
    return func(c *gin.Context) {
        ip := c.ClientIP()
        l := limiter.GetLimiter(ip)

        if !l.Allow() {
            c.JSON(http.StatusTooManyRequests, gin.H{
                "error": "Rate limit exceeded. Please try again later.",
                "retry_after": "60s",
            })
            c.Abort()
            return
        }
        c.Next()
    }
}

// ============================================================================
// SECURITY HEADERS
// ============================================================================
func securityHeadersMiddleware() gin.HandlerFunc {
    return func(c *gin.Context) {
        c.Header("X-Frame-Options", "DENY")
        c.Header("X-Content-Type-Options", "nosniff")
        c.Header("X-XSS-Protection", "1; mode=block")
        c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
        c.Next()
    }
}

// ============================================================================
// CORS MIDDLEWARE
// ============================================================================
func corsMiddleware() gin.HandlerFunc {
    return func(c *gin.Context) {
        c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
        c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
        c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
        c.Writer.Header().Set("Access-Control-Max-Age", "3600")

        if c.Request.Method == "OPTIONS" {
            c.AbortWithStatus(http.StatusNoContent)
            return
        }

        c.Next()
    }
}

func main() {
    // 1. Load config
    cfg, err := config.Load()
    if err != nil {
        log.Fatalf("Failed to load config: %v", err)
    }

    // 2. Connect to Postgres
    pgRepo, err := repository.NewPostgresRepo(cfg.DatabaseURL)
    if err != nil {
        log.Fatalf("Failed to connect to Postgres: %v", err)
    }
    if err := pgRepo.RunMigrations(); err != nil {
        log.Fatalf("Failed to create tables: %v", err)
    }

    // 3. Connect to Redis
    redisCache, err := cache.NewRedisClient(cfg.RedisURL)
    if err != nil {
        log.Fatalf("Failed to connect to Redis: %v", err)
    }

    // 4. Initialize FPL API client
    fplClient := fpl.NewClient(cfg.FPLBaseURL)

    // 5. Setup Gin
    if cfg.Environment == "production" {
        gin.SetMode(gin.ReleaseMode)
    }
    router := gin.Default()

    // Apply middleware
    router.Use(corsMiddleware())
    router.Use(securityHeadersMiddleware())

    limiter := NewIPRateLimiter(10, 20)
    router.Use(rateLimitMiddleware(limiter))

    // 6. Initialize handlers
    handler := handlers.NewHandler(pgRepo, redisCache, fplClient)

    // 7. Routes
    router.GET("/health", handler.HealthCheck)

    // API routes
    api := router.Group("/api/v1")
    {
        // Manager insights
        api.GET("/entry/:id/insights", handler.GetEntryInsights)
        api.GET("/entry/:id/history", handler.GetEntryHistory)
        api.GET("/entry/:id/transfers", handler.GetEntryTransfers)
        api.GET("/entry/:id/reports", handler.ListEntryReports)

        // Squad metrics
        api.GET("/entry/:id/expected-points", handler.GetEntryExpectedPoints)
        api.GET("/entry/:id/value-efficiency", handler.GetEntryValueEfficiency)
        api.GET("/entry/:id/performance", handler.GetEntryPerformance)
        api.GET("/entry/:id/fixture-run", handler.GetEntryFixtureRun)

        // League analytics
        api.GET("/league/:id/standings", handler.GetLeagueStandings)
        api.GET("/league/:id/top-bottom", handler.GetLeagueTopBottom)
        api.GET("/league/:id/streaks", handler.GetLeagueStreaks)
        api.GET("/league/:id/bench-points", handler.GetLeagueBenchPoints)
        api.GET("/league/:id/squad-values", handler.GetLeagueSquadValues)
        api.GET("/league/:id/transfers", handler.GetLeagueTransfers)
    }

    // 8. Start server with graceful shutdown
    srv := &http.Server{
        Addr:    ":" + cfg.Port,
        Handler: router,
    }

    go func() {
        log.Printf("Server starting on :%s", cfg.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalf("Server failed: %v", err)
        }
    }()

    // Wait for interrupt signal
    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    <-quit

    log.Println("Shutting down server...")
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    if err := srv.Shutdown(ctx); err != nil {
        log.Fatal("Server forced to shutdown:", err)
    }

    log.Println("Server stopped")
}
