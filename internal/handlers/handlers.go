package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yourusername/fpl-insights-backend/internal/fpl"
	"github.com/yourusername/fpl-insights-backend/internal/models"
	"github.com/yourusername/fpl-insights-backend/internal/repository"
	"github.com/yourusername/fpl-insights-backend/internal/services"
	"github.com/yourusername/fpl-insights-backend/pkg/cache"
)

type Handler struct {
	pgRepo         *repository.PostgresRepo
	redisCache     *cache.RedisClient
	fplClient      *fpl.Client
	entryService   *services.EntryService
	leagueService  *services.LeagueService
	metricsService *services.MetricsService
}

func NewHandler(pg *repository.PostgresRepo, redis *cache.RedisClient, fplClient *fpl.Client) *Handler {
	return &Handler{
		pgRepo:         pg,
		redisCache:     redis,
		fplClient:      fplClient,
		entryService:   services.NewEntryService(fplClient),
		leagueService:  services.NewLeagueService(fplClient),
		metricsService: services.NewMetricsService(fplClient),
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	postgresStatus := h.pgRepo.HealthCheck()
	redisStatus := h.redisCache.HealthCheck(ctx)
	fplStatus := h.fplClient.HealthCheck(ctx)

	status := "ok"
	if !postgresStatus || !redisStatus || !fplStatus {
		status = "error"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"postgres":  postgresStatus,
		"redis":     redisStatus,
		"fpl_api":   fplStatus,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GetEntryInsights computes (or serves from cache) the derived insights for
// one manager, optionally clipped to a gameweek range. squad=true also
// resolves per-gameweek squad points so captaincy efficiency is defined.
func (h *Handler) GetEntryInsights(c *gin.Context) {
	start := time.Now()
	entryID, ok := pathID(c, "id")
	if !ok {
		return
	}

	from := queryInt(c, "from", 0)
	to := queryInt(c, "to", 0)
	if (from != 0 && (from < 1 || from > 38)) || (to != 0 && (to < 1 || to > 38)) || (from != 0 && to != 0 && from > to) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "from and to must form a valid gameweek range within 1-38",
			"example": "/api/v1/entry/123/insights?from=1&to=19",
		})
		return
	}
	withSquad := c.Query("squad") == "true"

	timeout := 30 * time.Second
	if withSquad {
		// One picks + one live call per gameweek, paced.
		timeout = 90 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	cacheKey := cache.InsightsKey(entryID, from, to, withSquad)
	var cached models.InsightsResult
	if err := h.redisCache.Get(ctx, cacheKey, &cached); err == nil {
		log.Printf("[CACHE HIT] GetEntryInsights took %v", time.Since(start))
		c.JSON(http.StatusOK, cached)
		return
	}

	result, err := h.entryService.Insights(ctx, entryID, from, to, withSquad)
	if err != nil {
		h.respondEntryError(c, err, "insights computation failed")
		return
	}

	if err := h.redisCache.Set(ctx, cacheKey, result, cache.InsightsTTL); err != nil {
		log.Printf("Warning: failed to cache insights: %v", err)
	}
	h.archiveReport(result)

	log.Printf("[CACHE MISS] GetEntryInsights took %v", time.Since(start))
	c.JSON(http.StatusOK, result)
}

// archiveReport stores the computed result, best-effort: a failing archive
// never fails the request.
func (h *Handler) archiveReport(result *models.InsightsResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("Warning: failed to marshal report for archive: %v", err)
		return
	}

	points := result.RankTrajectory.Points
	rec := &models.ReportRecord{
		ID:          uuid.New().String(),
		EntryID:     result.EntryID,
		GameweekMin: points[0].Gameweek,
		GameweekMax: points[len(points)-1].Gameweek,
		Payload:     payload,
		GeneratedAt: time.Now().UTC(),
	}
	if err := h.pgRepo.SaveReport(rec); err != nil {
		log.Printf("Warning: failed to archive report for entry %d: %v", result.EntryID, err)
	}
}

// GetEntryHistory returns a manager's normalized season timeline.
func (h *Handler) GetEntryHistory(c *gin.Context) {
	entryID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	cacheKey := cache.TimelineKey(entryID)
	var cached models.SeasonTimeline
	if err := h.redisCache.Get(ctx, cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	timeline, err := h.entryService.Timeline(ctx, entryID)
	if err != nil {
		h.respondEntryError(c, err, "history fetch failed")
		return
	}

	if err := h.redisCache.Set(ctx, cacheKey, timeline, cache.TimelineTTL); err != nil {
		log.Printf("Warning: failed to cache timeline: %v", err)
	}
	c.JSON(http.StatusOK, timeline)
}

// GetEntryTransfers returns a manager's normalized transfer log.
func (h *Handler) GetEntryTransfers(c *gin.Context) {
	entryID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	timeline, err := h.entryService.Timeline(ctx, entryID)
	if err != nil {
		h.respondEntryError(c, err, "transfers fetch failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entryId":   entryID,
		"transfers": timeline.Transfers,
	})
}

// ListEntryReports returns the most recent archived insight reports for a
// manager.
func (h *Handler) ListEntryReports(c *gin.Context) {
	entryID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 10)

	reports, err := h.pgRepo.ListReports(entryID, limit)
	if err != nil {
		log.Printf("[ERROR] Listing reports failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if reports == nil {
		reports = []models.ReportRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"entryId": entryID,
		"reports": reports,
	})
}

func (h *Handler) GetLeagueStandings(c *gin.Context) {
	h.leagueView(c, "standings", func(ctx context.Context, leagueID int) (interface{}, error) {
		return h.leagueService.Standings(ctx, leagueID)
	})
}

func (h *Handler) GetLeagueTopBottom(c *gin.Context) {
	h.leagueView(c, "top-bottom", func(ctx context.Context, leagueID int) (interface{}, error) {
		return h.leagueService.TopBottom(ctx, leagueID)
	})
}

func (h *Handler) GetLeagueStreaks(c *gin.Context) {
	h.leagueView(c, "streaks", func(ctx context.Context, leagueID int) (interface{}, error) {
		return h.leagueService.Streaks(ctx, leagueID)
	})
}

func (h *Handler) GetLeagueBenchPoints(c *gin.Context) {
	h.leagueView(c, "bench-points", func(ctx context.Context, leagueID int) (interface{}, error) {
		return h.leagueService.BenchPoints(ctx, leagueID)
	})
}

func (h *Handler) GetLeagueSquadValues(c *gin.Context) {
	h.leagueView(c, "squad-values", func(ctx context.Context, leagueID int) (interface{}, error) {
		return h.leagueService.SquadValues(ctx, leagueID)
	})
}

func (h *Handler) GetLeagueTransfers(c *gin.Context) {
	h.leagueView(c, "transfers", func(ctx context.Context, leagueID int) (interface{}, error) {
		return h.leagueService.Transfers(ctx, leagueID)
	})
}

// GetEntryValueEfficiency ranks the manager's current squad by expected
// points per million spent.
func (h *Handler) GetEntryValueEfficiency(c *gin.Context) {
	h.metricView(c, "value-efficiency", 0, func(ctx context.Context, entryID, _ int) (interface{}, error) {
		return h.metricsService.ValueEfficiency(ctx, entryID)
	})
}

// GetEntryPerformance compares each current squad member's points per game
// with the upstream expectation.
func (h *Handler) GetEntryPerformance(c *gin.Context) {
	h.metricView(c, "performance", 0, func(ctx context.Context, entryID, _ int) (interface{}, error) {
		return h.metricsService.Performance(ctx, entryID)
	})
}

// GetEntryFixtureRun summarizes the squad's fixture difficulty over the
// next horizon gameweeks (default 5).
func (h *Handler) GetEntryFixtureRun(c *gin.Context) {
	h.metricView(c, "fixture-run", 5, func(ctx context.Context, entryID, horizon int) (interface{}, error) {
		return h.metricsService.FixtureRun(ctx, entryID, horizon)
	})
}

// GetEntryExpectedPoints projects the squad's points over the next horizon
// gameweeks (default 1).
func (h *Handler) GetEntryExpectedPoints(c *gin.Context) {
	h.metricView(c, "expected-points", 1, func(ctx context.Context, entryID, horizon int) (interface{}, error) {
		return h.metricsService.ExpectedPoints(ctx, entryID, horizon)
	})
}

// metricView handles the shared fetch/cache/error plumbing of the squad
// metric endpoints. A zero defaultHorizon means the view takes no horizon
// parameter.
func (h *Handler) metricView(c *gin.Context, view string, defaultHorizon int, compute func(context.Context, int, int) (interface{}, error)) {
	start := time.Now()
	entryID, ok := pathID(c, "id")
	if !ok {
		return
	}

	horizon := defaultHorizon
	if defaultHorizon > 0 {
		horizon = queryInt(c, "horizon", defaultHorizon)
		if horizon < 1 || horizon > 10 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "horizon must be between 1 and 10",
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	cacheKey := cache.MetricsKey(view, entryID, horizon)
	var cached json.RawMessage
	if err := h.redisCache.Get(ctx, cacheKey, &cached); err == nil {
		log.Printf("[CACHE HIT] metric %s took %v", view, time.Since(start))
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	result, err := compute(ctx, entryID, horizon)
	if err != nil {
		h.respondEntryError(c, err, "metric "+view+" failed")
		return
	}

	if err := h.redisCache.Set(ctx, cacheKey, result, cache.MetricsTTL); err != nil {
		log.Printf("Warning: failed to cache metric %s: %v", view, err)
	}

	log.Printf("[CACHE MISS] metric %s took %v", view, time.Since(start))
	c.JSON(http.StatusOK, result)
}

// leagueView handles the shared fetch/cache/error plumbing of the league
// endpoints; compute does the per-view work.
func (h *Handler) leagueView(c *gin.Context, view string, compute func(context.Context, int) (interface{}, error)) {
	start := time.Now()
	leagueID, ok := pathID(c, "id")
	if !ok {
		return
	}

	// League views fan out one history fetch per manager.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 90*time.Second)
	defer cancel()

	cacheKey := cache.LeagueKey(view, leagueID)
	var cached json.RawMessage
	if err := h.redisCache.Get(ctx, cacheKey, &cached); err == nil {
		log.Printf("[CACHE HIT] league %s took %v", view, time.Since(start))
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	result, err := compute(ctx, leagueID)
	if err != nil {
		log.Printf("[ERROR] League %s failed: %v", view, err)

		var leagueErr *fpl.LeagueNotFoundError
		if errors.As(err, &leagueErr) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   leagueErr.Error(),
				"league":  leagueErr.LeagueID,
				"message": "League not found. Check the classic league id.",
			})
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error":   "Request timeout",
				"message": "The league analysis took too long to complete. Try a smaller league or retry later.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.redisCache.Set(ctx, cacheKey, result, cache.LeagueTTL); err != nil {
		log.Printf("Warning: failed to cache league %s: %v", view, err)
	}

	log.Printf("[CACHE MISS] league %s took %v", view, time.Since(start))
	c.JSON(http.StatusOK, result)
}

func (h *Handler) respondEntryError(c *gin.Context, err error, what string) {
	log.Printf("[ERROR] %s: %v", what, err)

	var notFound *fpl.EntryNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   notFound.Error(),
			"entry":   notFound.EntryID,
			"message": "Entry not found. Check the FPL manager id.",
		})
		return
	}

	var malformed *services.MalformedInputError
	if errors.As(err, &malformed) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   malformed.Error(),
			"message": "The FPL API returned data this service could not interpret.",
		})
		return
	}

	var empty *services.EmptyTimelineError
	if errors.As(err, &empty) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   empty.Error(),
			"message": "No gameweeks available for this entry in the requested range. The season may not have started.",
		})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":   "Request timeout",
			"message": "The request took too long to complete. Try again without squad detail or with a narrower range.",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
