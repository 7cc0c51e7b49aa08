package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EstimateRequest asks for a road route between two coordinates.
type EstimateRequest struct {
	FromLatitude  float64 `json:"from_latitude" binding:"required"`
	FromLongitude float64 `json:"from_longitude" binding:"required"`
	ToLatitude    float64 `json:"to_latitude" binding:"required"`
	ToLongitude   float64 `json:"to_longitude" binding:"required"`
}

// EstimateResponse mirrors what a real routing provider would answer.
type EstimateResponse struct {
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes float64   `json:"duration_minutes"`
	Provider        string    `json:"provider"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	ProviderID  string    `json:"provider_id"`
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"success_rate"`
}

const earthRadiusKm = 6371.0

// MockRouter simulates a road-network routing provider: straight-line
// distance inflated by a detour factor, driven at city speed.
type MockRouter struct {
	successRate  float64
	detourFactor float64
	avgSpeedKmh  float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	rng          *rand.Rand
}

func NewMockRouter(successRate, detourFactor, avgSpeedKmh float64, minDelay, maxDelay time.Duration) *MockRouter {
	return &MockRouter{
		successRate:  successRate,
		detourFactor: detourFactor,
		avgSpeedKmh:  avgSpeedKmh,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_ROUTER_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockRouter) estimate(req *EstimateRequest) *EstimateResponse {
	time.Sleep(m.randomDelay())

	straight := haversineKm(req.FromLatitude, req.FromLongitude, req.ToLatitude, req.ToLongitude)

	// roads are never straight; wobble the detour factor a little
	factor := m.detourFactor * (0.9 + m.rng.Float64()*0.2)
	distance := straight * factor
	duration := distance / m.avgSpeedKmh * 60

	return &EstimateResponse{
		DistanceKm:      math.Round(distance*1000) / 1000,
		DurationMinutes: math.Round(duration*100) / 100,
		Provider:        m.providerID,
		ProcessedAt:     time.Now(),
	}
}

func (m *MockRouter) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockRouter) shouldSucceed() bool {
	return m.rng.Float64() < m.successRate
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Handler struct holds the mock router and routes
type Handler struct {
	router *MockRouter
}

func NewHandler(router *MockRouter) *Handler {
	return &Handler{router: router}
}

// Estimate handles route estimation requests
func (h *Handler) Estimate(c *gin.Context) {
	var req EstimateRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if !h.router.shouldSucceed() {
		log.Warn().
			Float64("from_lat", req.FromLatitude).
			Float64("to_lat", req.ToLatitude).
			Msg("Simulated provider failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Routing temporarily unavailable",
		})
		return
	}

	response := h.router.estimate(&req)

	log.Info().
		Float64("distance_km", response.DistanceKm).
		Float64("duration_minutes", response.DurationMinutes).
		Msg("Route estimated")

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.router.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Provider temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		ProviderID:  h.router.providerID,
		Timestamp:   time.Now(),
		SuccessRate: h.router.successRate,
	})
}

// UpdateConfig allows changing router configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate  *float64 `json:"success_rate"`
		AvgSpeedKmh  *float64 `json:"avg_speed_kmh"`
		DetourFactor *float64 `json:"detour_factor"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.SuccessRate != nil && *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
		h.router.successRate = *config.SuccessRate
		log.Info().Float64("rate", *config.SuccessRate).Msg("Updated success rate")
	}
	if config.AvgSpeedKmh != nil && *config.AvgSpeedKmh > 0 {
		h.router.avgSpeedKmh = *config.AvgSpeedKmh
		log.Info().Float64("speed", *config.AvgSpeedKmh).Msg("Updated average speed")
	}
	if config.DetourFactor != nil && *config.DetourFactor >= 1.0 {
		h.router.detourFactor = *config.DetourFactor
		log.Info().Float64("factor", *config.DetourFactor).Msg("Updated detour factor")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"success_rate":  h.router.successRate,
		"avg_speed_kmh": h.router.avgSpeedKmh,
		"detour_factor": h.router.detourFactor,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/routes/estimate", handler.Estimate)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check; this is the path the tracker's health prober hits
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	detourFactor := getEnvFloat("DETOUR_FACTOR", 1.3)
	avgSpeedKmh := getEnvFloat("AVG_SPEED_KMH", 32)
	minDelay := getEnvDuration("MIN_DELAY", 20*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 200*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Float64("detour_factor", detourFactor).
		Float64("avg_speed_kmh", avgSpeedKmh).
		Msg("Starting Mock Routing Provider")

	// Create mock router
	mockRouter := NewMockRouter(successRate, detourFactor, avgSpeedKmh, minDelay, maxDelay)
	handler := NewHandler(mockRouter)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
