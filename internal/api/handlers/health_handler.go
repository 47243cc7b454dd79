package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// HealthHandler handles health check requests. Both backing stores are
// optional: the server can run a table entirely in memory, and the
// health report says so instead of flagging an outage.
type HealthHandler struct {
	mongoClient *mongo.Client
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"responseTimeMs"`
	Error        string `json:"error,omitempty"`
}

// SystemHealth represents the health of the entire system
type SystemHealth struct {
	Status     string                  `json:"status"`
	Timestamp  string                  `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(mongoClient *mongo.Client, redisClient *redis.Client, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{
		mongoClient: mongoClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Check pings every component in parallel and reports the aggregate.
func (h *HealthHandler) Check(c echo.Context) error {
	systemHealth := SystemHealth{
		Status:     "healthy",
		Timestamp:  time.Now().Format(time.RFC3339),
		Components: make(map[string]HealthStatus),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	record := func(name string, status HealthStatus) {
		mu.Lock()
		systemHealth.Components[name] = status
		if status.Status == "unhealthy" {
			systemHealth.Status = "degraded"
		}
		mu.Unlock()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		record("mongodb", h.checkMongoDB())
	}()
	go func() {
		defer wg.Done()
		record("redis", h.checkRedis())
	}()
	wg.Wait()

	statusCode := http.StatusOK
	if systemHealth.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, systemHealth)
}

func (h *HealthHandler) checkMongoDB() HealthStatus {
	if h.mongoClient == nil {
		return HealthStatus{Status: "disabled"}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := h.mongoClient.Ping(ctx, readpref.Primary())
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		h.logger.Errorw("MongoDB health check failed", "error", err)
		return HealthStatus{
			Status:       "unhealthy",
			ResponseTime: elapsed,
			Error:        err.Error(),
		}
	}

	return HealthStatus{
		Status:       "healthy",
		ResponseTime: elapsed,
	}
}

func (h *HealthHandler) checkRedis() HealthStatus {
	if h.redisClient == nil {
		return HealthStatus{Status: "disabled"}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := h.redisClient.Ping(ctx).Result()
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		h.logger.Errorw("Redis health check failed", "error", err)
		return HealthStatus{
			Status:       "unhealthy",
			ResponseTime: elapsed,
			Error:        err.Error(),
		}
	}

	return HealthStatus{
		Status:       "healthy",
		ResponseTime: elapsed,
	}
}
