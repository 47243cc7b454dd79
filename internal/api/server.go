package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/api/handlers"
	"github.com/boulevardgame/backend/internal/api/middleware/auth"
	"github.com/boulevardgame/backend/internal/config"
	"github.com/boulevardgame/backend/internal/game/manager"
	"github.com/boulevardgame/backend/internal/game/websocket"
)

// CustomValidator is the request validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// RequestMetrics tracks metrics for API requests
type RequestMetrics struct {
	RequestCount map[string]int
	DurationSum  map[string]float64
	mutex        sync.RWMutex
}

// Server represents the API server
type Server struct {
	echo        *echo.Echo
	cfg         *config.Config
	gameManager *manager.GameManager
	wsHub       *websocket.Hub
	logger      *zap.SugaredLogger
	metrics     *RequestMetrics
	mongoClient *mongo.Client
	redisClient *redis.Client
}

// NewServer creates the API server. mongoClient and redisClient are
// only used for health reporting and may be nil.
func NewServer(cfg *config.Config, gameManager *manager.GameManager, wsHub *websocket.Hub, mongoClient *mongo.Client, redisClient *redis.Client, logger *zap.SugaredLogger) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Validator = &CustomValidator{validator: validator.New()}

	metrics := &RequestMetrics{
		RequestCount: make(map[string]int),
		DurationSum:  make(map[string]float64),
	}

	server := &Server{
		echo:        e,
		cfg:         cfg,
		gameManager: gameManager,
		wsHub:       wsHub,
		logger:      logger,
		metrics:     metrics,
		mongoClient: mongoClient,
		redisClient: redisClient,
	}

	server.configureMiddleware()
	server.configureRoutes()

	go wsHub.Run()

	return server
}

// configureMiddleware sets up Echo middleware
func (s *Server) configureMiddleware() {
	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(s.metricsMiddleware)

	// Attach a request-scoped structured logger.
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			c.Set("requestID", requestID)

			requestLogger := s.logger.With(
				"requestID", requestID,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"clientIP", c.RealIP(),
			)
			c.Set("logger", requestLogger)

			return next(c)
		}
	})
}

// metricsMiddleware records metrics for each request
func (s *Server) metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		duration := time.Since(start).Seconds()
		key := c.Request().Method + ":" + c.Path() + ":" + strconv.Itoa(c.Response().Status)

		s.metrics.mutex.Lock()
		s.metrics.RequestCount[key]++
		s.metrics.DurationSum[key] += duration
		s.metrics.mutex.Unlock()

		return err
	}
}

// configureRoutes sets up API routes
func (s *Server) configureRoutes() {
	gameHandler := handlers.NewGameHandler(s.gameManager, s.cfg, s.logger)
	wsHandler := handlers.NewWebSocketHandler(s.wsHub, s.cfg, s.logger)
	healthHandler := handlers.NewHealthHandler(s.mongoClient, s.redisClient, s.logger)

	apiV1 := s.echo.Group("/api/v1")

	// Creating or joining a game mints the session token, so these two
	// take no auth.
	apiV1.POST("/games", gameHandler.CreateGame)
	apiV1.POST("/games/:code/join", gameHandler.JoinGame)

	sessionMiddleware := auth.SessionMiddleware(s.cfg.Session.Secret)

	gameGroup := apiV1.Group("/games/:code", sessionMiddleware)
	gameGroup.GET("", gameHandler.GetGame)
	gameGroup.POST("/leave", gameHandler.LeaveGame)
	gameGroup.POST("/start", gameHandler.StartGame)
	gameGroup.POST("/bots", gameHandler.AddBot)
	gameGroup.DELETE("/bots/:botId", gameHandler.RemoveBot)

	actionGroup := gameGroup.Group("/actions")
	actionGroup.POST("/roll-dice", gameHandler.RollDice)
	actionGroup.POST("/buy-property", gameHandler.BuyProperty)
	actionGroup.POST("/pass-property", gameHandler.PassProperty)
	actionGroup.POST("/build-house", gameHandler.BuildHouse)
	actionGroup.POST("/sell-property", gameHandler.SellProperty)
	actionGroup.POST("/jail-card", gameHandler.UseJailCard)
	actionGroup.POST("/jail-pay", gameHandler.PayJailFee)
	actionGroup.POST("/jail-wait", gameHandler.WaitInJail)
	actionGroup.POST("/end-turn", gameHandler.EndTurn)

	// WebSocket auth happens in the handler: the token rides the query
	// string on upgrades.
	s.echo.GET("/ws/:code", wsHandler.HandleConnection)

	s.echo.GET("/health", healthHandler.Check)

	s.echo.GET("/metrics", func(c echo.Context) error {
		s.metrics.mutex.RLock()
		defer s.metrics.mutex.RUnlock()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"requestCount": s.metrics.RequestCount,
			"durationSum":  s.metrics.DurationSum,
		})
	})
}

// Start starts the API server
func (s *Server) Start() error {
	address := s.cfg.Server.Host + ":" + strconv.Itoa(s.cfg.Server.Port)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
